package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	audioFormat = "ba[ext=m4a]/best[ext=m4a]/ba/best"
	videoFormat = "bv[ext=mp4][height<=1080]+ba[ext=m4a]/best[ext=mp4]"

	downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// YtDlpConverter shells out to a local downloader and writes the media file
// into a per-job scratch directory. The caller owns the scratch directory on
// success; on failure the converter removes it before returning.
type YtDlpConverter struct {
	bin         string
	scratchRoot string
	timeout     time.Duration
}

func NewYtDlpConverter(cfg config.ConvertConfig) (*YtDlpConverter, error) {
	if _, err := exec.LookPath(cfg.YtDlpBin); err != nil {
		return nil, fmt.Errorf("downloader binary not found in PATH: %s", cfg.YtDlpBin)
	}
	return &YtDlpConverter{
		bin:         cfg.YtDlpBin,
		scratchRoot: cfg.ScratchDir,
		timeout:     cfg.Timeout,
	}, nil
}

var _ Converter = (*YtDlpConverter)(nil)

func (c *YtDlpConverter) Convert(ctx context.Context, videoID, contentType string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	scratch, err := os.MkdirTemp(c.scratchRoot, "podpay_"+videoID+"_")
	if err != nil {
		return nil, common.NewStepError("convert", videoID, 0, err)
	}

	ext := FileExt(contentType)
	format := videoFormat
	if contentType == config.ContentTypeAudio {
		format = audioFormat
	}
	outputPath := filepath.Join(scratch, videoID+"."+ext)

	args := []string{
		"--user-agent", downloadUserAgent,
		"-f", format,
		"--merge-output-format", ext,
		"--no-playlist",
		"-o", outputPath,
		WatchURL(videoID),
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		os.RemoveAll(scratch)
		log.Debug().Str("videoId", videoID).Str("output", output.String()).Msg("downloader failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, common.NewStepError("convert", videoID, 0,
				fmt.Errorf("download timed out after %s", c.timeout))
		}
		stepErr := common.NewStepError("convert", videoID, 0,
			fmt.Errorf("downloader failed: %s", firstLine(output.String())))
		if unavailable(output.String()) {
			return nil, stepErr.Terminal()
		}
		return nil, stepErr
	}

	fi, err := os.Stat(outputPath)
	if err != nil {
		os.RemoveAll(scratch)
		return nil, common.NewStepError("convert", videoID, 0,
			fmt.Errorf("downloader produced no output file: %w", err))
	}

	return &Result{
		VideoID:     videoID,
		ContentType: contentType,
		LocalPath:   outputPath,
		ScratchDir:  scratch,
		FileSize:    fi.Size(),
		Quality:     quality(contentType),
		ProcessedAt: time.Now(),
	}, nil
}

func quality(contentType string) string {
	if contentType == config.ContentTypeAudio {
		return "320"
	}
	return "1080"
}

// unavailable matches downloader messages for videos that will never resolve.
func unavailable(output string) bool {
	for _, marker := range []string{"Video unavailable", "Private video", "This video is not available"} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
