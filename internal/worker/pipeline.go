package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/convert"
	"github.com/podpay/podpay/internal/events"
	"github.com/podpay/podpay/internal/job"
	"github.com/podpay/podpay/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Uploader publishes a staged media file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, videoID, contentType string, body io.Reader) (string, error)
}

// EpisodeUpdater attaches the uploaded media URL to a CMS episode.
type EpisodeUpdater interface {
	UpdateEpisode(ctx context.Context, episodeID, fileURL string) error
}

// Pipeline runs one job through its steps: convert, stage, upload, and
// optionally update the episode. Progress milestones are persisted and
// published after each step so pollers see movement.
type Pipeline struct {
	repo        job.JobRepoInterface
	converter   convert.Converter
	uploader    Uploader
	episodes    EpisodeUpdater
	events      events.Publisher
	http        *http.Client
	scratchRoot string
}

func NewPipeline(repo job.JobRepoInterface, converter convert.Converter, uploader Uploader, episodes EpisodeUpdater, pub events.Publisher, scratchRoot string) *Pipeline {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Pipeline{
		repo:        repo,
		converter:   converter,
		uploader:    uploader,
		episodes:    episodes,
		events:      pub,
		http:        &http.Client{Timeout: 10 * time.Minute},
		scratchRoot: scratchRoot,
	}
}

type jobResult struct {
	Success     bool    `json:"success"`
	VideoID     string  `json:"videoId"`
	ContentType string  `json:"contentType"`
	DownloadURL string  `json:"downloadUrl"`
	Title       string  `json:"title,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	FileSize    int64   `json:"fileSize,omitempty"`
	Quality     string  `json:"quality,omitempty"`
	ProcessedAt string  `json:"processedAt"`
}

// Run executes the steps for a claimed job and returns the result document to
// store on completion. Whatever happens, no scratch files survive the run.
func (p *Pipeline) Run(ctx context.Context, j *models.Job) (datatypes.JSON, error) {
	p.progress(ctx, j, 10)

	res, err := p.converter.Convert(ctx, j.VideoID, j.ContentType)
	if err != nil {
		return nil, err
	}
	scratch := res.ScratchDir
	defer func() {
		if scratch != "" {
			if rmErr := os.RemoveAll(scratch); rmErr != nil {
				log.Error().Err(rmErr).Uint("jobId", j.ID).Msg("failed to clean up scratch directory")
			}
		}
	}()
	p.progress(ctx, j, 25)

	localPath := res.LocalPath
	if localPath == "" {
		localPath, scratch, err = p.stage(ctx, j, res.DownloadURL)
		if err != nil {
			return nil, err
		}
	}
	p.progress(ctx, j, 50)

	file, err := os.Open(localPath)
	if err != nil {
		return nil, common.NewStepError("upload", j.VideoID, 0, err)
	}
	publicURL, err := p.uploader.Upload(ctx, j.VideoID, j.ContentType, file)
	file.Close()
	if err != nil {
		return nil, err
	}
	p.progress(ctx, j, 75)

	if j.EpisodeID != "" {
		if err := p.episodes.UpdateEpisode(ctx, j.EpisodeID, publicURL); err != nil {
			return nil, err
		}
	}
	p.progress(ctx, j, 90)

	title := res.Title
	if title == "" {
		title = j.Title
	}
	result := jobResult{
		Success:     true,
		VideoID:     j.VideoID,
		ContentType: j.ContentType,
		DownloadURL: publicURL,
		Title:       title,
		Duration:    res.Duration,
		FileSize:    res.FileSize,
		Quality:     res.Quality,
		ProcessedAt: time.Now().Format(time.RFC3339),
	}
	doc, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(doc), nil
}

// stage downloads remote media into a fresh scratch directory so the upload
// reads from local disk.
func (p *Pipeline) stage(ctx context.Context, j *models.Job, downloadURL string) (string, string, error) {
	scratch, err := os.MkdirTemp(p.scratchRoot, fmt.Sprintf("podpay_%s_", j.VideoID))
	if err != nil {
		return "", "", common.NewStepError("stage", j.VideoID, 0, err)
	}

	path := filepath.Join(scratch, j.VideoID+"."+convert.FileExt(j.ContentType))
	if err := p.download(ctx, downloadURL, path); err != nil {
		os.RemoveAll(scratch)
		return "", "", err
	}
	return path, scratch, nil
}

func (p *Pipeline) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return common.NewStepError("stage", filepath.Base(dest), 0, err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return common.NewStepError("stage", filepath.Base(dest), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.NewStepError("stage", filepath.Base(dest), resp.StatusCode,
			fmt.Errorf("media fetch returned %s", resp.Status))
	}

	out, err := os.Create(dest)
	if err != nil {
		return common.NewStepError("stage", filepath.Base(dest), 0, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return common.NewStepError("stage", filepath.Base(dest), 0, err)
	}
	return nil
}

// progress persists a milestone and notifies subscribers. Both are best
// effort; a lost milestone never fails the job.
func (p *Pipeline) progress(ctx context.Context, j *models.Job, pct int) {
	if err := p.repo.UpdateProgress(ctx, j.ID, pct); err != nil {
		log.Warn().Err(err).Uint("jobId", j.ID).Int("progress", pct).Msg("failed to persist progress")
	}
	if err := p.events.Publish(ctx, events.Event{
		JobID:    j.ID,
		VideoID:  j.VideoID,
		Status:   j.Status,
		Progress: pct,
	}); err != nil {
		log.Debug().Err(err).Uint("jobId", j.ID).Msg("failed to publish progress event")
	}
}
