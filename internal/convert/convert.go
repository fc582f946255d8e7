// Package convert turns a video id into a downloadable media file, either by
// calling a hosted conversion API or by shelling out to a local downloader.
package convert

import (
	"context"
	"time"

	"github.com/podpay/podpay/internal/config"
)

// Result is what a successful conversion hands to the pipeline. Exactly one
// of DownloadURL or LocalPath is set: the hosted API returns a URL to fetch,
// the local downloader writes straight into ScratchDir.
type Result struct {
	VideoID     string
	ContentType string
	DownloadURL string
	LocalPath   string
	ScratchDir  string
	Title       string
	Duration    float64
	FileSize    int64
	Quality     string
	ProcessedAt time.Time
}

// Converter is implemented by both backends. Implementations classify their
// failures with common.StepError so the worker can decide requeue vs. fail.
type Converter interface {
	Convert(ctx context.Context, videoID, contentType string) (*Result, error)
}

// FileExt maps a content type onto the delivered container extension.
func FileExt(contentType string) string {
	if contentType == config.ContentTypeAudio {
		return "mp3"
	}
	return "mp4"
}

// MIMEType maps a content type onto the upload Content-Type header.
func MIMEType(contentType string) string {
	if contentType == config.ContentTypeAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// WatchURL builds the canonical video URL passed to either backend.
func WatchURL(videoID string) string {
	return "https://youtube.com/watch?v=" + videoID
}
