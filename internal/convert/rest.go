package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/config"
)

// RESTConverter calls the hosted download API. The service resolves a video
// id to a short-lived download URL; it does not stream the media itself.
type RESTConverter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	apiHost string
}

func NewRESTConverter(cfg config.ConvertConfig) *RESTConverter {
	return &RESTConverter{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		apiHost: cfg.APIHost,
	}
}

var _ Converter = (*RESTConverter)(nil)

type downloadResponse struct {
	DownloadURL string  `json:"download_url"`
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	FileSize    int64   `json:"file_size"`
	Quality     string  `json:"quality"`
}

func (c *RESTConverter) Convert(ctx context.Context, videoID, contentType string) (*Result, error) {
	format, quality := "mp4", "1080"
	if contentType == config.ContentTypeAudio {
		format, quality = "mp3", "320"
	}

	q := url.Values{}
	q.Set("url", WatchURL(videoID))
	q.Set("format", format)
	q.Set("quality", quality)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download?"+q.Encode(), nil)
	if err != nil {
		return nil, common.NewStepError("convert", videoID, 0, err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, common.NewStepError("convert", videoID, 0, err).Terminal()
		}
		return nil, common.NewStepError("convert", videoID, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.NewStepError("convert", videoID, resp.StatusCode,
			errors.New("rate limit exceeded"))
	case resp.StatusCode == http.StatusNotFound:
		return nil, common.NewStepError("convert", videoID, resp.StatusCode,
			errors.New("video not found or unavailable"))
	case resp.StatusCode == http.StatusForbidden:
		return nil, common.NewStepError("convert", videoID, resp.StatusCode,
			errors.New("access denied, video may be restricted"))
	case resp.StatusCode != http.StatusOK:
		return nil, common.NewStepError("convert", videoID, resp.StatusCode,
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, common.NewStepError("convert", videoID, 0, err)
	}

	var dr downloadResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, common.NewStepError("convert", videoID, 0,
			fmt.Errorf("malformed response: %w", err))
	}
	if dr.DownloadURL == "" {
		// A 2xx with no download URL means the service could not convert
		// this video; retrying will not change that.
		return nil, common.NewStepError("convert", videoID, 0,
			errors.New("no download URL returned")).Terminal()
	}

	return &Result{
		VideoID:     videoID,
		ContentType: contentType,
		DownloadURL: dr.DownloadURL,
		Title:       dr.Title,
		Duration:    dr.Duration,
		FileSize:    dr.FileSize,
		Quality:     dr.Quality,
		ProcessedAt: time.Now(),
	}, nil
}
