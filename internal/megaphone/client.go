// Package megaphone is a thin client for the podcast CMS API: creating
// podcasts and episodes, and attaching converted media to an episode.
package megaphone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/podpay/podpay/common"
	"github.com/podpay/podpay/internal/config"
)

type Client struct {
	http      *http.Client
	baseURL   string
	networkID string
	token     string
}

func NewClient(cfg config.MegaphoneConfig) *Client {
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		baseURL:   cfg.BaseURL,
		networkID: cfg.NetworkID,
		token:     cfg.Token,
	}
}

// CreatePodcast posts the raw payload to the network's podcast collection
// and returns the CMS response verbatim. The API surface is passed through
// untouched so callers keep full control over CMS fields.
func (c *Client) CreatePodcast(ctx context.Context, payload json.RawMessage) (json.RawMessage, int, error) {
	url := fmt.Sprintf("%s/networks/%s/podcasts", c.baseURL, c.networkID)
	return c.do(ctx, http.MethodPost, url, payload)
}

// CreateEpisode posts the raw payload under the given podcast.
func (c *Client) CreateEpisode(ctx context.Context, podcastID string, payload json.RawMessage) (json.RawMessage, int, error) {
	url := fmt.Sprintf("%s/networks/%s/podcasts/%s/episodes", c.baseURL, c.networkID, podcastID)
	return c.do(ctx, http.MethodPost, url, payload)
}

// UpdateEpisode attaches the uploaded media URL to an episode. Called by the
// worker at the end of a conversion; failures are classified for retry.
func (c *Client) UpdateEpisode(ctx context.Context, episodeID, fileURL string) error {
	payload, err := json.Marshal(map[string]string{"backgroundAudioFileUrl": fileURL})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/episodes/%s", c.baseURL, episodeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return common.NewStepError("episode update", episodeID, 0, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return common.NewStepError("episode update", episodeID, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return common.NewStepError("episode update", episodeID, resp.StatusCode,
			fmt.Errorf("cms rejected update: %s", resp.Status))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload json.RawMessage) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Token token=%q", c.token))
}
