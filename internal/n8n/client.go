// Package n8n forwards automation triggers to workflow webhooks.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/podpay/podpay/internal/config"
)

// ErrWorkflowInactive is returned when the webhook endpoint exists but the
// workflow behind it has not been activated.
var ErrWorkflowInactive = errors.New("workflow is not active")

type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(cfg config.N8NConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Trigger posts the payload to the named production webhook and returns the
// workflow's response. A webhook response wrapped in a single-element array
// is unwrapped, matching how workflows commonly emit their last node output.
func (c *Client) Trigger(ctx context.Context, endpoint string, payload json.RawMessage) (json.RawMessage, error) {
	url := c.baseURL + "/webhook/" + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound && strings.Contains(string(body), "not registered") {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrWorkflowInactive)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook %s returned %s", endpoint, resp.Status)
	}

	return unwrap(body), nil
}

func unwrap(body []byte) json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil && len(arr) == 1 {
		return arr[0]
	}
	return body
}
