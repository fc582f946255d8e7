// Package proxy exposes passthrough endpoints for the podcast CMS and the
// automation webhooks, so browser frontends avoid CORS and never hold the
// upstream credentials.
package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/podpay/podpay/internal/megaphone"
	"github.com/podpay/podpay/internal/n8n"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	megaphone *megaphone.Client
	n8n       *n8n.Client
}

func NewHandler(mc *megaphone.Client, nc *n8n.Client) *Handler {
	return &Handler{megaphone: mc, n8n: nc}
}

// CreatePodcast forwards the body to the CMS and relays the response,
// including CMS validation errors, verbatim.
func (h *Handler) CreatePodcast(c *gin.Context) {
	payload, ok := readBody(c)
	if !ok {
		return
	}

	resp, status, err := h.megaphone.CreatePodcast(c.Request.Context(), payload)
	if err != nil {
		log.Error().Err(err).Msg("podcast create proxy failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "cms unreachable"})
		return
	}
	relay(c, status, resp)
}

// CreateEpisode forwards the body under the given podcast.
func (h *Handler) CreateEpisode(c *gin.Context) {
	payload, ok := readBody(c)
	if !ok {
		return
	}

	resp, status, err := h.megaphone.CreateEpisode(c.Request.Context(), c.Param("podcastId"), payload)
	if err != nil {
		log.Error().Err(err).Str("podcastId", c.Param("podcastId")).Msg("episode create proxy failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "cms unreachable"})
		return
	}
	relay(c, status, resp)
}

// TriggerWorkflow posts the body to the named automation webhook. An
// inactive workflow maps to a descriptive 404 rather than the upstream's
// generic one.
func (h *Handler) TriggerWorkflow(c *gin.Context) {
	payload, ok := readBody(c)
	if !ok {
		return
	}

	resp, err := h.n8n.Trigger(c.Request.Context(), c.Param("endpoint"), payload)
	if err != nil {
		if errors.Is(err, n8n.ErrWorkflowInactive) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "workflow not active",
				"message": "The workflow needs to be activated before its webhook can be called.",
			})
			return
		}
		log.Error().Err(err).Str("endpoint", c.Param("endpoint")).Msg("workflow trigger failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "webhook call failed"})
		return
	}
	relay(c, http.StatusOK, resp)
}

func readBody(c *gin.Context) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return nil, false
	}
	if len(body) > 0 && !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be valid JSON"})
		return nil, false
	}
	return body, true
}

func relay(c *gin.Context, status int, body json.RawMessage) {
	if len(body) == 0 {
		c.Status(status)
		return
	}
	c.Data(status, "application/json", body)
}
