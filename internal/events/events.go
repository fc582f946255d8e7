// Package events publishes job lifecycle notifications so frontends can
// react without polling. Publishing is best effort; the queue never blocks
// on a notification.
package events

import (
	"context"
	"encoding/json"

	"github.com/podpay/podpay/internal/config"
	"github.com/redis/go-redis/v9"
)

type Event struct {
	JobID    uint   `json:"job_id"`
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher returns nil when no address is configured; callers fall
// back to NopPublisher.
func NewRedisPublisher(cfg config.RedisConfig) *RedisPublisher {
	if cfg.Addr == "" {
		return nil
	}
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		channel: cfg.Channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
