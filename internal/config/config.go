package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the process-wide configuration shared by the API server and the
// worker pool. Every component receives its section explicitly; nothing reads
// the environment after startup.
type Config struct {
	Port string `env:"PORT,default=8080"`

	Worker    WorkerConfig    `env:",prefix=WORKER_"`
	Retry     RetryConfig     `env:",prefix=RETRY_"`
	RateLimit RateLimitConfig `env:",prefix=RATELIMIT_"`
	Retention RetentionConfig `env:",prefix=RETENTION_"`
	Convert   ConvertConfig   `env:",prefix=CONVERT_"`
	S3        S3Config        `env:",prefix=S3_"`
	Megaphone MegaphoneConfig `env:",prefix=MEGAPHONE_"`
	N8N       N8NConfig       `env:",prefix=N8N_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
}

type WorkerConfig struct {
	Concurrency  int           `env:"CONCURRENCY,default=5"`
	LockDuration time.Duration `env:"LOCK_DURATION,default=15m"`
}

type RetryConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS,default=3"`
	BaseDelay   time.Duration `env:"BASE_DELAY,default=5s"`
}

type RateLimitConfig struct {
	PerMinute  int   `env:"PER_MINUTE,default=45"`
	MonthlyCap int64 `env:"MONTHLY_CAP,default=160000"`
}

type RetentionConfig struct {
	KeepCompleted int `env:"KEEP_COMPLETED,default=100"`
	KeepFailed    int `env:"KEEP_FAILED,default=50"`
}

type ConvertConfig struct {
	// Mode selects the conversion backend: "rest" calls the hosted
	// conversion API, "ytdlp" shells out to a local downloader.
	Mode       string        `env:"MODE,default=rest"`
	APIKey     string        `env:"API_KEY"`
	APIHost    string        `env:"API_HOST,default=youtube-mp3-mp4-download.p.rapidapi.com"`
	BaseURL    string        `env:"BASE_URL,default=https://youtube-mp3-mp4-download.p.rapidapi.com"`
	YtDlpBin   string        `env:"YTDLP_BIN,default=yt-dlp"`
	ScratchDir string        `env:"SCRATCH_DIR"`
	Timeout    time.Duration `env:"TIMEOUT,default=10m"`
}

type S3Config struct {
	Region    string `env:"REGION"`
	Endpoint  string `env:"ENDPOINT"`
	Bucket    string `env:"BUCKET"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	// BaseURL overrides the derived public URL prefix, for path-style
	// endpoints such as MinIO.
	BaseURL string `env:"BASE_URL"`
}

type MegaphoneConfig struct {
	BaseURL   string `env:"BASE_URL,default=https://cms.megaphone.fm/api"`
	NetworkID string `env:"NETWORK_ID"`
	Token     string `env:"API_TOKEN"`
}

type N8NConfig struct {
	BaseURL string `env:"BASE_URL"`
}

type RedisConfig struct {
	// Addr is optional; lifecycle notifications are disabled when empty.
	Addr    string `env:"ADDR"`
	Channel string `env:"CHANNEL,default=podpay:jobs"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Worker.Concurrency < 1 {
		errs = append(errs, "WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Retry.BaseDelay <= 0 {
		errs = append(errs, "RETRY_BASE_DELAY must be positive")
	}
	if cfg.RateLimit.PerMinute < 1 {
		errs = append(errs, "RATELIMIT_PER_MINUTE must be at least 1")
	}
	if cfg.Convert.Mode != "rest" && cfg.Convert.Mode != "ytdlp" {
		errs = append(errs, "CONVERT_MODE must be rest or ytdlp")
	}
	if cfg.Convert.Timeout <= 0 {
		errs = append(errs, "CONVERT_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
