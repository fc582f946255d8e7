package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func(context.Context, any) error
		expectError   bool
		errorContains string
		validate      func(*testing.T, *Config)
	}{
		{
			name: "valid configuration",
			setupEnv: func(ctx context.Context, v any) error {
				cfg := v.(*Config)
				cfg.User = "testuser"
				cfg.Password = "testpass"
				cfg.Host = "localhost"
				cfg.Port = "5432"
				cfg.Database = "podpay"
				cfg.MaxRetries = 10
				cfg.RetryDelay = 2 * time.Second
				cfg.LogLevelString = "warn"
				return nil
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "testuser", cfg.User)
				assert.Equal(t, logger.Warn, cfg.LogLevel)
			},
		},
		{
			name: "missing user",
			setupEnv: func(ctx context.Context, v any) error {
				cfg := v.(*Config)
				cfg.User = " "
				cfg.Host = "localhost"
				cfg.Port = "5432"
				cfg.Database = "podpay"
				cfg.MaxRetries = 1
				cfg.RetryDelay = time.Second
				return nil
			},
			expectError:   true,
			errorContains: "POSTGRES_USER is required",
		},
		{
			name: "non-numeric port",
			setupEnv: func(ctx context.Context, v any) error {
				cfg := v.(*Config)
				cfg.User = "u"
				cfg.Host = "localhost"
				cfg.Port = "abc"
				cfg.Database = "podpay"
				cfg.MaxRetries = 1
				cfg.RetryDelay = time.Second
				return nil
			},
			expectError:   true,
			errorContains: "POSTGRES_PORT must be a valid number",
		},
		{
			name: "port out of range",
			setupEnv: func(ctx context.Context, v any) error {
				cfg := v.(*Config)
				cfg.User = "u"
				cfg.Host = "localhost"
				cfg.Port = "70000"
				cfg.Database = "podpay"
				cfg.MaxRetries = 1
				cfg.RetryDelay = time.Second
				return nil
			},
			expectError:   true,
			errorContains: "POSTGRES_PORT must be between 1 and 65535",
		},
		{
			name: "non-positive retry delay",
			setupEnv: func(ctx context.Context, v any) error {
				cfg := v.(*Config)
				cfg.User = "u"
				cfg.Host = "localhost"
				cfg.Port = "5432"
				cfg.Database = "podpay"
				cfg.MaxRetries = 1
				cfg.RetryDelay = 0
				return nil
			},
			expectError:   true,
			errorContains: "DB_RETRY_DELAY must be positive",
		},
		{
			name: "env processing failure",
			setupEnv: func(ctx context.Context, v any) error {
				return fmt.Errorf("boom")
			},
			expectError:   true,
			errorContains: "failed to process env config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := envProcess
			defer func() { envProcess = original }()

			envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
				return tt.setupEnv(ctx, v)
			}

			cfg, err := LoadConfigFromEnv(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				return
			}

			assert.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"INFO", logger.Info},
		{"unknown", logger.Warn},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), tt.in)
	}
}

func TestSimplifyDBError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("password authentication failed for user"), "invalid database credentials"},
		{errors.New("failed to connect to host"), "cannot reach database server"},
		{errors.New("i/o timeout"), "database connection timed out"},
		{errors.New("SASL auth failed"), "authentication error"},
		{errors.New("something else"), "database error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, simplifyDBError(tt.err))
	}
}
