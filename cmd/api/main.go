package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/podpay/podpay/internal/config"
	"github.com/podpay/podpay/internal/job"
	"github.com/podpay/podpay/internal/megaphone"
	"github.com/podpay/podpay/internal/n8n"
	"github.com/podpay/podpay/internal/proxy"
	"github.com/podpay/podpay/internal/ratelimit"
	"github.com/podpay/podpay/internal/storage/postgres"
	"github.com/podpay/podpay/middleware"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// healthHandler reports service liveness and database reachability.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(pingCtx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "podpay", "database": "up"})
	}
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database config")
	}

	db, err := postgres.ConnectDB(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	if err := postgres.Migrate(db, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	repo := postgres.NewJobRepository(db)
	limiter := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.MonthlyCap)
	jobService := job.NewJobService(repo, limiter, cfg.Retry.MaxAttempts)
	jobHandler := job.NewJobHandler(jobService)
	proxyHandler := proxy.NewHandler(megaphone.NewClient(cfg.Megaphone), n8n.NewClient(cfg.N8N))

	r := gin.New()
	r.Use(gin.Recovery(), middleware.ErrorHandler())

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler(db))

		api.POST("/jobs", jobHandler.Create)
		api.POST("/jobs/batch", jobHandler.CreateBatch)
		api.GET("/jobs", jobHandler.List)
		api.GET("/jobs/:id", jobHandler.Get)
		api.GET("/stats", jobHandler.Stats)

		api.POST("/megaphone/podcasts", proxyHandler.CreatePodcast)
		api.POST("/megaphone/podcasts/:podcastId/episodes", proxyHandler.CreateEpisode)
		api.POST("/n8n/:endpoint", proxyHandler.TriggerWorkflow)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("shutdown complete")
}
