package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/credential"
	"github.com/mailblast/mailblast/internal/database"
	"github.com/mailblast/mailblast/internal/email"
	"github.com/mailblast/mailblast/internal/handler"
	"github.com/mailblast/mailblast/internal/logger"
	"github.com/mailblast/mailblast/internal/middleware"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
	"github.com/mailblast/mailblast/internal/router"
	"github.com/mailblast/mailblast/internal/service"
	"github.com/mailblast/mailblast/internal/session"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", handler.Version).Msg("starting mailblast server")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Providers with incomplete configuration are skipped
	providers, errs := oauth.FromConfig(cfg, oauth.WithTimeout(cfg.Send.RequestTimeout))
	for _, err := range errs {
		if errors.Is(err, oauth.ErrNoProviders) {
			log.Fatal().Err(err).Msg("no mail provider is configured")
		}
		log.Warn().Err(err).Msg("provider disabled")
	}

	// Connect to Redis when sessions or rate limits need it
	var rdb *database.Redis
	if cfg.Session.Store == "redis" || cfg.RateLimit.Enabled {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("connected to Redis")
	}

	var store service.SessionStore
	switch cfg.Session.Store {
	case "redis":
		store = credential.NewRedis(rdb, cfg.Session.TTL)
	default:
		mem := credential.NewMemory(cfg.Session.TTL, credential.WithCleanupInterval(time.Minute))
		defer mem.Close()
		store = mem
	}
	log.Info().Str("store", cfg.Session.Store).Msg("session store initialized")

	// Transports for every configured provider
	var transports []email.Transport
	if p, ok := providers.Get(model.ProviderGoogle); ok {
		t, err := email.New(p, email.WithTimeout(cfg.Send.RequestTimeout))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Gmail transport")
		}
		transports = append(transports, t)
	}
	if p, ok := providers.Get(model.ProviderMicrosoft); ok {
		opts := []email.Option{email.WithTimeout(cfg.Send.RequestTimeout)}
		if cfg.Microsoft.GraphURL != "" {
			opts = append(opts, email.WithEndpoint(cfg.Microsoft.GraphURL))
		}
		t, err := email.New(p, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Graph transport")
		}
		transports = append(transports, t)
	}

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session manager")
	}

	// Initialize services
	authSvc := service.NewAuthService(providers, store, log)
	sendSvc := service.NewSendService(store, log, transports...)

	h := handler.New(rdb, log, cfg, providers, authSvc, sendSvc)
	mw := middleware.New(rdb, log, cfg, sessions)
	r := router.New(h, mw, cfg)

	// Batches run within the send request, so there is no write timeout
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
