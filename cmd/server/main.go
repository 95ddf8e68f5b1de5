package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/atlasops/identity/internal/api"
	"github.com/atlasops/identity/internal/config"
	"github.com/atlasops/identity/internal/database"
	"github.com/atlasops/identity/internal/identity"
	"github.com/atlasops/identity/internal/jobs"
	"github.com/atlasops/identity/internal/logging"
	"github.com/atlasops/identity/internal/oauth"
	"github.com/atlasops/identity/internal/oauth/state"
	"github.com/atlasops/identity/internal/token"
)

func main() {
	// Process environment wins over .env values.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Environment)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get database connection")
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store := identity.NewGormStore(db)

	var states state.Store
	if cfg.RedisAddr != "" {
		redisStates := state.NewRedis(cfg.RedisAddr, cfg.RedisDB, log)
		defer redisStates.Close()
		states = redisStates
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis state store")
	} else {
		states = state.NewMemory()
	}

	client := oauth.NewClient(log)
	resolver := identity.NewResolver(store, log)
	factory := token.NewFactory(cfg.JWT)

	scheduler := jobs.NewScheduler(store, log)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(cfg, store, states, client, resolver, factory, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
