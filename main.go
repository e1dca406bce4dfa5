package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/pidebot/engine/internal/analyzer"
	"github.com/pidebot/engine/internal/core"
	"github.com/pidebot/engine/internal/engine"
	"github.com/pidebot/engine/internal/gateway"
	"github.com/pidebot/engine/internal/server"
	"github.com/pidebot/engine/internal/store"
	logx "github.com/pidebot/engine/pkg/logger"
	pkgpostgres "github.com/pidebot/engine/pkg/postgres"
	pkgredis "github.com/pidebot/engine/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Postgres pkgpostgres.Config
	Redis    pkgredis.Config

	// LLM provider
	Gemini   gateway.GeminiConfig
	Response gateway.Options

	// Conversation lifecycle
	SweepSchedule   string `envconfig:"SWEEP_SCHEDULE" default:"@hourly"`
	SweepMaxAgeSecs int    `envconfig:"SWEEP_MAX_AGE_SECONDS" default:"1800"`
	RestaurantsFile string `envconfig:"RESTAURANTS_FILE" default:"restaurants.json"`
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	ctx := context.Background()

	db := cfg.Postgres.MustNew()
	if err := store.Migrate(db); err != nil {
		logx.Fatal().Err(err).Msg("migration failed")
	}
	st := store.NewGormStore(db)

	var locker engine.Locker = engine.NoopLocker{}
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise redis client")
		}
		defer rdb.Close()
		locker = engine.NewRedisLocker(rdb)
		logx.Info().Msg("redis turn locking enabled")
	} else {
		logx.Warn().Msg("no redis configured, turn locking is in-process only")
	}

	var completer gateway.Completer
	if cfg.Gemini.APIKey != "" {
		var err error
		completer, err = gateway.NewGeminiCompleter(ctx, cfg.Gemini, cfg.Response)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise completion model")
		}
	} else {
		logx.Warn().Msg("no GEMINI_API_KEY set, every reply will use the fallback rotation")
	}
	gw := gateway.New(completer, cfg.Response)

	eng := engine.New(st, gw, analyzer.NewKeywordAnalyzer(), locker)

	sweeper := engine.NewSweeper(st, locker, cfg.SweepSchedule,
		time.Duration(cfg.SweepMaxAgeSecs)*time.Second)
	if err := sweeper.Start(); err != nil {
		logx.Fatal().Err(err).Msg("failed to start sweeper")
	}
	defer sweeper.Stop()

	resolver, err := server.NewFileResolver(cfg.RestaurantsFile)
	if err != nil {
		logx.Fatal().Err(err).Str("path", cfg.RestaurantsFile).Msg("failed to load restaurants")
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(eng, resolver).Router(),
	}

	go func() {
		logx.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("shutdown incomplete")
	}
}
