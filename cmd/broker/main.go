package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/voice-broker/config"
	"github.com/mossy-p/voice-broker/internal/broker"
	"github.com/mossy-p/voice-broker/internal/handlers"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/orchestrator"
	"github.com/mossy-p/voice-broker/internal/pipeline"
	"github.com/mossy-p/voice-broker/internal/speech"
	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/mossy-p/voice-broker/internal/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	st, err := openStore(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open agent config store")
	}
	defer st.Close()

	issuer := token.NewIssuer(cfg.Media.APIKey, cfg.Media.APISecret, cfg.Media.TokenTTL)
	if !cfg.SigningConfigured() {
		log.Warn().Msg("LIVEKIT_API_KEY or LIVEKIT_API_SECRET not set; sessions cannot be created")
	}
	if cfg.Speech.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set; agent calls will fail to assemble")
	}

	// Calls outlive the request that opened the room, so they hang off the
	// process context rather than the HTTP one.
	builders := speech.Builders(cfg.Speech, &http.Client{Timeout: 60 * time.Second})
	worker := orchestrator.NewWorker(cfg.Agent, builders, pipeline.Options{SampleRate: cfg.Speech.SampleRate}, log.Logger)
	hub := media.NewHub(st, func(s media.Session) { worker.Dispatch(ctx, s) }, log.Logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.Deps{
		Config: cfg,
		Broker: broker.New(cfg, issuer, st, log.Logger),
		Issuer: issuer,
		Store:  st,
		Hub:    hub,
		Logger: log.Logger,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Str("environment", cfg.Environment).Msg("voice broker started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().
		Int("active_rooms", hub.RoomCount()).
		Int("active_calls", worker.ActiveCalls()).
		Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	worker.StopAll()
	worker.Wait()
	log.Info().Msg("server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func openStore(ctx context.Context, cfg config.RedisConfig) (store.Store, error) {
	if cfg.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, keeping agent config in memory")
		return store.NewMemory(), nil
	}
	rs, err := store.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Info().Str("addr", cfg.Addr).Msg("redis connection established")
	return rs, nil
}
