package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/config"
	"github.com/glowstack/studio-automation/internal/crypto"
	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/monitoring"
	"github.com/glowstack/studio-automation/internal/router"
	"github.com/glowstack/studio-automation/internal/scheduler"
	"github.com/glowstack/studio-automation/internal/server"
	"github.com/glowstack/studio-automation/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnv(".env")
	cfg := config.MustNew[config.Config]("")

	if cfg.EncryptionKey != "" {
		if err := crypto.SetKey([]byte(cfg.EncryptionKey)); err != nil {
			log.Fatal().Err(err).Msg("Invalid encryption key")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	var st store.Store = pg
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, running without cache")
		} else {
			st = store.NewCachedStore(pg, client)
			log.Info().Str("addr", cfg.RedisAddr).Msg("Studio cache enabled")
		}
	}

	gw := gateway.New(buildEvaluator(cfg), buildMessenger(cfg), buildBookingSystem(cfg), gateway.Config{
		Attempts: cfg.GatewayAttempts,
		Timeout:  cfg.GatewayTimeout,
	})

	monitoring.InitMetrics()

	rt := router.New(st, gw, gw)
	srv := server.New(st, rt)
	sched := scheduler.New(st, rt, cfg.TickInterval)
	go sched.Run(ctx)

	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server exiting")
}

func buildEvaluator(cfg *config.Config) gateway.TextEvaluator {
	switch cfg.LLMProvider {
	case "anthropic":
		return gateway.NewAnthropicEvaluator(cfg.AnthropicKey, cfg.AnthropicModel)
	default:
		return gateway.NewOpenAIEvaluator(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}
}

func buildMessenger(cfg *config.Config) gateway.Messenger {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		log.Warn().Msg("No SMS credentials, outbound messages will be logged only")
		return gateway.LogMessenger{}
	}
	return gateway.NewTwilioMessenger(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
}

func buildBookingSystem(cfg *config.Config) gateway.BookingSystem {
	if cfg.BookingPlatformURL == "" {
		log.Warn().Msg("No booking platform configured, syncs will be logged only")
		return gateway.NoopBookingSystem{}
	}
	return gateway.NewBooklyClient(cfg.BookingPlatformURL, cfg.BookingPlatformKey)
}
