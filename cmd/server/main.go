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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/WaterRocket/internal/adapters/http"
	"github.com/dkeye/WaterRocket/internal/adapters/live"
	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/app/flight"
	"github.com/dkeye/WaterRocket/internal/config"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	var (
		metrics   *observability.Collector
		hubObs    core.HubObserver
		launchObs app.LaunchObserver
		chatObs   app.ChatObserver
	)
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewCollector(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register metrics")
		}
		hubObs, launchObs, chatObs = metrics, metrics, metrics
	}

	hub := core.NewHub(cfg.MaxViewers, hubObs)
	chat := app.NewChatRelay(hub, app.NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval), cfg.Chat.MaxTextLen, chatObs)
	deps := router.Deps{
		Hub:      hub,
		Launches: app.NewLaunchService(hub, flight.NewEventRoller(nil), launchObs),
		Chat:     chat,
		Live: live.NewController(hub, chat, live.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait,
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		}),
		Metrics: metrics,
	}

	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("WaterRocket server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	// Viewer streams never finish on their own, so close them before waiting on handlers.
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing)
	log.Info().Msg("Server exited gracefully")
}
