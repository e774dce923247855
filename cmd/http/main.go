package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/auxroom/auxroom/internal/infrastructure/configs"
	"github.com/auxroom/auxroom/internal/infrastructure/metrics"
	"github.com/auxroom/auxroom/internal/infrastructure/ratelimiter"
	"github.com/auxroom/auxroom/internal/infrastructure/repository"
	"github.com/auxroom/auxroom/internal/infrastructure/tracing"
	"github.com/auxroom/auxroom/internal/infrastructure/ws"
	"github.com/auxroom/auxroom/internal/playback"
	"github.com/auxroom/auxroom/internal/presentation/api"
	"github.com/auxroom/auxroom/internal/presentation/handler/health"
	"github.com/auxroom/auxroom/internal/presentation/handler/rooms"
	"github.com/auxroom/auxroom/internal/protocol"
	"github.com/auxroom/auxroom/internal/session"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	serviceName = "auxroom"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	secret := cfg.Session.Secret
	if secret == "" {
		// Sessions only live in process memory, so an ephemeral secret
		// works; set SESSION_SECRET to keep tokens stable across restarts.
		secret = uuid.NewString()
		logger.Warnw("no session secret configured, generated an ephemeral one")
	}

	compression, err := protocol.ParseCompression(cfg.Codec.Compression)
	if err != nil {
		log.Fatal(err)
	}
	codec := protocol.NewCodec(compression)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	roomRepository := repository.NewRoomRepository(cfg.RoomStore.Capacity, cfg.RoomStore.IdleRoomExpiry)
	sessions := session.NewManager(secret, cfg.Session.TokenTTL, cfg.Session.GracePeriod)

	hub := ws.NewHub(codec, m, logger)
	coordinator := playback.NewCoordinator(playback.Config{
		BufferTimeout: cfg.Sync.BufferTimeout,
		MaxMembers:    cfg.Room.MaxMembers,
		MaxPending:    cfg.Room.MaxPending,
		CommandBuffer: cfg.Sync.CommandBuffer,
	}, roomRepository, sessions, hub, m, logger)
	hub.SetHandler(coordinator)

	roomHandler := rooms.NewHandler(coordinator, hub, logger)
	healthHandler := health.NewHandler()

	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	defer rateLimiter.Close()

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	app := api.NewApplication(*cfg, *roomHandler, *healthHandler, metricsHandler, logger, rateLimiter)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}
