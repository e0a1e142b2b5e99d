package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/samirrijal/fogmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/fogmap/internal/adapters/nats"
	"github.com/samirrijal/fogmap/internal/adapters/surface"
	"github.com/samirrijal/fogmap/internal/adapters/valkey"
	"github.com/samirrijal/fogmap/internal/adapters/viewport"
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/fog"
	"github.com/samirrijal/fogmap/internal/core/ports"
	"github.com/samirrijal/fogmap/internal/core/usecases"
	"github.com/samirrijal/fogmap/internal/pkg/config"
	"github.com/samirrijal/fogmap/internal/pkg/logging"
	"github.com/samirrijal/fogmap/internal/pkg/metrics"
	"github.com/samirrijal/fogmap/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load("fogmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		Auth:      cfg.Auth,
		StaticDir: cfg.Server.StaticDir,
		RateLimit: cfg.Server.RateLimit,
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, mask caching disabled", "error", err)
		} else {
			defer c.Close()
			cache = c
			deps.Cache = c
		}
	}

	// NATS
	var publisher ports.EventPublisher
	var subscriber *natsadapter.Subscriber
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, events disabled", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			deps.NATS = pub.Conn()
		}

		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats location consumer unavailable", "error", err)
		} else {
			defer sub.Close()
			subscriber = sub
		}
	}

	style := surface.Style{
		FogColor:    cfg.Mask.Fill,
		FogOpacity:  cfg.Mask.Opacity,
		PathColor:   cfg.Mask.PathColor,
		PathWidth:   cfg.Mask.PathWidth,
		Transparent: true,
	}
	sessions := usecases.NewSessionService(
		usecases.SessionConfig{
			Fog:          fogConfig(cfg),
			DefaultView:  defaultView(cfg),
			MaskCacheTTL: cfg.Valkey.TTL,
			MaxSessions:  cfg.Sessions.Max,
		},
		func(v domain.View) ports.MapView { return viewport.New(v) },
		map[string]ports.MaskEncoder{
			"svg": surface.SVGEncoder{Style: style},
			"png": surface.PNGEncoder{Style: style},
		},
		publisher,
		cache,
	)
	deps.Sessions = sessions

	if subscriber != nil {
		if err := consumeLocations(ctx, subscriber, sessions); err != nil {
			slog.Warn("subscribe locations failed", "error", err)
		}
	}

	if cfg.Sessions.IdleTimeout > 0 {
		go evictIdle(ctx, sessions, time.Duration(cfg.Sessions.IdleTimeout)*time.Minute)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    8 * 1024 * 1024, // recorded tracks can be large
		AppName:      "FogMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, Location",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func fogConfig(cfg *config.Config) fog.Config {
	return fog.Config{
		Mask: fog.MaskConfig{
			Margin:        cfg.Mask.Margin,
			Width:         float64(cfg.Map.Width),
			Height:        float64(cfg.Map.Height),
			BaseRadius:    cfg.Mask.BaseRadius,
			ReferenceZoom: cfg.Mask.ReferenceZoom,
		},
		Tracker: fog.TrackerConfig{MinStepMeters: cfg.Tracker.MinStepMeters},
	}
}

func defaultView(cfg *config.Config) domain.View {
	return domain.View{
		Center: domain.GeoPoint{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon},
		Zoom:   cfg.Map.Zoom,
		Width:  cfg.Map.Width,
		Height: cfg.Map.Height,
	}
}

// consumeLocations applies queued location samples to their sessions.
// Samples that can never apply are acked and dropped: unknown sessions, bad
// coordinates or source, and clicks while click-to-move is off. Anything else
// is redelivered.
func consumeLocations(ctx context.Context, sub ports.LocationSubscriber, sessions *usecases.SessionService) error {
	return sub.SubscribeLocations(ctx, func(ctx context.Context, sessionID string, sample *domain.Sample) error {
		_, err := sessions.IngestSample(ctx, sessionID, *sample)
		switch {
		case err == nil:
			metrics.LocationsConsumed.WithLabelValues("applied").Inc()
			return nil
		case isDroppable(err):
			metrics.LocationsConsumed.WithLabelValues("dropped").Inc()
			slog.Warn("dropping location", "session_id", sessionID, "error", err)
			return nil
		default:
			metrics.LocationsConsumed.WithLabelValues("failed").Inc()
			return err
		}
	})
}

func isDroppable(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrInvalidPoint) ||
		errors.Is(err, domain.ErrInvalidSource) ||
		errors.Is(err, domain.ErrClickIgnored)
}

func evictIdle(ctx context.Context, sessions *usecases.SessionService, maxIdle time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := sessions.EvictIdle(ctx, maxIdle); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
