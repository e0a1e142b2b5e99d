package http

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/fogmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		// PNG masks are already compressed.
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), ".png")
		},
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	if deps.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			// Live map traffic goes over the socket.
			Next: func(c *fiber.Ctx) bool {
				return websocket.IsWebSocketUpgrade(c)
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness stay outside auth and timeouts.
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	if deps.Auth.Enabled() {
		app.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{deps.Auth.Username: deps.Auth.Password},
			Realm: "fogmap",
			Next: func(c *fiber.Ctx) bool {
				switch c.Path() {
				case "/v1/health", "/v1/ready", "/metrics":
					return true
				}
				return false
			},
			Unauthorized: func(c *fiber.Ctx) error {
				c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="fogmap"`)
				return errUnauthorized(c, "authentication required")
			},
		}))
	}

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1 := app.Group("/v1")
	v1.Post("/sessions", withTimeout(CreateSessionHandler(deps)))
	v1.Get("/sessions", withTimeout(ListSessionsHandler(deps)))
	v1.Get("/sessions/:id", withTimeout(GetSessionHandler(deps)))
	v1.Delete("/sessions/:id", withTimeout(CloseSessionHandler(deps)))

	v1.Post("/sessions/:id/samples", withTimeout(IngestSampleHandler(deps)))
	v1.Post("/sessions/:id/track", withTimeout(ImportTrackHandler(deps)))
	v1.Post("/sessions/:id/clicks", withTimeout(ClickHandler(deps)))
	v1.Put("/sessions/:id/view", withTimeout(SetViewHandler(deps)))
	v1.Put("/sessions/:id/mode", withTimeout(SetModeHandler(deps)))
	v1.Delete("/sessions/:id/trail", withTimeout(ResetTrailHandler(deps)))

	v1.Get("/sessions/:id/frame", withTimeout(FrameHandler(deps)))
	v1.Get("/sessions/:id/shapes", withTimeout(ShapesHandler(deps)))
	v1.Get("/sessions/:id/mask.svg", withTimeout(MaskHandler(deps, "svg")))
	v1.Get("/sessions/:id/mask.png", withTimeout(MaskHandler(deps, "png")))
	v1.Get("/sessions/:id/trail.geojson", withTimeout(TrailGeoJSONHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	// WebSocket
	app.Get("/v1/sessions/:id/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(WebSocketHandler(deps)))

	setupStatic(app, deps.StaticDir)
}

// setupStatic serves the built web client with an index.html fallback for
// client-side routes.
func setupStatic(app *fiber.App, dir string) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return
	}

	app.Static("/", dir, fiber.Static{Compress: true})
	app.Get("/*", func(c *fiber.Ctx) error {
		p := c.Path()
		if strings.HasPrefix(p, "/v1/") || strings.HasPrefix(p, "/graphql") || strings.HasPrefix(p, "/docs") {
			return fiber.ErrNotFound
		}
		return c.SendFile(index)
	})
}
