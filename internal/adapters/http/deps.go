package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fogmap/internal/core/usecases"
	"github.com/samirrijal/fogmap/internal/pkg/config"
)

// Pinger is a dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionService
	NATS     *nats.Conn
	Cache    Pinger
	Auth     config.AuthConfig
	// StaticDir holds the built web client. Empty disables static serving.
	StaticDir string
	// RateLimit is requests per minute per IP. Zero disables limiting.
	RateLimit int
}
