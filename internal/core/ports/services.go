package ports

import (
	"context"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishReveal(ctx context.Context, event *domain.RevealEvent) error
	PublishFrame(ctx context.Context, sessionID string, frame *domain.Frame) error
}

// LocationSubscriber delivers geolocation samples from a message broker.
type LocationSubscriber interface {
	SubscribeLocations(ctx context.Context, handler func(ctx context.Context, sessionID string, sample *domain.Sample) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
