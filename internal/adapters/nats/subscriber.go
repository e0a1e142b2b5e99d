package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/pkg/telemetry"
)

const locationConsumer = "fog-location-processor"

// Subscriber implements ports.LocationSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeLocations consumes fog.location.<session>. Malformed messages are
// terminated; handler errors are redelivered up to three times.
func (s *Subscriber) SubscribeLocations(ctx context.Context, handler func(ctx context.Context, sessionID string, sample *domain.Sample) error) error {
	sub, err := s.js.Subscribe(locationPrefix+">", func(msg *nats.Msg) {
		sessionID, ok := SessionFromLocationSubject(msg.Subject)
		if !ok {
			slog.Warn("dropping location with bad subject", "subject", msg.Subject)
			_ = msg.Term()
			return
		}
		var sample domain.Sample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			slog.Warn("dropping malformed location", "session_id", sessionID, "error", err)
			_ = msg.Term()
			return
		}
		hctx, span := telemetry.Start(ctx, telemetry.SpanConsume, attribute.String("session.id", sessionID))
		defer span.End()
		if err := handler(hctx, sessionID, &sample); err != nil {
			span.RecordError(err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(locationConsumer),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
