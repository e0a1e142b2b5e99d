package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/fogmap/internal/adapters/viewport"
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/fog"
	"github.com/samirrijal/fogmap/internal/core/ports"
	"github.com/samirrijal/fogmap/internal/core/usecases"
)

// --- Mock LocationSubscriber ---

type delivery struct {
	sessionID string
	sample    domain.Sample
}

type mockSubscriber struct {
	deliveries []delivery
	results    []error
}

func (m *mockSubscriber) SubscribeLocations(ctx context.Context, handler func(ctx context.Context, sessionID string, sample *domain.Sample) error) error {
	for _, d := range m.deliveries {
		s := d.sample
		m.results = append(m.results, handler(ctx, d.sessionID, &s))
	}
	return nil
}

func TestConsumeLocations_AcksSamplesThatCanNeverApply(t *testing.T) {
	svc := usecases.NewSessionService(usecases.SessionConfig{
		Fog: fog.DefaultConfig(),
		DefaultView: domain.View{
			Center: domain.GeoPoint{Lat: 34.702485, Lon: 135.495951},
			Zoom:   15,
			Width:  400,
			Height: 300,
		},
	}, func(v domain.View) ports.MapView { return viewport.New(v) }, nil, nil, nil)

	sum, err := svc.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	on := true
	if _, err := svc.SetMode(context.Background(), sum.ID, domain.ModeUpdate{Tracking: &on}); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	p := domain.GeoPoint{Lat: 34.703, Lon: 135.496}
	sub := &mockSubscriber{deliveries: []delivery{
		{sum.ID, domain.Sample{Point: p, Source: domain.SourceClick}},
		{sum.ID, domain.Sample{Point: p, Source: "evil-1"}},
		{sum.ID, domain.Sample{Point: domain.GeoPoint{Lat: 95, Lon: 0}}},
		{"missing", domain.Sample{Point: p}},
		{sum.ID, domain.Sample{Point: p, Source: domain.SourceGPS}},
	}}

	if err := consumeLocations(context.Background(), sub, svc); err != nil {
		t.Fatalf("consume: %v", err)
	}
	for i, err := range sub.results {
		if err != nil {
			t.Errorf("delivery %d: expected ack, got %v", i, err)
		}
	}

	got, err := svc.Get(context.Background(), sum.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Circles != 1 {
		t.Errorf("only the gps sample should reveal, got %d circles", got.Circles)
	}
}

func TestIsDroppable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{domain.ErrSessionNotFound, true},
		{domain.ErrInvalidPoint, true},
		{domain.ErrInvalidSource, true},
		{fmt.Errorf("ingest: %w", domain.ErrClickIgnored), true},
		{domain.ErrNoMap, false},
		{errors.New("broker hiccup"), false},
	}
	for _, tt := range tests {
		if got := isDroppable(tt.err); got != tt.want {
			t.Errorf("isDroppable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
