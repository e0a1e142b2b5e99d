package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("fogmap-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Mask.BaseRadius != 1 || cfg.Mask.ReferenceZoom != 10 {
		t.Errorf("unexpected mask defaults: %+v", cfg.Mask)
	}
	if cfg.Telemetry.ServiceName != "fogmap-test" {
		t.Errorf("expected service name fogmap-test, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled by default")
	}
	if cfg.Sessions.Max != 1000 || cfg.Sessions.IdleTimeout != 60 {
		t.Errorf("unexpected session defaults: %+v", cfg.Sessions)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FOGMAP_MASK_BASE_RADIUS", "4")
	t.Setenv("FOGMAP_TRACKER_MIN_STEP_METERS", "12.5")

	cfg, err := Load("fogmap-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mask.BaseRadius != 4 {
		t.Errorf("expected base radius 4, got %g", cfg.Mask.BaseRadius)
	}
	if cfg.Tracker.MinStepMeters != 12.5 {
		t.Errorf("expected min step 12.5, got %g", cfg.Tracker.MinStepMeters)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 0, ReadTimeout: 1, WriteTimeout: 1},
		Auth:     AuthConfig{Username: "admin"},
		Map:      MapConfig{Width: 100, Height: 100, Zoom: 10},
		Mask:     MaskConfig{BaseRadius: 0, Opacity: 2},
		Sessions: SessionsConfig{IdleTimeout: -1},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "auth.username", "mask.base_radius", "mask.opacity", "sessions.idle_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
