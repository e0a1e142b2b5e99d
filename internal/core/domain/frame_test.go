package domain_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

func TestPrimitive_ZeroCoordinatesSurviveJSON(t *testing.T) {
	frame := domain.Frame{
		Width:  800,
		Height: 600,
		Zoom:   10,
		Primitives: []domain.Primitive{
			{Kind: domain.PrimitiveRect, Role: domain.RoleMask, X: 0, Y: 0, Width: 800, Height: 600},
			{Kind: domain.PrimitiveCircle, Role: domain.RoleCutout, CX: 0, CY: 0, R: 1},
		},
	}

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw struct {
		Primitives []map[string]interface{} `json:"primitives"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	for _, key := range []string{"x", "y", "width", "height"} {
		if _, ok := raw.Primitives[0][key]; !ok {
			t.Errorf("mask rect is missing %q: %s", key, data)
		}
	}
	for _, key := range []string{"cx", "cy", "r"} {
		if _, ok := raw.Primitives[1][key]; !ok {
			t.Errorf("circle is missing %q: %s", key, data)
		}
	}

	var back domain.Frame
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Primitives, frame.Primitives) {
		t.Errorf("round trip changed primitives: %+v", back.Primitives)
	}
}

func TestSampleSource_Valid(t *testing.T) {
	tests := []struct {
		source domain.SampleSource
		want   bool
	}{
		{domain.SourceGPS, true},
		{domain.SourceClick, true},
		{"", false},
		{"GPS", false},
		{"evil-1", false},
	}
	for _, tt := range tests {
		if got := tt.source.Valid(); got != tt.want {
			t.Errorf("%q.Valid() = %v, want %v", tt.source, got, tt.want)
		}
	}
}
