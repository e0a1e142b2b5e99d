package usecases_test

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samirrijal/fogmap/internal/adapters/viewport"
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/fog"
	"github.com/samirrijal/fogmap/internal/core/ports"
	"github.com/samirrijal/fogmap/internal/core/usecases"
	"github.com/samirrijal/fogmap/internal/pkg/metrics"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	reveals []domain.RevealEvent
	frames  []domain.Frame
	frameFn func(ctx context.Context, sessionID string, frame *domain.Frame) error
}

func (m *mockPublisher) PublishReveal(ctx context.Context, event *domain.RevealEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reveals = append(m.reveals, *event)
	return nil
}

func (m *mockPublisher) PublishFrame(ctx context.Context, sessionID string, frame *domain.Frame) error {
	m.mu.Lock()
	m.frames = append(m.frames, *frame)
	m.mu.Unlock()
	if m.frameFn != nil {
		return m.frameFn(ctx, sessionID, frame)
	}
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock MaskEncoder ---

type mockEncoder struct {
	calls int
}

func (m *mockEncoder) ContentType() string { return "text/plain" }

func (m *mockEncoder) Encode(w io.Writer, frame domain.Frame) error {
	m.calls++
	_, err := io.WriteString(w, "frame")
	return err
}

// --- Helpers ---

func defaultTestView() domain.View {
	return domain.View{Center: domain.GeoPoint{Lat: 43.263, Lon: -2.935}, Zoom: 15, Width: 800, Height: 600}
}

func newService(pub ports.EventPublisher, cache ports.CacheService, enc ports.MaskEncoder) *usecases.SessionService {
	cfg := usecases.SessionConfig{
		Fog:          fog.DefaultConfig(),
		DefaultView:  defaultTestView(),
		MaskCacheTTL: 30,
	}
	encoders := map[string]ports.MaskEncoder{}
	if enc != nil {
		encoders["svg"] = enc
	}
	newView := func(v domain.View) ports.MapView { return viewport.New(v) }
	return usecases.NewSessionService(cfg, newView, encoders, pub, cache)
}

func mustCreate(t *testing.T, svc *usecases.SessionService) string {
	t.Helper()
	sum, err := svc.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sum.ID
}

func track(t *testing.T, svc *usecases.SessionService, id string, on bool) {
	t.Helper()
	if _, err := svc.SetMode(context.Background(), id, domain.ModeUpdate{Tracking: &on}); err != nil {
		t.Fatalf("set mode: %v", err)
	}
}

// --- Tests ---

func TestSessionService_CreateUsesDefaultViewAndPublishesFrame(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil, nil)

	sum, err := svc.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.ID == "" {
		t.Fatal("expected a session ID")
	}
	if sum.View != defaultTestView() {
		t.Errorf("expected default view, got %+v", sum.View)
	}
	if !sum.State.HasMap {
		t.Error("expected map to be attached")
	}
	if !sum.Interactive {
		t.Error("new sessions start with gestures enabled")
	}
	if len(pub.frames) != 1 {
		t.Fatalf("expected initial frame to be published, got %d", len(pub.frames))
	}
	if _, ok := pub.frames[0].Mask(); !ok {
		t.Error("initial frame should contain the mask rect")
	}
}

func TestSessionService_CreateRejectsInvalidView(t *testing.T) {
	svc := newService(nil, nil, nil)

	_, err := svc.Create(context.Background(), &domain.View{Zoom: 15, Width: 0, Height: 600})
	if !errors.Is(err, domain.ErrInvalidView) {
		t.Errorf("expected ErrInvalidView, got %v", err)
	}

	_, err = svc.Create(context.Background(), &domain.View{Center: domain.GeoPoint{Lat: 120}, Zoom: 15, Width: 10, Height: 10})
	if err == nil {
		t.Error("expected error for out-of-range center")
	}
}

func TestSessionService_MaxSessions(t *testing.T) {
	svc := usecases.NewSessionService(usecases.SessionConfig{
		Fog:         fog.DefaultConfig(),
		DefaultView: defaultTestView(),
		MaxSessions: 1,
	}, func(v domain.View) ports.MapView { return viewport.New(v) }, nil, nil, nil)

	mustCreate(t, svc)
	if _, err := svc.Create(context.Background(), nil); !errors.Is(err, usecases.ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}
}

func TestSessionService_IngestWhileIdleOnlyMovesMarker(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil, nil)
	id := mustCreate(t, svc)

	res, err := svc.IngestSample(context.Background(), id, domain.Sample{Point: domain.GeoPoint{Lat: 43.264, Lon: -2.934}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted {
		t.Error("idle sessions must not accept samples")
	}
	if len(pub.reveals) != 0 {
		t.Errorf("expected no reveal events, got %d", len(pub.reveals))
	}

	sum, _ := svc.Get(context.Background(), id)
	if sum.State.NowCoordinates == nil || sum.State.NowCoordinates.Lat != 43.264 {
		t.Errorf("marker not moved: %+v", sum.State.NowCoordinates)
	}
}

func TestSessionService_TrackingRevealsAndPublishes(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)

	points := []domain.GeoPoint{
		{Lat: 43.2630, Lon: -2.9350},
		{Lat: 43.2640, Lon: -2.9350},
		{Lat: 43.2640, Lon: -2.9340},
	}
	var last *domain.IngestResult
	for _, p := range points {
		res, err := svc.IngestSample(context.Background(), id, domain.Sample{Point: p})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Accepted {
			t.Fatalf("sample %+v not accepted", p)
		}
		last = res
	}

	if last.Circles != 3 || last.Quads != 2 {
		t.Errorf("expected 3 circles / 2 quads, got %d / %d", last.Circles, last.Quads)
	}
	if len(pub.reveals) != 3 {
		t.Fatalf("expected 3 reveal events, got %d", len(pub.reveals))
	}
	if pub.reveals[2].Source != domain.SourceGPS || pub.reveals[2].SessionID != id {
		t.Errorf("unexpected reveal event %+v", pub.reveals[2])
	}

	sum, _ := svc.Get(context.Background(), id)
	if sum.Interactive {
		t.Error("tracking must lock gestures")
	}
	if math.Abs(sum.View.Center.Lat-points[2].Lat) > 1e-6 || math.Abs(sum.View.Center.Lon-points[2].Lon) > 1e-6 {
		t.Errorf("expected map recentred on last point, got %+v", sum.View.Center)
	}
	if sum.TrailMeters <= 0 {
		t.Error("expected trail length")
	}
	if sum.Revealed == nil {
		t.Error("expected revealed bounds")
	}

	shapes, err := svc.Shapes(context.Background(), id)
	if err != nil {
		t.Fatalf("shapes: %v", err)
	}
	if len(shapes) != 5 {
		t.Errorf("expected 5 shapes, got %d", len(shapes))
	}
}

func TestSessionService_IngestErrors(t *testing.T) {
	svc := newService(nil, nil, nil)
	id := mustCreate(t, svc)

	_, err := svc.IngestSample(context.Background(), id, domain.Sample{Point: domain.GeoPoint{Lat: 91}})
	if !errors.Is(err, domain.ErrInvalidPoint) {
		t.Errorf("expected ErrInvalidPoint, got %v", err)
	}

	_, err = svc.IngestSample(context.Background(), "missing", domain.Sample{Point: domain.GeoPoint{Lat: 1, Lon: 1}})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionService_ClickToMove(t *testing.T) {
	svc := newService(nil, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)

	screen := domain.ScreenPoint{X: 400, Y: 300}
	_, err := svc.Click(context.Background(), id, domain.Click{Screen: &screen})
	if !errors.Is(err, domain.ErrClickIgnored) {
		t.Fatalf("expected ErrClickIgnored, got %v", err)
	}

	on := true
	if _, err := svc.SetMode(context.Background(), id, domain.ModeUpdate{ClickToMove: &on}); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	res, err := svc.Click(context.Background(), id, domain.Click{Screen: &screen})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted || res.Circles != 1 {
		t.Errorf("expected one accepted circle, got %+v", res)
	}

	shapes, _ := svc.Shapes(context.Background(), id)
	c := shapes[0].Center
	if math.Abs(c.Lat-43.263) > 1e-6 || math.Abs(c.Lon+2.935) > 1e-6 {
		t.Errorf("viewport centre click should unproject to the map centre, got %+v", c)
	}

	if _, err := svc.Click(context.Background(), id, domain.Click{}); !errors.Is(err, domain.ErrInvalidPoint) {
		t.Errorf("expected ErrInvalidPoint for empty click, got %v", err)
	}
}

func TestSessionService_SetView(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil, nil)
	id := mustCreate(t, svc)

	zoom := 17.0
	frame, err := svc.SetView(context.Background(), id, domain.ViewUpdate{Zoom: &zoom})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Zoom != 17 {
		t.Errorf("expected zoom 17, got %g", frame.Zoom)
	}

	track(t, svc, id, true)
	if _, err := svc.SetView(context.Background(), id, domain.ViewUpdate{Zoom: &zoom}); !errors.Is(err, domain.ErrGesturesLocked) {
		t.Errorf("expected ErrGesturesLocked, got %v", err)
	}

	width := 1024
	frame, err = svc.SetView(context.Background(), id, domain.ViewUpdate{Width: &width})
	if err != nil {
		t.Fatalf("resize should be allowed while tracking: %v", err)
	}
	if frame.Width != 1024 {
		t.Errorf("expected width 1024, got %g", frame.Width)
	}

	bad := 99.0
	if _, err := svc.SetView(context.Background(), id, domain.ViewUpdate{Zoom: &bad}); !errors.Is(err, domain.ErrInvalidView) {
		t.Errorf("expected ErrInvalidView, got %v", err)
	}
}

func TestSessionService_TrackingRoundTripKeepsShapes(t *testing.T) {
	svc := newService(nil, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)

	for i := 0; i < 3; i++ {
		p := domain.GeoPoint{Lat: 43.263 + float64(i)*0.001, Lon: -2.935}
		if _, err := svc.IngestSample(context.Background(), id, domain.Sample{Point: p}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	track(t, svc, id, false)
	track(t, svc, id, true)

	sum, _ := svc.Get(context.Background(), id)
	if sum.Circles != 3 || sum.Quads != 2 {
		t.Errorf("toggling tracking must keep shapes, got %d / %d", sum.Circles, sum.Quads)
	}
}

func TestSessionService_ResetTrail(t *testing.T) {
	svc := newService(nil, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)
	_, _ = svc.IngestSample(context.Background(), id, domain.Sample{Point: domain.GeoPoint{Lat: 43.263, Lon: -2.935}})

	if err := svc.ResetTrail(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum, _ := svc.Get(context.Background(), id)
	if sum.Circles != 0 || sum.Quads != 0 {
		t.Errorf("expected empty store, got %d / %d", sum.Circles, sum.Quads)
	}
	trail, _ := svc.Trail(context.Background(), id)
	if len(trail) != 0 {
		t.Errorf("expected empty trail, got %v", trail)
	}
}

func TestSessionService_RenderMaskIsCachedPerRevision(t *testing.T) {
	cache := newMockCache()
	enc := &mockEncoder{}
	svc := newService(nil, cache, enc)
	id := mustCreate(t, svc)

	var etag string
	for i := 0; i < 2; i++ {
		img, err := svc.RenderMask(context.Background(), id, "svg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(img.Data) != "frame" || img.ContentType != "text/plain" {
			t.Errorf("unexpected render %q %q", img.Data, img.ContentType)
		}
		if etag != "" && img.ETag != etag {
			t.Errorf("ETag changed without a new revision: %s vs %s", etag, img.ETag)
		}
		etag = img.ETag
	}
	if enc.calls != 1 {
		t.Errorf("expected one encode, got %d", enc.calls)
	}

	track(t, svc, id, true)
	_, _ = svc.IngestSample(context.Background(), id, domain.Sample{Point: domain.GeoPoint{Lat: 43.264, Lon: -2.935}})
	img, err := svc.RenderMask(context.Background(), id, "svg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ETag == etag {
		t.Error("expected a new ETag after the store changed")
	}
	if enc.calls != 2 {
		t.Errorf("a new revision must re-encode, got %d encodes", enc.calls)
	}

	if _, err := svc.RenderMask(context.Background(), id, "gif"); !errors.Is(err, domain.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestSessionService_ListAndClose(t *testing.T) {
	svc := newService(nil, nil, nil)
	a := mustCreate(t, svc)
	b := mustCreate(t, svc)
	mustCreate(t, svc)

	page, total := svc.List(context.Background(), 0, 2)
	if total != 3 || len(page) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(page), total)
	}
	if page[0].ID != a || page[1].ID != b {
		t.Errorf("expected creation order, got %s, %s", page[0].ID, page[1].ID)
	}

	if err := svc.Close(context.Background(), a); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := svc.Close(context.Background(), a); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second close, got %v", err)
	}
	if _, total := svc.List(context.Background(), 0, 10); total != 2 {
		t.Errorf("expected 2 sessions left, got %d", total)
	}
}

func TestSessionService_EvictIdle(t *testing.T) {
	svc := newService(nil, nil, nil)
	mustCreate(t, svc)
	mustCreate(t, svc)

	if n := svc.EvictIdle(context.Background(), time.Hour); n != 0 {
		t.Errorf("fresh sessions must survive, evicted %d", n)
	}
	if n := svc.EvictIdle(context.Background(), -time.Hour); n != 2 {
		t.Errorf("expected 2 evictions, got %d", n)
	}
}

func TestSessionService_ConcurrentSamplesAreSerialised(t *testing.T) {
	svc := newService(&mockPublisher{}, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.GeoPoint{Lat: 43.263 + float64(i)*0.0001, Lon: -2.935}
			_, _ = svc.IngestSample(context.Background(), id, domain.Sample{Point: p})
		}(i)
	}
	wg.Wait()

	sum, _ := svc.Get(context.Background(), id)
	if sum.Circles != 20 || sum.Quads != 19 {
		t.Errorf("expected 20 circles / 19 quads, got %d / %d", sum.Circles, sum.Quads)
	}
}

func TestSessionService_IngestRejectsUnknownSource(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)

	before := testutil.CollectAndCount(metrics.SamplesReceived)
	for _, src := range []domain.SampleSource{"evil-1", "evil-2", "GPS"} {
		_, err := svc.IngestSample(context.Background(), id, domain.Sample{
			Point:  domain.GeoPoint{Lat: 43.264, Lon: -2.934},
			Source: src,
		})
		if !errors.Is(err, domain.ErrInvalidSource) {
			t.Errorf("source %q: expected ErrInvalidSource, got %v", src, err)
		}
	}
	if after := testutil.CollectAndCount(metrics.SamplesReceived); after != before {
		t.Errorf("rejected sources must not add metric series: %d -> %d", before, after)
	}
	if len(pub.reveals) != 0 {
		t.Errorf("expected no reveal events, got %d", len(pub.reveals))
	}
	sum, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sum.Circles != 0 {
		t.Errorf("expected no circles, got %d", sum.Circles)
	}
}

func TestSessionService_CloseIfStaleRechecksUnderLock(t *testing.T) {
	svc := newService(nil, nil, nil)
	id := mustCreate(t, svc)

	// The session was touched after this cutoff, so a stale scan result is ignored.
	if svc.CloseIfStale(id, time.Now().Add(-time.Hour)) {
		t.Fatal("fresh session must not be evicted")
	}
	if _, err := svc.Get(context.Background(), id); err != nil {
		t.Fatalf("session should survive: %v", err)
	}

	if !svc.CloseIfStale(id, time.Now().Add(time.Hour)) {
		t.Fatal("expected stale session to be evicted")
	}
	if _, err := svc.Get(context.Background(), id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after eviction, got %v", err)
	}
	if svc.CloseIfStale(id, time.Now().Add(time.Hour)) {
		t.Error("second eviction must report nothing closed")
	}
}

func TestSessionService_TrailSnapshot(t *testing.T) {
	svc := newService(&mockPublisher{}, nil, nil)
	id := mustCreate(t, svc)
	track(t, svc, id, true)

	for _, p := range []domain.GeoPoint{{Lat: 43.264, Lon: -2.934}, {Lat: 43.265, Lon: -2.934}} {
		if _, err := svc.IngestSample(context.Background(), id, domain.Sample{Point: p}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	snap, err := svc.TrailSnapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	sum, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Revision != sum.Revision {
		t.Errorf("revision mismatch: snapshot %d, summary %d", snap.Revision, sum.Revision)
	}
	if len(snap.Segments) != 1 || len(snap.Segments[0]) != 2 {
		t.Errorf("expected one segment of two points, got %+v", snap.Segments)
	}
	if snap.Revealed == nil {
		t.Error("expected revealed bounds")
	}

	if _, err := svc.TrailSnapshot(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
