package usecases

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/fog"
	"github.com/samirrijal/fogmap/internal/core/ports"
	"github.com/samirrijal/fogmap/internal/pkg/metrics"
	"github.com/samirrijal/fogmap/internal/pkg/telemetry"
)

// SessionConfig configures every session the service creates.
type SessionConfig struct {
	Fog         fog.Config
	DefaultView domain.View
	// MaskCacheTTL is the lifetime of rendered masks in seconds. Zero disables
	// caching.
	MaskCacheTTL int
	// MaxSessions caps open sessions. Zero means unlimited.
	MaxSessions int
}

// ErrTooManySessions is returned by Create when MaxSessions is reached.
var ErrTooManySessions = errors.New("session limit reached")

// SessionService owns the fog sessions of all connected clients.
type SessionService struct {
	cfg       SessionConfig
	newView   func(domain.View) ports.MapView
	encoders  map[string]ports.MaskEncoder
	publisher ports.EventPublisher
	cache     ports.CacheService
	validate  *validator.Validate
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// session serialises every event for one client: its mutex is the event
// dispatcher for the controller, which is not safe for concurrent use.
type session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	updatedAt time.Time
	view      ports.MapView
	ctrl      *fog.Controller
	sink      *frameSink
}

// frameSink is the live surface of a session. It keeps the latest frame until
// the service publishes it.
type frameSink struct {
	pending *domain.Frame
}

func (f *frameSink) Draw(frame domain.Frame) error {
	f.pending = &frame
	return nil
}

func (f *frameSink) take() *domain.Frame {
	p := f.pending
	f.pending = nil
	return p
}

// NewSessionService creates a new SessionService. newView builds the
// server-side map for each session; encoders are keyed by format name
// ("svg", "png"). publisher and cache may be nil.
func NewSessionService(
	cfg SessionConfig,
	newView func(domain.View) ports.MapView,
	encoders map[string]ports.MaskEncoder,
	publisher ports.EventPublisher,
	cache ports.CacheService,
) *SessionService {
	return &SessionService{
		cfg:       cfg,
		newView:   newView,
		encoders:  encoders,
		publisher: publisher,
		cache:     cache,
		validate:  validator.New(),
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Create opens a session with its own controller and attaches a server-side
// map. A nil view uses the configured default.
func (s *SessionService) Create(ctx context.Context, view *domain.View) (*domain.SessionSummary, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanCreateSession)
	defer span.End()

	v := s.cfg.DefaultView
	if view != nil {
		v = *view
	}
	if err := s.validateView(v); err != nil {
		return nil, err
	}

	now := s.now()
	sink := &frameSink{}
	sess := &session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
		view:      s.newView(v),
		ctrl:      fog.NewController(s.cfg.Fog, sink),
		sink:      sink,
	}
	span.SetAttributes(attribute.String("session.id", sess.id))

	// Not yet shared, so no session lock is needed.
	if _, err := timedRedraw(func() (domain.Frame, error) { return sess.ctrl.AttachMap(sess.view) }); err != nil {
		return nil, fmt.Errorf("attach map: %w", err)
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.flush(ctx, sess)

	slog.Info("session created", "session_id", sess.id, "zoom", v.Zoom, "width", v.Width, "height", v.Height)
	return sess.summary(), nil
}

// List returns sessions ordered by creation time, plus the total count.
func (s *SessionService) List(ctx context.Context, offset, limit int) ([]domain.SessionSummary, int) {
	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].createdAt.Equal(all[j].createdAt) {
			return all[i].id < all[j].id
		}
		return all[i].createdAt.Before(all[j].createdAt)
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	out := make([]domain.SessionSummary, 0, end-offset)
	for _, sess := range all[offset:end] {
		sess.mu.Lock()
		out = append(out, *sess.summary())
		sess.mu.Unlock()
	}
	return out, total
}

// DefaultView returns the view new sessions get when none is given.
func (s *SessionService) DefaultView() domain.View {
	return s.cfg.DefaultView
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Get returns the summary of one session.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.SessionSummary, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.summary(), nil
}

// Close drops a session. Its fog is discarded.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	metrics.ActiveSessions.Dec()
	slog.Info("session closed", "session_id", id)
	return nil
}

// EvictIdle closes sessions untouched for longer than maxIdle and returns how
// many were dropped.
func (s *SessionService) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.RLock()
	var stale []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.updatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if s.closeIfStale(id, cutoff) {
			n++
		}
	}
	return n
}

// closeIfStale re-checks staleness under the registry write lock, so a
// session touched since the scan survives.
func (s *SessionService) closeIfStale(id string, cutoff time.Time) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.mu.Lock()
		ok = sess.updatedAt.Before(cutoff)
		sess.mu.Unlock()
	}
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	metrics.ActiveSessions.Dec()
	slog.Info("session evicted", "session_id", id)
	return true
}

// IngestSample feeds a geolocation sample into a session.
func (s *SessionService) IngestSample(ctx context.Context, id string, sample domain.Sample) (*domain.IngestResult, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanIngestSample, attribute.String("session.id", id))
	defer span.End()

	if !sample.Point.Valid() {
		return nil, domain.ErrInvalidPoint
	}
	if sample.Source == "" {
		sample.Source = domain.SourceGPS
	}
	if !sample.Source.Valid() {
		return nil, domain.ErrInvalidSource
	}
	if sample.Time.IsZero() {
		sample.Time = s.now()
	}
	metrics.SamplesReceived.WithLabelValues(string(sample.Source)).Inc()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	var out fog.Outcome
	if sample.Source == domain.SourceClick {
		out, err = sess.ctrl.OnClick(sample.Point)
	} else {
		out, err = sess.ctrl.OnLocation(sample.Point)
	}
	if err != nil {
		return nil, err
	}
	return s.afterSample(ctx, sess, sample, out), nil
}

// Click applies a map click. Screen coordinates are unprojected through the
// session's current view.
func (s *SessionService) Click(ctx context.Context, id string, click domain.Click) (*domain.IngestResult, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanClick, attribute.String("session.id", id))
	defer span.End()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	var p domain.GeoPoint
	switch {
	case click.Point != nil:
		p = *click.Point
	case click.Screen != nil:
		p = sess.view.Unproject(*click.Screen)
	default:
		return nil, domain.ErrInvalidPoint
	}
	if !p.Valid() {
		return nil, domain.ErrInvalidPoint
	}

	metrics.SamplesReceived.WithLabelValues(string(domain.SourceClick)).Inc()
	out, err := sess.ctrl.OnClick(p)
	if err != nil {
		return nil, err
	}
	sample := domain.Sample{Point: p, Source: domain.SourceClick, Time: s.now()}
	return s.afterSample(ctx, sess, sample, out), nil
}

// SetView pans, zooms or resizes the session map. Pan and zoom are user
// gestures and are refused while tracking; resizing is always allowed.
func (s *SessionService) SetView(ctx context.Context, id string, upd domain.ViewUpdate) (*domain.Frame, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanSetView, attribute.String("session.id", id))
	defer span.End()

	if err := s.validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidView, err)
	}
	if upd.Center != nil && !upd.Center.Valid() {
		return nil, domain.ErrInvalidPoint
	}

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	gesture := upd.Center != nil || upd.Zoom != nil
	if gesture && !sess.view.Interactive() {
		return nil, domain.ErrGesturesLocked
	}

	if upd.Width != nil || upd.Height != nil {
		w, h := 0, 0
		if upd.Width != nil {
			w = *upd.Width
		}
		if upd.Height != nil {
			h = *upd.Height
		}
		sess.view.Resize(w, h)
	}
	if upd.Center != nil {
		sess.view.PanTo(*upd.Center)
	}
	if upd.Zoom != nil {
		sess.view.SetZoom(*upd.Zoom)
	}

	var frame domain.Frame
	if upd.Zoom != nil {
		frame, err = timedRedraw(sess.ctrl.OnZoom)
	} else {
		frame, err = timedRedraw(sess.ctrl.OnMove)
	}
	if err != nil {
		return nil, err
	}
	sess.touch(s.now())
	s.flush(ctx, sess)
	return &frame, nil
}

// SetMode toggles tracking and click-to-move.
func (s *SessionService) SetMode(ctx context.Context, id string, upd domain.ModeUpdate) (*domain.SessionSummary, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanSetMode, attribute.String("session.id", id))
	defer span.End()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if upd.ClickToMove != nil {
		sess.ctrl.SetClickToMove(*upd.ClickToMove)
	}
	if upd.Tracking != nil {
		changed, err := sess.ctrl.SetTracking(*upd.Tracking)
		if err != nil {
			return nil, err
		}
		if changed {
			slog.Info("tracking mode changed", "session_id", id, "tracking", *upd.Tracking)
		}
	}
	sess.touch(s.now())
	s.flush(ctx, sess)
	return sess.summary(), nil
}

// ResetTrail clears the revealed area and the path of a session.
func (s *SessionService) ResetTrail(ctx context.Context, id string) error {
	ctx, span := telemetry.Start(ctx, telemetry.SpanResetTrail, attribute.String("session.id", id))
	defer span.End()

	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.ctrl.Reset(); err != nil {
		return err
	}
	sess.touch(s.now())
	s.flush(ctx, sess)
	return nil
}

// Frame returns the latest drawable primitives of a session.
func (s *SessionService) Frame(ctx context.Context, id string) (*domain.Frame, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	frame := sess.ctrl.Frame()
	if frame.Width == 0 {
		return nil, domain.ErrNoMap
	}
	return &frame, nil
}

// Shapes returns the revealed shapes of a session in insertion order.
func (s *SessionService) Shapes(ctx context.Context, id string) ([]domain.RevealShape, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.ctrl.Shapes(), nil
}

// Trail returns the walked polylines of a session.
func (s *SessionService) Trail(ctx context.Context, id string) ([][]domain.GeoPoint, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.ctrl.Trail(), nil
}

// TrailSnapshot is the walked path and the revealed extent at one revision.
type TrailSnapshot struct {
	Segments [][]domain.GeoPoint
	Revealed *domain.Bounds
	Revision uint64
}

// TrailSnapshot returns the path and revealed bounds read under one lock.
func (s *SessionService) TrailSnapshot(ctx context.Context, id string) (*TrailSnapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &TrailSnapshot{
		Segments: sess.ctrl.Trail(),
		Revealed: sess.ctrl.RevealedBounds(),
		Revision: sess.ctrl.Revision(),
	}, nil
}

// MaskImage is an encoded mask plus the validator that identifies it.
type MaskImage struct {
	Data        []byte
	ContentType string
	Revision    uint64
	// ETag changes whenever the store revision or the view changes.
	ETag string
}

// RenderMask encodes the session's current frame. Results are cached per
// store revision and view, so any change to either misses.
func (s *SessionService) RenderMask(ctx context.Context, id, format string) (*MaskImage, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanRenderMask,
		attribute.String("session.id", id), attribute.String("format", format))
	defer span.End()

	enc, ok := s.encoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, format)
	}

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	frame := sess.ctrl.Frame()
	view := sess.view.View()
	sess.mu.Unlock()
	if frame.Width == 0 {
		return nil, domain.ErrNoMap
	}

	cacheKey := maskCacheKey(id, format, frame.Revision, view)
	sum := sha256.Sum256([]byte(cacheKey))
	img := &MaskImage{
		ContentType: enc.ContentType(),
		Revision:    frame.Revision,
		ETag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
	}

	if s.cache != nil && s.cfg.MaskCacheTTL > 0 {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			metrics.CacheHits.WithLabelValues("mask_" + format).Inc()
			img.Data = data
			return img, nil
		}
		metrics.CacheMisses.WithLabelValues("mask_" + format).Inc()
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	img.Data = buf.Bytes()

	if s.cache != nil && s.cfg.MaskCacheTTL > 0 {
		_ = s.cache.Set(ctx, cacheKey, img.Data, s.cfg.MaskCacheTTL)
	}
	return img, nil
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) validateView(v domain.View) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidView, err)
	}
	if !v.Center.Valid() {
		return domain.ErrInvalidPoint
	}
	return nil
}

func timedRedraw(fn func() (domain.Frame, error)) (domain.Frame, error) {
	start := time.Now()
	frame, err := fn()
	if err == nil {
		metrics.RedrawDuration.Observe(time.Since(start).Seconds())
	}
	return frame, err
}

// afterSample records metrics and publishes the reveal event for an applied
// sample. Called with the session lock held.
func (s *SessionService) afterSample(ctx context.Context, sess *session, sample domain.Sample, out fog.Outcome) *domain.IngestResult {
	circles, quads := sess.ctrl.Counts()
	res := &domain.IngestResult{
		Accepted:     out.Accepted,
		QuadAppended: out.QuadAppended,
		Filtered:     out.Filtered,
		Recentered:   out.Recentered,
		Circles:      circles,
		Quads:        quads,
		Revision:     sess.ctrl.Revision(),
	}
	sess.touch(s.now())

	if out.Accepted {
		metrics.SamplesAccepted.WithLabelValues(string(sample.Source)).Inc()
		metrics.ShapesAppended.WithLabelValues(string(domain.ShapeCircle)).Inc()
		if out.QuadAppended {
			metrics.ShapesAppended.WithLabelValues(string(domain.ShapeQuad)).Inc()
		}
		if s.publisher != nil {
			event := &domain.RevealEvent{
				SessionID: sess.id,
				Point:     sample.Point,
				Source:    sample.Source,
				Circles:   circles,
				Quads:     quads,
				Revision:  res.Revision,
				Time:      sample.Time,
			}
			if err := s.publisher.PublishReveal(ctx, event); err != nil {
				slog.Warn("publish reveal failed", "session_id", sess.id, "error", err)
			}
		}
	}
	s.flush(ctx, sess)
	return res
}

// flush publishes the frame drawn by the last event, if any. Called with the
// session lock held so frames leave in event order.
func (s *SessionService) flush(ctx context.Context, sess *session) {
	frame := sess.sink.take()
	if frame == nil || s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFrame(ctx, sess.id, frame); err != nil {
		slog.Warn("publish frame failed", "session_id", sess.id, "error", err)
	}
}

func (sess *session) touch(t time.Time) {
	sess.updatedAt = t
}

func (sess *session) summary() *domain.SessionSummary {
	circles, quads := sess.ctrl.Counts()
	return &domain.SessionSummary{
		ID:          sess.id,
		CreatedAt:   sess.createdAt,
		UpdatedAt:   sess.updatedAt,
		State:       sess.ctrl.State(),
		View:        sess.view.View(),
		Interactive: sess.view.Interactive(),
		Circles:     circles,
		Quads:       quads,
		Revision:    sess.ctrl.Revision(),
		TrailMeters: sess.ctrl.TrailMeters(),
		Revealed:    sess.ctrl.RevealedBounds(),
	}
}

func maskCacheKey(id, format string, revision uint64, v domain.View) string {
	return fmt.Sprintf("mask:%s:%s:%d:%.6f:%.6f:%.3f:%dx%d",
		id, format, revision, v.Center.Lat, v.Center.Lon, v.Zoom, v.Width, v.Height)
}
