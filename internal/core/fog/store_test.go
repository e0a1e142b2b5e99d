package fog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/fog"
)

func TestStore_AppendOrderAndCounts(t *testing.T) {
	s := fog.NewStore()
	a := domain.GeoPoint{Lat: 35.0, Lon: 135.0}
	b := domain.GeoPoint{Lat: 35.001, Lon: 135.0}

	s.AppendCircle(a, 8, 13)
	s.AppendCircle(b, 8, 13)
	require.True(t, s.AppendConnectingQuad(a, b))

	circles, quads := s.Counts()
	assert.Equal(t, 2, circles)
	assert.Equal(t, 1, quads)
	assert.Equal(t, 3, s.Len())

	var kinds []domain.ShapeKind
	s.ForEach(func(shape domain.RevealShape) { kinds = append(kinds, shape.Kind) })
	assert.Equal(t, []domain.ShapeKind{domain.ShapeCircle, domain.ShapeCircle, domain.ShapeQuad}, kinds)
}

func TestStore_DegenerateQuadSkipped(t *testing.T) {
	s := fog.NewStore()
	p := domain.GeoPoint{Lat: 43.263, Lon: -2.935}
	s.AppendCircle(p, 1, 10)
	rev := s.Revision()

	assert.False(t, s.AppendConnectingQuad(p, p))

	_, quads := s.Counts()
	assert.Zero(t, quads)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, rev, s.Revision(), "skipped quad must not bump the revision")
}

func TestStore_Clear(t *testing.T) {
	s := fog.NewStore()
	s.AppendCircle(domain.GeoPoint{Lat: 1, Lon: 1}, 1, 10)
	s.AppendConnectingQuad(domain.GeoPoint{Lat: 1, Lon: 1}, domain.GeoPoint{Lat: 2, Lon: 2})
	before := s.Revision()

	s.Clear()

	assert.Zero(t, s.Len())
	circles, quads := s.Counts()
	assert.Zero(t, circles)
	assert.Zero(t, quads)
	assert.Greater(t, s.Revision(), before)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := fog.NewStore()
	s.AppendCircle(domain.GeoPoint{Lat: 1, Lon: 1}, 1, 10)

	snap := s.Snapshot()
	snap[0].Radius = 99

	s.ForEach(func(shape domain.RevealShape) {
		assert.Equal(t, 1.0, shape.Radius)
	})
}
