package fog

import "github.com/samirrijal/fogmap/internal/core/domain"

// Store is the ordered, append-only collection of revealed shapes.
// Insertion order is the temporal order of trail extension.
type Store struct {
	shapes   []domain.RevealShape
	circles  int
	quads    int
	revision uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// AppendCircle appends a Circle.
func (s *Store) AppendCircle(center domain.GeoPoint, radius, refZoom float64) {
	s.shapes = append(s.shapes, domain.NewCircle(center, radius, refZoom))
	s.circles++
	s.revision++
}

// AppendConnectingQuad appends a quad from the previous accepted point to the
// new one. Identical endpoints are a defined degenerate case: nothing is
// appended and false is returned.
func (s *Store) AppendConnectingQuad(from, to domain.GeoPoint) bool {
	if from == to {
		return false
	}
	s.shapes = append(s.shapes, domain.NewQuad(from, to))
	s.quads++
	s.revision++
	return true
}

// ForEach visits every shape in insertion order.
func (s *Store) ForEach(visit func(domain.RevealShape)) {
	for _, shape := range s.shapes {
		visit(shape)
	}
}

// Clear empties the store.
func (s *Store) Clear() {
	s.shapes = nil
	s.circles = 0
	s.quads = 0
	s.revision++
}

// Len returns the number of stored shapes.
func (s *Store) Len() int {
	return len(s.shapes)
}

// Counts returns the number of circles and quads.
func (s *Store) Counts() (circles, quads int) {
	return s.circles, s.quads
}

// Revision increases on every mutation.
func (s *Store) Revision() uint64 {
	return s.revision
}

// Snapshot returns a copy of the stored shapes.
func (s *Store) Snapshot() []domain.RevealShape {
	out := make([]domain.RevealShape, len(s.shapes))
	copy(out, s.shapes)
	return out
}
