package usecases

import "time"

// CloseIfStale exposes the eviction re-check to tests.
func (s *SessionService) CloseIfStale(id string, cutoff time.Time) bool {
	return s.closeIfStale(id, cutoff)
}
