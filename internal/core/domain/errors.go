package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoMap           = errors.New("map view not initialised")
	ErrInvalidPoint    = errors.New("coordinates out of range")
	ErrGesturesLocked  = errors.New("map gestures are disabled while tracking")
	ErrClickIgnored    = errors.New("click-to-move is disabled")
	ErrInvalidSource   = errors.New("unknown sample source")
	ErrInvalidView     = errors.New("invalid view")
	ErrUnknownFormat   = errors.New("unknown mask format")
	ErrCacheMiss       = errors.New("cache miss")
)
