package natsadapter

import "strings"

// Subject layout:
//
//	fog.location.<session>        location samples (JetStream, work queue)
//	fog.session.<session>.reveal  reveal events (JetStream, limits)
//	fog.session.<session>.frame   redraw output (core NATS, fire and forget)
const (
	locationPrefix = "fog.location."
	sessionPrefix  = "fog.session."

	StreamLocations = "FOG_LOCATIONS"
	StreamReveals   = "FOG_REVEALS"
)

func LocationSubject(sessionID string) string {
	return locationPrefix + sessionID
}

func RevealSubject(sessionID string) string {
	return sessionPrefix + sessionID + ".reveal"
}

func FrameSubject(sessionID string) string {
	return sessionPrefix + sessionID + ".frame"
}

// SessionFromLocationSubject extracts the session ID from a location subject.
func SessionFromLocationSubject(subject string) (string, bool) {
	id, ok := strings.CutPrefix(subject, locationPrefix)
	if !ok || id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}
