package domain

import "time"

// ClickEvent is one durable record of a redirect attempt.
// Events are append-only: this system never updates or deletes them.
// ID is assigned by the store at insertion and is the authoritative
// ordering for "most recent" queries - ClickedAt can drift with clock
// skew, insertion order cannot.
type ClickEvent struct {
	ID          int64     // Assigned by the store
	ClickedAt   time.Time // Set at insertion
	Slug        string    // Opaque, attacker-controlled path segment
	Destination string    // The resolved URL actually redirected to
	ClientIP    string    // First forwarded-for hop, or the transport peer
	UserAgent   string    // May be empty
}

// NewClickEvent creates a click event for a redirect that is about to be
// answered. Destination must already be resolved through the validator.
func NewClickEvent(slug, destination, clientIP, userAgent string) *ClickEvent {
	return &ClickEvent{
		Slug:        slug,
		Destination: destination,
		ClientIP:    clientIP,
		UserAgent:   userAgent,
	}
}
