package repository

import (
	"context"
	"time"

	"redirector/internal/domain"
)

// ClickRepository defines the interface for the append-only click store.
//
// The interface exists for the usual reasons: handlers and the service are
// tested against mocks, and the storage engine can be swapped without
// touching business logic.
type ClickRepository interface {
	// EnsureSchema creates the click table and its indexes if they do not
	// exist. Idempotent; run on every startup.
	EnsureSchema(ctx context.Context) error

	// Create appends a click event. The store assigns ID and ClickedAt.
	Create(ctx context.Context, click *domain.ClickEvent) error

	// Recent returns up to limit events, most recent insertion first.
	Recent(ctx context.Context, limit int) ([]*domain.ClickEvent, error)

	// ByDay returns all events whose ClickedAt falls on the given UTC
	// calendar day, in insertion order ascending.
	ByDay(ctx context.Context, day time.Time) ([]*domain.ClickEvent, error)

	// TotalCount returns the total number of recorded events.
	TotalCount(ctx context.Context) (int64, error)
}
