package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"redirector/internal/domain"
	"redirector/internal/metrics"
	"redirector/internal/repository"
	"redirector/pkg/validator"
)

// ErrNoStore is returned by admin queries when the service is running
// without a click store.
var ErrNoStore = errors.New("no click store configured")

// RedirectService handles the redirect pipeline and the admin queries over
// recorded clicks.
//
// The service tolerates running with a nil repository: destination
// resolution and redirects keep working, click recording becomes a no-op,
// and admin queries return ErrNoStore. A dead database must never take the
// redirector down with it.
type RedirectService struct {
	clickRepo   repository.ClickRepository // nil when no store is configured
	destination *validator.Destination
	logger      *slog.Logger
}

// NewRedirectService creates a redirect service. clickRepo may be nil.
func NewRedirectService(clickRepo repository.ClickRepository, destination *validator.Destination, logger *slog.Logger) *RedirectService {
	return &RedirectService{
		clickRepo:   clickRepo,
		destination: destination,
		logger:      logger,
	}
}

// ResolveDestination validates a candidate destination and returns the URL
// to redirect to. Never fails: rejected candidates yield the configured
// fallback. Rejections are counted by reason, not surfaced to the client.
func (s *RedirectService) ResolveDestination(raw string) string {
	err := s.destination.Check(raw)
	if err == nil {
		return raw
	}

	metrics.RecordFallback(fallbackReason(err))
	s.logger.Debug("destination rejected, using fallback",
		"destination", raw,
		"reason", err.Error(),
	)
	return s.destination.Fallback()
}

// RecordClick persists a click event without blocking the caller.
//
// The write runs in its own goroutine with the cancellation of the request
// context stripped: a client that disconnects mid-redirect must not cancel
// a pending insert. Failures are logged and counted, never returned - the
// redirect response has usually already been sent by the time the insert
// finishes.
func (s *RedirectService) RecordClick(ctx context.Context, slug, destination, clientIP, userAgent string) {
	if s.clickRepo == nil {
		return
	}

	click := domain.NewClickEvent(slug, destination, clientIP, userAgent)
	detached := context.WithoutCancel(ctx)

	go func() {
		writeCtx, cancel := context.WithTimeout(detached, 10*time.Second)
		defer cancel()

		if err := s.clickRepo.Create(writeCtx, click); err != nil {
			metrics.RecordClickLogFailure()
			metrics.DatabaseErrorsTotal.WithLabelValues("create_click").Inc()
			s.logger.Error("failed to record click event",
				"slug", slug,
				"error", err,
			)
			return
		}
		metrics.RecordClickRecorded()
	}()
}

// RecentClicks returns the most recent events, insertion order descending.
// Unlike the redirect path, admin queries surface store errors directly.
func (s *RedirectService) RecentClicks(ctx context.Context, limit int) ([]*domain.ClickEvent, error) {
	if s.clickRepo == nil {
		return nil, ErrNoStore
	}
	return s.clickRepo.Recent(ctx, limit)
}

// ClicksForDay returns all events on the given UTC calendar day,
// insertion order ascending.
func (s *RedirectService) ClicksForDay(ctx context.Context, day time.Time) ([]*domain.ClickEvent, error) {
	if s.clickRepo == nil {
		return nil, ErrNoStore
	}
	return s.clickRepo.ByDay(ctx, day)
}

// TotalClicks returns the total recorded click count. Without a store the
// count is simply zero - the status endpoint stays green either way.
func (s *RedirectService) TotalClicks(ctx context.Context) (int64, error) {
	if s.clickRepo == nil {
		return 0, nil
	}
	return s.clickRepo.TotalCount(ctx)
}

// fallbackReason maps validator sentinels to a bounded metric label set.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, validator.ErrEmptyURL):
		return "empty"
	case errors.Is(err, validator.ErrInvalidScheme):
		return "scheme"
	case errors.Is(err, validator.ErrHostNotAllowed):
		return "host"
	default:
		return "invalid"
	}
}
