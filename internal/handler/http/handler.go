package http

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"redirector/internal/domain"
	"redirector/internal/killswitch"
	"redirector/internal/metrics"
)

const (
	// adminSecretHeader carries the shared secret on admin calls.
	adminSecretHeader = "X-Admin-Secret"

	// recentEventsLimit caps /admin/last.
	recentEventsLimit = 5

	// exportLimit caps /admin/export.
	exportLimit = 1000

	// destinationDisplayLimit truncates destinations in /admin/last output.
	destinationDisplayLimit = 120
)

// RedirectService defines the service methods needed by the handler.
// An interface here keeps the handler mockable in tests.
type RedirectService interface {
	ResolveDestination(raw string) string
	RecordClick(ctx context.Context, slug, destination, clientIP, userAgent string)
	RecentClicks(ctx context.Context, limit int) ([]*domain.ClickEvent, error)
	ClicksForDay(ctx context.Context, day time.Time) ([]*domain.ClickEvent, error)
	TotalClicks(ctx context.Context) (int64, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service     RedirectService
	kill        *killswitch.Switch
	logger      *slog.Logger
	adminSecret string
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc RedirectService, kill *killswitch.Switch, logger *slog.Logger, adminSecret string) *Handler {
	return &Handler{
		service:     svc,
		kill:        kill,
		logger:      logger,
		adminSecret: adminSecret,
	}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	OK     bool   `json:"ok"`
	TS     string `json:"ts"`
	Clicks int64  `json:"clicks"`
}

// RecentClickResponse is one entry of GET /admin/last.
type RecentClickResponse struct {
	ID          int64     `json:"id"`
	ClickedAt   time.Time `json:"clicked_at"`
	Slug        string    `json:"slug"`
	Destination string    `json:"destination"`
}

// KillSwitchResponse is the body of the kill/unkill endpoints.
type KillSwitchResponse struct {
	Killed bool `json:"killed"`
}

// Redirect handles GET /go/{slug}.
//
// The pipeline is deliberately non-transactional: the click event is fired
// without being awaited and the counter increment is independent of it.
// Metrics and the durable log are allowed to drift; nothing on this path
// may delay or fail the redirect.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		respondError(w, http.StatusBadRequest, "Slug is required")
		return
	}

	// Always yields a usable destination: rejected or missing dest
	// parameters resolve to the configured fallback.
	destination := h.service.ResolveDestination(r.URL.Query().Get("dest"))

	// Fire-and-forget; the service detaches the write from this request's
	// lifecycle.
	h.service.RecordClick(r.Context(), slug, destination, ClientIP(r), r.UserAgent())

	metrics.RecordRedirect(slug)

	http.Redirect(w, r, destination, http.StatusFound)
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	clicks, err := h.service.TotalClicks(r.Context())
	if err != nil {
		h.logger.Error("Failed to get click count", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to read click count")
		return
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		OK:     true,
		TS:     time.Now().UTC().Format(time.RFC3339),
		Clicks: clicks,
	})
}

// Root handles GET /. Liveness acknowledgment only.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "redirector up")
}

// AdminLast handles GET /admin/last: the five most recent click events,
// newest first.
func (h *Handler) AdminLast(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	clicks, err := h.service.RecentClicks(r.Context(), recentEventsLimit)
	if err != nil {
		h.logger.Error("Failed to get recent clicks", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := make([]RecentClickResponse, 0, len(clicks))
	for _, click := range clicks {
		response = append(response, RecentClickResponse{
			ID:          click.ID,
			ClickedAt:   click.ClickedAt,
			Slug:        click.Slug,
			Destination: truncate(click.Destination, destinationDisplayLimit),
		})
	}

	respondJSON(w, http.StatusOK, response)
}

// AdminExport handles GET /admin/export: up to 1000 most recent events as
// a CSV download.
func (h *Handler) AdminExport(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	clicks, err := h.service.RecentClicks(r.Context(), exportLimit)
	if err != nil {
		h.logger.Error("Failed to export clicks", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeCSV(w, "clicks.csv", clicks)
}

// AdminExportDay handles GET /admin/export/day?day=YYYY-MM-DD: all events
// for one UTC calendar day, insertion order ascending. The day defaults to
// the current UTC date.
func (h *Handler) AdminExportDay(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	day := time.Now().UTC()
	if param := r.URL.Query().Get("day"); param != "" {
		parsed, err := time.Parse("2006-01-02", param)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid day, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	clicks, err := h.service.ClicksForDay(r.Context(), day)
	if err != nil {
		h.logger.Error("Failed to export clicks for day", "day", day.Format("2006-01-02"), "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeCSV(w, fmt.Sprintf("clicks-%s.csv", day.Format("2006-01-02")), clicks)
}

// AdminKill handles POST /admin/kill.
func (h *Handler) AdminKill(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	h.kill.Kill()
	metrics.SetKillSwitch(true)
	h.logger.Warn("Kill switch engaged", "client_ip", ClientIP(r))

	respondJSON(w, http.StatusOK, KillSwitchResponse{Killed: true})
}

// AdminUnkill handles POST /admin/unkill.
func (h *Handler) AdminUnkill(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	h.kill.Unkill()
	metrics.SetKillSwitch(false)
	h.logger.Warn("Kill switch released", "client_ip", ClientIP(r))

	respondJSON(w, http.StatusOK, KillSwitchResponse{Killed: false})
}

// authorized validates the shared admin secret. On mismatch it writes a
// generic 403 and returns false; no detail about which part failed leaks
// to the caller. The comparison is constant-time.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	provided := r.Header.Get(adminSecretHeader)
	if h.adminSecret == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminSecret)) != 1 {
		respondError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

// writeCSV streams click events as an attachment.
func writeCSV(w http.ResponseWriter, filename string, clicks []*domain.ClickEvent) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "clicked_at", "slug", "destination", "client_ip", "user_agent"})
	for _, click := range clicks {
		cw.Write([]string{
			strconv.FormatInt(click.ID, 10),
			click.ClickedAt.UTC().Format(time.RFC3339),
			click.Slug,
			click.Destination,
			click.ClientIP,
			click.UserAgent,
		})
	}
	cw.Flush()
}

// truncate bounds a string for display output.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
