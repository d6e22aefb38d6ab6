package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"redirector/internal/domain"
	"redirector/internal/killswitch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// ==================== MOCKS ====================

// MockRedirectService is a mock implementation of RedirectService
type MockRedirectService struct {
	mock.Mock
}

func (m *MockRedirectService) ResolveDestination(raw string) string {
	args := m.Called(raw)
	return args.String(0)
}

func (m *MockRedirectService) RecordClick(ctx context.Context, slug, destination, clientIP, userAgent string) {
	m.Called(ctx, slug, destination, clientIP, userAgent)
}

func (m *MockRedirectService) RecentClicks(ctx context.Context, limit int) ([]*domain.ClickEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ClickEvent), args.Error(1)
}

func (m *MockRedirectService) ClicksForDay(ctx context.Context, day time.Time) ([]*domain.ClickEvent, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ClickEvent), args.Error(1)
}

func (m *MockRedirectService) TotalClicks(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// ==================== HELPER FUNCTIONS ====================

func setupTestHandler() (*Handler, *MockRedirectService, *killswitch.Switch) {
	mockService := new(MockRedirectService)
	kill := killswitch.New()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := NewHandler(mockService, kill, logger, testSecret)
	return handler, mockService, kill
}

func redirectRequest(slug, dest string) *http.Request {
	req := httptest.NewRequest("GET", "/go/"+slug+"?dest="+dest, nil)
	req.SetPathValue("slug", slug)
	return req
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(adminSecretHeader, testSecret)
	return req
}

// ==================== REDIRECT TESTS ====================

func TestRedirect_Success(t *testing.T) {
	// Arrange
	handler, mockService, _ := setupTestHandler()

	mockService.On("ResolveDestination", "https://example.com/ok").
		Return("https://example.com/ok")
	mockService.On("RecordClick", mock.Anything, "abc", "https://example.com/ok", mock.Anything, mock.Anything).
		Return()

	req := redirectRequest("abc", "https://example.com/ok")
	w := httptest.NewRecorder()

	// Act
	handler.Redirect(w, req)

	// Assert
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/ok", w.Header().Get("Location"))
	mockService.AssertExpectations(t)
}

func TestRedirect_RejectedDestinationRedirectsToFallback(t *testing.T) {
	// Arrange
	handler, mockService, _ := setupTestHandler()

	// The validator substitutes the fallback; the client still gets a 302.
	mockService.On("ResolveDestination", "https://evil.com/x").
		Return("https://fallback.example.net/")
	mockService.On("RecordClick", mock.Anything, "abc", "https://fallback.example.net/", mock.Anything, mock.Anything).
		Return()

	req := redirectRequest("abc", "https://evil.com/x")
	w := httptest.NewRecorder()

	// Act
	handler.Redirect(w, req)

	// Assert
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://fallback.example.net/", w.Header().Get("Location"))
	mockService.AssertExpectations(t)
}

func TestRedirect_MissingSlug(t *testing.T) {
	handler, _, _ := setupTestHandler()

	req := httptest.NewRequest("GET", "/go/", nil)
	w := httptest.NewRecorder()

	handler.Redirect(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedirect_RecordsClientIPAndUserAgent(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	mockService.On("ResolveDestination", "https://example.com/ok").
		Return("https://example.com/ok")
	mockService.On("RecordClick", mock.Anything, "abc", "https://example.com/ok", "203.0.113.9", "test-agent").
		Return()

	req := redirectRequest("abc", "https://example.com/ok")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()

	handler.Redirect(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	mockService.AssertExpectations(t)
}

// ==================== STATUS TESTS ====================

func TestStatus_Success(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	mockService.On("TotalClicks", mock.Anything).Return(int64(42), nil)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.OK)
	assert.Equal(t, int64(42), response.Clicks)

	_, err := time.Parse(time.RFC3339, response.TS)
	assert.NoError(t, err)
}

func TestStatus_StoreError(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	mockService.On("TotalClicks", mock.Anything).Return(int64(0), assert.AnError)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ==================== ADMIN AUTH TESTS ====================

func TestAdmin_MissingSecretIsForbidden(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	req := httptest.NewRequest("GET", "/admin/last", nil)
	w := httptest.NewRecorder()

	handler.AdminLast(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	// No further processing on auth failure.
	mockService.AssertNotCalled(t, "RecentClicks", mock.Anything, mock.Anything)
}

func TestAdmin_WrongSecretIsForbidden(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	req := httptest.NewRequest("GET", "/admin/last", nil)
	req.Header.Set(adminSecretHeader, "wrong")
	w := httptest.NewRecorder()

	handler.AdminLast(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNotCalled(t, "RecentClicks", mock.Anything, mock.Anything)
}

func TestAdmin_EmptyConfiguredSecretRejectsEverything(t *testing.T) {
	mockService := new(MockRedirectService)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := NewHandler(mockService, killswitch.New(), logger, "")

	req := httptest.NewRequest("GET", "/admin/last", nil)
	req.Header.Set(adminSecretHeader, "")
	w := httptest.NewRecorder()

	handler.AdminLast(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ==================== ADMIN LAST TESTS ====================

func TestAdminLast_ReturnsRecentEvents(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	longDestination := "https://example.com/" + strings.Repeat("x", 300)
	clicks := []*domain.ClickEvent{
		{ID: 3, ClickedAt: time.Now(), Slug: "c", Destination: longDestination},
		{ID: 2, ClickedAt: time.Now(), Slug: "b", Destination: "https://example.com/b"},
		{ID: 1, ClickedAt: time.Now(), Slug: "a", Destination: "https://example.com/a"},
	}
	mockService.On("RecentClicks", mock.Anything, 5).Return(clicks, nil)

	req := adminRequest("GET", "/admin/last")
	w := httptest.NewRecorder()

	handler.AdminLast(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []RecentClickResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 3)

	// Most recent insertion first, destinations bounded for display.
	assert.Equal(t, int64(3), response[0].ID)
	assert.Len(t, response[0].Destination, destinationDisplayLimit)
	assert.Equal(t, "https://example.com/a", response[2].Destination)
}

func TestAdminLast_StoreErrorIsSurfaced(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	mockService.On("RecentClicks", mock.Anything, 5).Return(nil, assert.AnError)

	req := adminRequest("GET", "/admin/last")
	w := httptest.NewRecorder()

	handler.AdminLast(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Error)
}

// ==================== EXPORT TESTS ====================

func TestAdminExport_WritesCSVAttachment(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	clicks := []*domain.ClickEvent{
		{ID: 2, ClickedAt: ts, Slug: "b", Destination: "https://example.com/b", ClientIP: "1.2.3.4", UserAgent: "ua"},
		{ID: 1, ClickedAt: ts, Slug: "a", Destination: "https://example.com/a", ClientIP: "5.6.7.8", UserAgent: ""},
	}
	mockService.On("RecentClicks", mock.Anything, 1000).Return(clicks, nil)

	req := adminRequest("GET", "/admin/export")
	w := httptest.NewRecorder()

	handler.AdminExport(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="clicks.csv"`)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,clicked_at,slug,destination,client_ip,user_agent", lines[0])
	assert.Equal(t, "2,2024-01-15T10:30:00Z,b,https://example.com/b,1.2.3.4,ua", lines[1])
}

func TestAdminExportDay_FiltersByDay(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	clicks := []*domain.ClickEvent{
		{ID: 1, ClickedAt: day.Add(2 * time.Hour), Slug: "a", Destination: "https://example.com/a"},
		{ID: 2, ClickedAt: day.Add(5 * time.Hour), Slug: "b", Destination: "https://example.com/b"},
	}
	mockService.On("ClicksForDay", mock.Anything, day).Return(clicks, nil)

	req := adminRequest("GET", "/admin/export/day?day=2024-01-15")
	w := httptest.NewRecorder()

	handler.AdminExportDay(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clicks-2024-01-15.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	// Insertion order ascending.
	assert.True(t, strings.HasPrefix(lines[1], "1,"))
	assert.True(t, strings.HasPrefix(lines[2], "2,"))
	mockService.AssertExpectations(t)
}

func TestAdminExportDay_DefaultsToToday(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	today := time.Now().UTC().Format("2006-01-02")
	mockService.On("ClicksForDay", mock.Anything, mock.MatchedBy(func(day time.Time) bool {
		return day.Format("2006-01-02") == today
	})).Return([]*domain.ClickEvent{}, nil)

	req := adminRequest("GET", "/admin/export/day")
	w := httptest.NewRecorder()

	handler.AdminExportDay(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clicks-"+today+".csv")
}

func TestAdminExportDay_InvalidDay(t *testing.T) {
	handler, mockService, _ := setupTestHandler()

	req := adminRequest("GET", "/admin/export/day?day=15-01-2024")
	w := httptest.NewRecorder()

	handler.AdminExportDay(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ClicksForDay", mock.Anything, mock.Anything)
}

// ==================== KILL SWITCH TESTS ====================

func TestAdminKill_EngagesSwitch(t *testing.T) {
	handler, _, kill := setupTestHandler()

	req := adminRequest("POST", "/admin/kill")
	w := httptest.NewRecorder()

	handler.AdminKill(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, kill.Killed())

	var response KillSwitchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Killed)
}

func TestAdminKill_IsIdempotent(t *testing.T) {
	handler, _, kill := setupTestHandler()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.AdminKill(w, adminRequest("POST", "/admin/kill"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.True(t, kill.Killed())
}

func TestAdminUnkill_ReleasesSwitch(t *testing.T) {
	handler, _, kill := setupTestHandler()
	kill.Kill()

	req := adminRequest("POST", "/admin/unkill")
	w := httptest.NewRecorder()

	handler.AdminUnkill(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, kill.Killed())
}

func TestAdminKill_RequiresSecret(t *testing.T) {
	handler, _, kill := setupTestHandler()

	req := httptest.NewRequest("POST", "/admin/kill", nil)
	w := httptest.NewRecorder()

	handler.AdminKill(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, kill.Killed())
}
