package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/unitydesk-api/internal/config"
	"github.com/BerylCAtieno/unitydesk-api/internal/middleware"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/ratelimit"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/BerylCAtieno/unitydesk-api/internal/workflow"
)

const testSecret = "router-test-secret"

// stubService answers the handful of calls these tests make.
type stubService struct {
	services.ComplaintService
}

func (stubService) ValidateImage(context.Context, string) (*models.ValidateImageResponse, error) {
	return &models.ValidateImageResponse{Success: true, IsValid: true, Message: "ok"}, nil
}

func (stubService) Stats(context.Context) (*models.ComplaintStats, error) {
	return &models.ComplaintStats{Total: 3}, nil
}

func (stubService) ListComplaints(context.Context, models.ComplaintFilter) ([]models.Complaint, error) {
	return nil, nil
}

func newTestRouter(limit int) http.Handler {
	cfg := &config.Config{
		OfficerJWTSecret: testSecret,
		MaxUploadSize:    1 << 20,
		MaxImages:        5,
	}
	svc := stubService{}
	sessions := services.NewSessionStore(workflow.Deps{}, time.Hour)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), limit, time.Minute)
	return NewRouter(cfg, svc, sessions, limiter, utils.NewNopLogger())
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(10)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unitydesk_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOfficerRoutesRequireToken(t *testing.T) {
	r := newTestRouter(10)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/officer/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := middleware.IssueOfficerToken(testSecret, "officer-7", "Asha", time.Hour)
	require.NoError(t, err)

	for _, path := range []string{"/api/officer/stats", "/api/officer/complaints"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/officer/complaints", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestValidateImageIsRateLimited(t *testing.T) {
	r := newTestRouter(2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/validate-image", strings.NewReader(`{"image":"aGVsbG8="}`))
		req.RemoteAddr = "203.0.113.9:5000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 2 {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own budget
	req := httptest.NewRequest(http.MethodPost, "/api/validate-image", strings.NewReader(`{"image":"aGVsbG8="}`))
	req.RemoteAddr = "198.51.100.4:5000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmissionRoutesAreRegistered(t *testing.T) {
	r := newTestRouter(10)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(`{"variant":"text"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/submissions/unknown/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Submission not found")
}
