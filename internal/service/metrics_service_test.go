package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordRegistration(models.RoleStudent, OutcomeSuccess)
	m.RecordRegistration(models.RoleStudent, OutcomeSuccess)
	m.RecordLogin(CodeWrongPassword)
	m.RecordUpload(models.DocumentIDCopy, OutcomeFailure)
	m.RecordRoute(models.RouteOutcome{Status: models.NavigationRouted, Decision: models.DestinationForRole(models.RoleSGB), Attempts: 1})
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("Student", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(CodeWrongPassword)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("idCopy", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routes.WithLabelValues("routed", "sgb")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.cacheHitRatio))
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/session", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))

	var nilMetrics *MetricsService
	nilMetrics.RecordLogin(OutcomeSuccess)
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
