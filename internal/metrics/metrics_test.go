package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.PlanLimitRejections.WithLabelValues("contacts").Inc()
	m.AuditWriteFailures.Inc()
	m.WorkflowExecutions.WithLabelValues("CONTACT_CREATED", "COMPLETED").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanLimitRejections.WithLabelValues("contacts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkflowExecutions.WithLabelValues("CONTACT_CREATED", "COMPLETED")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.HTTPRequests.WithLabelValues("GET", "/health", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `crm_http_requests_total{method="GET",route="/health",status="200"} 1`))
}
