package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/internhub/go-portal-gate/internal/metrics"
)

func TestCollector_CountsAppearOnHandler(t *testing.T) {
	collector := metrics.NewCollector()

	collector.LoginAttempt(true)
	collector.LoginAttempt(false)
	collector.Verification("confirmed")
	collector.GuardDecision("redirect_login")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `portalgate_logins_total{result="success"} 1`)
	require.Contains(t, body, `portalgate_logins_total{result="failure"} 1`)
	require.Contains(t, body, `portalgate_verifications_total{outcome="confirmed"} 1`)
	require.Contains(t, body, `portalgate_guard_decisions_total{decision="redirect_login"} 1`)
}
