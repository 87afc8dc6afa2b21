package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repost_monitor/internal/domain"
)

func TestCollector_RecordsPassAndResults(t *testing.T) {
	c := NewCollector()

	c.RecordPass(domain.PassStats{Processed: 3, Reposted: 2, Failed: 1, Duration: time.Second})
	c.RecordResult(domain.ProcessingResult{Account: "alice", Status: domain.StatusSuccess, Reposted: 2})
	c.RecordResult(domain.ProcessingResult{Account: "bob", Status: domain.StatusFailed})
	c.RecordResult(domain.ProcessingResult{Account: "carol", Status: domain.StatusAccountMissing})
	c.SetActiveRuns(1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "repost_monitor_passes_total 1")
	assert.Contains(t, body, "repost_monitor_reposts_total 2")
	assert.Contains(t, body, `repost_monitor_account_failures_total{kind="failed"} 1`)
	assert.Contains(t, body, `repost_monitor_account_failures_total{kind="account_missing"} 1`)
	assert.Contains(t, body, "repost_monitor_active_runs 1")
}

func TestCollector_InstrumentHandler(t *testing.T) {
	c := NewCollector()

	handler := c.InstrumentHandler("/api/runs", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	c.Handler().ServeHTTP(metricsRec, metricsReq)

	assert.Contains(t, metricsRec.Body.String(),
		`repost_monitor_http_requests_total{method="POST",path="/api/runs",status="202"} 1`)
}
