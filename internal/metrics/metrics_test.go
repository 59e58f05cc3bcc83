package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRequest_IncrementsCounter はリクエストカウンタが増加することを検証する。
func TestRecordRequest_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("auth.token", 200)
	c.RecordRequest("auth.token", 200)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "masterie_backend_requests_total" {
			found = true
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric, got %d", len(mf.GetMetric()))
			}
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("backend_requests_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("masterie_backend_requests_total metric not found")
	}
}

// TestRecordRequestError_IncrementsCounter は通信エラーカウンタが増加することを検証する。
func TestRecordRequestError_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestError("rest.users")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "masterie_backend_request_errors_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 1 {
				t.Errorf("backend_request_errors_total = %v, want 1", val)
			}
		}
	}
	if !found {
		t.Error("masterie_backend_request_errors_total metric not found")
	}
}

// TestRecordAuthFailure_LabelsByCode は認証失敗カウンタがコード別に記録されることを検証する。
func TestRecordAuthFailure_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthFailure("AUTH_INVALID_CREDENTIALS")
	c.RecordAuthFailure("AUTH_INVALID_CREDENTIALS")
	c.RecordAuthFailure("AUTH_RATE_LIMITED")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "masterie_auth_failures_total" {
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 labeled series, got %d", len(mf.GetMetric()))
			}
			return
		}
	}
	t.Error("masterie_auth_failures_total metric not found")
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシヒストグラムが観測されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency("auth.token", 120*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == "masterie_backend_request_latency_seconds" {
			count := mf.GetMetric()[0].GetHistogram().GetSampleCount()
			if count != 1 {
				t.Errorf("histogram sample count = %d, want 1", count)
			}
			return
		}
	}
	t.Error("masterie_backend_request_latency_seconds metric not found")
}

// TestSetupMetricsRoute_ServesMetrics は/metricsがスクレイプ可能であることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRequest("auth.token", 200)

	srv := httptest.NewServer(SetupMetricsRoute(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "masterie_backend_requests_total") {
		t.Error("expected masterie_backend_requests_total in scrape output")
	}
}
