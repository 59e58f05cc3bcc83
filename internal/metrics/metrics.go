// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はバックエンド呼び出しのメトリクス収集インターフェース。
// backendパッケージのトランスポートから利用する。
type Recorder interface {
	RecordRequest(endpoint string, statusCode int)
	RecordRequestError(endpoint string)
	RecordRequestLatency(endpoint string, duration time.Duration)
	RecordAuthFailure(code string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests    *prometheus.CounterVec
	requestErrs *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	authFail    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masterie_backend_requests_total",
			Help: "バックエンドAPIリクエストの合計数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status_code"}),
		requestErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masterie_backend_request_errors_total",
			Help: "バックエンドAPIリクエストの通信エラー合計数",
		}, []string{"endpoint"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "masterie_backend_request_latency_seconds",
			Help:    "バックエンドAPIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		authFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masterie_auth_failures_total",
			Help: "認証操作の失敗合計数（エラーコード別）",
		}, []string{"code"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestErrs,
		c.latency,
		c.authFail,
	)

	return c
}

// RecordRequest はリクエスト完了をステータスコード付きで記録する。
func (c *Collector) RecordRequest(endpoint string, statusCode int) {
	c.requests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordRequestError は通信エラーを記録する。
func (c *Collector) RecordRequestError(endpoint string) {
	c.requestErrs.WithLabelValues(endpoint).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(endpoint string, duration time.Duration) {
	c.latency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAuthFailure は認証操作の失敗をエラーコード別に記録する。
func (c *Collector) RecordAuthFailure(code string) {
	c.authFail.WithLabelValues(code).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// メトリクスアドレスが設定されている場合のみappから起動される。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Nop は何も記録しないRecorder。メトリクス無効時とテストで使用する。
type Nop struct{}

// RecordRequest は何もしない。
func (Nop) RecordRequest(endpoint string, statusCode int) {}

// RecordRequestError は何もしない。
func (Nop) RecordRequestError(endpoint string) {}

// RecordRequestLatency は何もしない。
func (Nop) RecordRequestLatency(endpoint string, duration time.Duration) {}

// RecordAuthFailure は何もしない。
func (Nop) RecordAuthFailure(code string) {}

// compile-time interface checks
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
