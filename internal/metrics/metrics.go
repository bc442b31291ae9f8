// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証・画像解析・ワーカーの各層から利用する。
type MetricsCollector interface {
	RecordLogin(success bool)
	RecordTokenRotation()
	RecordTokenRevocation()
	RecordVisionRequest(status string)
	RecordVisionLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordCleanupDeleted(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts  *prometheus.CounterVec
	tokenRotations prometheus.Counter
	tokenRevoked   prometheus.Counter
	visionRequests *prometheus.CounterVec
	visionLatency  prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	cleanupDeleted *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchside_login_attempts_total",
			Help: "ログイン試行の成否別合計数",
		}, []string{"result"}),
		tokenRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchside_token_rotations_total",
			Help: "リフレッシュトークンローテーションの合計数",
		}),
		tokenRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchside_token_revocations_total",
			Help: "リフレッシュトークン失効の合計数",
		}),
		visionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchside_vision_requests_total",
			Help: "画像解析リクエストの結果別合計数",
		}, []string{"status"}),
		visionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchside_vision_latency_seconds",
			Help:    "画像解析のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchside_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchside_cleanup_deleted_total",
			Help: "クリーンアップワーカーが削除したレコードの種別別合計数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.tokenRotations,
		c.tokenRevoked,
		c.visionRequests,
		c.visionLatency,
		c.httpStatus,
		c.cleanupDeleted,
	)

	return c
}

// RecordLogin はログイン試行の成否を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordTokenRotation はリフレッシュトークンのローテーションを記録する。
func (c *Collector) RecordTokenRotation() {
	c.tokenRotations.Inc()
}

// RecordTokenRevocation はリフレッシュトークンの失効を記録する。
func (c *Collector) RecordTokenRevocation() {
	c.tokenRevoked.Inc()
}

// RecordVisionRequest は画像解析リクエストの結果を記録する。
func (c *Collector) RecordVisionRequest(status string) {
	c.visionRequests.WithLabelValues(status).Inc()
}

// RecordVisionLatency は画像解析のレイテンシを記録する。
func (c *Collector) RecordVisionLatency(duration time.Duration) {
	c.visionLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanupDeleted はクリーンアップワーカーの削除件数を記録する。
func (c *Collector) RecordCleanupDeleted(kind string, count int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
