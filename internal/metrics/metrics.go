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
// ミドルウェアやハンドラー層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordLogin(method string)
	RecordRegistration(method string)
	RecordImageUpload()
	RecordGeocodeFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	imageUploads  prometheus.Counter
	geocodeFails  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "takibi_http_requests_total",
			Help: "HTTPリクエストの合計数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "takibi_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "takibi_logins_total",
			Help: "ログイン成功の合計数（認証方式別）",
		}, []string{"auth_method"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "takibi_registrations_total",
			Help: "ユーザー登録の合計数（認証方式別）",
		}, []string{"auth_method"}),
		imageUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "takibi_image_uploads_total",
			Help: "外部ストレージへの画像アップロード成功の合計数",
		}),
		geocodeFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "takibi_geocode_failures_total",
			Help: "ジオコーディング失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.logins,
		c.registrations,
		c.imageUploads,
		c.geocodeFails,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの完了を記録する。
// routeにはパスパラメータを含まないルートパターンを渡す。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(method string) {
	c.logins.WithLabelValues(method).Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration(method string) {
	c.registrations.WithLabelValues(method).Inc()
}

// RecordImageUpload は画像アップロード成功を記録する。
func (c *Collector) RecordImageUpload() {
	c.imageUploads.Inc()
}

// RecordGeocodeFailure はジオコーディング失敗を記録する。
func (c *Collector) RecordGeocodeFailure() {
	c.geocodeFails.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
