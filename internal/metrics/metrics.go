// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の種類と結果のラベル値。
const (
	AuthKindRegister = "register"
	AuthKindLogin    = "login"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthAttempt(kind, outcome string)
	RecordTokenRejected(reason string)
	RecordOwnershipDenied(resource string)
	RecordListingCreated(resource string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts    *prometheus.CounterVec
	tokenRejected   *prometheus.CounterVec
	ownershipDenied *prometheus.CounterVec
	listingsCreated *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_auth_attempts_total",
			Help: "登録・ログイン試行の合計数",
		}, []string{"kind", "outcome"}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_token_rejected_total",
			Help: "認証ゲートで拒否されたリクエスト数",
		}, []string{"reason"}),
		ownershipDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_ownership_denied_total",
			Help: "所有者以外による変更操作の拒否数",
		}, []string{"resource"}),
		listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_listings_created_total",
			Help: "作成されたストア・出品の合計数",
		}, []string{"resource"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketplace_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.tokenRejected,
		c.ownershipDenied,
		c.listingsCreated,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordAuthAttempt は登録・ログイン試行を記録する。
func (c *Collector) RecordAuthAttempt(kind, outcome string) {
	c.authAttempts.WithLabelValues(kind, outcome).Inc()
}

// RecordTokenRejected は認証ゲートでの拒否を記録する。
func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejected.WithLabelValues(reason).Inc()
}

// RecordOwnershipDenied は所有権チェックによる拒否を記録する。
func (c *Collector) RecordOwnershipDenied(resource string) {
	c.ownershipDenied.WithLabelValues(resource).Inc()
}

// RecordListingCreated はストア・出品の作成を記録する。
func (c *Collector) RecordListingCreated(resource string) {
	c.listingsCreated.WithLabelValues(resource).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(method string, duration time.Duration) {
	c.requestLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAuthAttempt(string, string) {}
func (Nop) RecordTokenRejected(string) {}
func (Nop) RecordOwnershipDenied(string) {}
func (Nop) RecordListingCreated(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(string, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
