// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute はルーティングされなかったリクエストのrouteラベル。
// 生のパスをラベルにしないことで系列数を抑える。
const unmatchedRoute = "unmatched"

// MetricsCollector はメトリクス収集のインターフェース。
// HTTPミドルウェア、本のサービス層、セッション解決、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	ObserveBookOperation(op, result string)
	ObserveSessionRefresh(result string)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	bookOperations  *prometheus.CounterVec
	sessionRefresh  *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklog_http_requests_total",
			Help: "HTTPリクエストの合計数",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booklog_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklog_book_operations_total",
			Help: "本に対する操作の結果別の合計数",
		}, []string{"op", "result"}),
		sessionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklog_session_refresh_total",
			Help: "リフレッシュセッションによるアクセストークン再発行の結果別の合計数",
		}, []string{"result"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklog_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.bookOperations,
		c.sessionRefresh,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveBookOperation は本に対する操作の結果を記録する。
func (c *Collector) ObserveBookOperation(op, result string) {
	c.bookOperations.WithLabelValues(op, result).Inc()
}

// ObserveSessionRefresh はアクセストークン再発行の結果を記録する。
func (c *Collector) ObserveSessionRefresh(result string) {
	c.sessionRefresh.WithLabelValues(result).Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Middleware はHTTPリクエストのメトリクスを記録するミドルウェアを返す。
// routeラベルにはchiのルートパターンを使う。
func Middleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			c.RecordHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
