// Package metrics 暴露 Prometheus 指标
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gopher0727/Rally/internal/models"
)

type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	events    *prometheus.CounterVec
	wsClients prometheus.GaugeFunc
}

// New onlineFn 为 nil 时不注册在线连接数
func New(onlineFn func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rally",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rally",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rally",
			Name:      "events_published_total",
			Help:      "Group events handed to the publisher, by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.events,
	)
	if onlineFn != nil {
		m.wsClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rally",
			Name:      "websocket_users_online",
			Help:      "Users with at least one live WebSocket connection on this instance.",
		}, func() float64 { return float64(onlineFn()) })
		reg.MustRegister(m.wsClients)
	}
	return m
}

// Middleware 未匹配路由的请求统一记为 unmatched，避免标签爆炸
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) EventPublished(typ models.EventType) {
	m.events.WithLabelValues(string(typ)).Inc()
}

// Publisher 与 services.EventPublisher 同形
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

type countingPublisher struct {
	next Publisher
	m    *Metrics
}

func (p countingPublisher) Publish(ctx context.Context, ev models.Event) error {
	p.m.EventPublished(ev.Type)
	return p.next.Publish(ctx, ev)
}

// WrapPublisher 统计经过的事件
func (m *Metrics) WrapPublisher(next Publisher) Publisher {
	return countingPublisher{next: next, m: m}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
