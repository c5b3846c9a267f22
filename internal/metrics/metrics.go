package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bazaar"

// Metrics 结算链路计数器。所有方法对 nil 接收者安全，便于测试省略。
type Metrics struct {
	registry *prometheus.Registry

	checkouts          *prometheus.CounterVec
	allocationFailures *prometheus.CounterVec
	paymentTransitions *prometheus.CounterVec
	callbacks          *prometheus.CounterVec
	dispatchVendors    *prometheus.CounterVec
	compensations      *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New 创建独立 registry 的指标集合
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "checkouts_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		allocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "number_allocation_failures_total",
			Help: "Order number allocation failures by strategy.",
		}, []string{"strategy"}),
		paymentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "transitions_total",
			Help: "Applied payment status transitions.",
		}, []string{"method", "to"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "gateway_callbacks_total",
			Help: "Gateway callbacks by result.",
		}, []string{"result"}),
		dispatchVendors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fanout", Name: "vendor_results_total",
			Help: "Per-vendor dispatch outcomes.",
		}, []string{"outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "profile", Name: "compensations_total",
			Help: "Buyer profile compensation appends by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(
		m.checkouts,
		m.allocationFailures,
		m.paymentTransitions,
		m.callbacks,
		m.dispatchVendors,
		m.compensations,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler /metrics 导出
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露底层 registry（测试读取用）
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Checkout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) AllocationFailed(strategy string) {
	if m == nil {
		return
	}
	m.allocationFailures.WithLabelValues(strategy).Inc()
}

func (m *Metrics) PaymentTransition(method, to string) {
	if m == nil {
		return
	}
	m.paymentTransitions.WithLabelValues(method, to).Inc()
}

func (m *Metrics) GatewayCallback(result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) DispatchOutcome(outcome string) {
	if m == nil {
		return
	}
	m.dispatchVendors.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Compensation(result string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(result).Inc()
}

// ObserveHTTP 记录请求耗时
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
