package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики для checkout операций.
type CheckoutMetrics struct {
	// Счётчики операций
	checkoutStarted           prometheus.Counter
	checkoutCompleted         prometheus.Counter
	checkoutAuthFailed        prometheus.Counter
	checkoutMaterializeFailed prometheus.Counter
	partialCompletions        prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration prometheus.Histogram
	stageDuration    *prometheus.HistogramVec

	// Счётчики сопутствующих событий
	notifyEvents prometheus.Counter
	outboxEvents prometheus.Counter

	// Gauge для активных checkout
	activeCheckouts prometheus.Gauge
}

// NewCheckoutMetrics создаёт новый экземпляр метрик checkout.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout operations started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_completed_total",
			Help: "Total number of checkout operations completed successfully",
		}),
		checkoutAuthFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_auth_failed_total",
			Help: "Total number of checkout operations rejected by the payment authority",
		}),
		checkoutMaterializeFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_materialize_failed_total",
			Help: "Total number of checkout operations failed while persisting the order",
		}),
		partialCompletions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_partial_completions_total",
			Help: "Total number of completed checkouts with failed post-create side effects",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_stage_duration_seconds",
			Help:    "Duration of individual checkout stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"stage"}),
		notifyEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_notify_events_total",
			Help: "Total number of events broadcast to connected clients",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_checkouts",
			Help: "Number of currently active checkout operations",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик запущенных checkout.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
	m.RecordCheckoutInFlightStarted()
}

// RecordCheckoutCompleted увеличивает счётчик завершённых checkout.
func (m *CheckoutMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutAuthFailed увеличивает счётчик отклонённых авторизаций.
func (m *CheckoutMetrics) RecordCheckoutAuthFailed() {
	m.checkoutAuthFailed.Inc()
}

// RecordCheckoutMaterializeFailed увеличивает счётчик неудачных материализаций.
func (m *CheckoutMetrics) RecordCheckoutMaterializeFailed() {
	m.checkoutMaterializeFailed.Inc()
}

// RecordPartialCompletion увеличивает счётчик частично завершённых checkout.
func (m *CheckoutMetrics) RecordPartialCompletion() {
	m.partialCompletions.Inc()
}

// RecordCheckoutInFlightStarted увеличивает количество активных checkout.
func (m *CheckoutMetrics) RecordCheckoutInFlightStarted() {
	m.activeCheckouts.Inc()
}

// RecordCheckoutInFlightFinished уменьшает количество активных checkout.
func (m *CheckoutMetrics) RecordCheckoutInFlightFinished() {
	m.activeCheckouts.Dec()
}

// RecordCheckoutDuration записывает время выполнения checkout.
func (m *CheckoutMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordStageDuration записывает время выполнения стадии checkout.
func (m *CheckoutMetrics) RecordStageDuration(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordNotifyEvent увеличивает счётчик broadcast-событий.
func (m *CheckoutMetrics) RecordNotifyEvent() {
	m.notifyEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
