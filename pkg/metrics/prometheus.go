package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	manipulation *prometheus.GaugeVec
	phase        *prometheus.GaugeVec
	outcomes     *prometheus.CounterVec
}

// phases are exported as one 0/1 series each so a dashboard can stack them.
var phases = []string{"IDLE", "ACTIVE", "RETURNING"}

// New creates a Prometheus metrics recorder on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the recorder's collectors on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceshaper_messages_sent_total",
				Help: "Total number of synthesized bars sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceshaper_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "priceshaper_last_price",
				Help: "Last displayed close for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "priceshaper_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		manipulation: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "priceshaper_manipulation_percent",
				Help: "Displayed close deviation from raw close, in percent",
			},
			[]string{"symbol"},
		),
		phase: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "priceshaper_engine_phase",
				Help: "1 for the current overlay phase of a symbol, 0 otherwise",
			},
			[]string{"symbol", "phase"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priceshaper_tick_outcomes_total",
				Help: "Live ticks by overlay outcome",
			},
			[]string{"symbol", "outcome"},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordManipulation(symbol string, percent float64) {
	r.manipulation.WithLabelValues(symbol).Set(percent)
}

func (r *Recorder) RecordPhase(symbol, phase string) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		r.phase.WithLabelValues(symbol, p).Set(v)
	}
}

func (r *Recorder) RecordOutcome(symbol, outcome string) {
	r.outcomes.WithLabelValues(symbol, outcome).Inc()
}
