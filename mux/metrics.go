package mux

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/livesub/metric"
)

// muxMetrics holds Prometheus metrics for multiplexer operations.
type muxMetrics struct {
	channelsOpen   prometheus.Gauge
	channelsOpened prometheus.Counter
	channelsClosed prometheus.Counter
	updates        prometheus.Counter
	channelErrors  prometheus.Counter
	callbacks      *prometheus.CounterVec
	coalesced      prometheus.Counter
	graceReuses    prometheus.Counter
	rateLimited    prometheus.Counter
}

// newMuxMetrics creates and registers multiplexer metrics.
func newMuxMetrics(registrar metric.MetricsRegistrar) (*muxMetrics, error) {
	m := &muxMetrics{
		channelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "channels_open",
			Help:      "Physical channels currently open, including draining keys",
		}),
		channelsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "channels_opened_total",
			Help:      "Total physical channel opens",
		}),
		channelsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "channels_closed_total",
			Help:      "Total physical channel closes",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "updates_total",
			Help:      "Physical updates received across all keys",
		}),
		channelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "channel_errors_total",
			Help:      "Physical channel errors received across all keys",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "callbacks_total",
			Help:      "Callback invocations by callback type",
		}, []string{"type"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "coalesced_updates_total",
			Help:      "Updates absorbed by debounce windows instead of delivered",
		}),
		graceReuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "grace_reuses_total",
			Help:      "Draining channels reused by a new subscriber inside the grace window",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livesub",
			Subsystem: "mux",
			Name:      "rate_limited_total",
			Help:      "Subscribe calls rejected by the rate limiter",
		}),
	}

	if err := registrar.RegisterGauge("mux", "channels_open", m.channelsOpen); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "channels_opened_total", m.channelsOpened); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "channels_closed_total", m.channelsClosed); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "updates_total", m.updates); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "channel_errors_total", m.channelErrors); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounterVec("mux", "callbacks_total", m.callbacks); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "coalesced_updates_total", m.coalesced); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "grace_reuses_total", m.graceReuses); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter("mux", "rate_limited_total", m.rateLimited); err != nil {
		return nil, err
	}

	return m, nil
}
