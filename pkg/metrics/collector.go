// Package metrics exposes prometheus collectors for tool dispatch and the server channel.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every tabwire metric.
const Namespace = "tabwire"

// Outcome labels for tool calls.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown_tool"
	OutcomePanic   = "panic"
)

// Frame directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Collector groups the dispatch and channel metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	toolCalls         *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	channelState      *prometheus.GaugeVec
	reconnectAttempts prometheus.Counter
	callTimeouts      *prometheus.CounterVec
	frames            *prometheus.CounterVec

	states []string
}

// NewCollector registers the collectors on reg. A nil reg registers on the default registry.
func NewCollector(reg prometheus.Registerer, states []string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of dispatched tool calls",
			},
			[]string{"action", "outcome"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"action"},
		),
		channelState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "channel_state",
				Help:      "1 for the current connection state, 0 for the others",
			},
			[]string{"state"},
		),
		reconnectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "channel_reconnect_attempts_total",
				Help:      "Total number of scheduled reconnect attempts",
			},
		),
		callTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "channel_call_timeouts_total",
				Help:      "Total number of correlated calls that timed out",
			},
			[]string{"call"},
		),
		frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "channel_frames_total",
				Help:      "Total number of frames sent and received",
			},
			[]string{"direction"},
		),
		states: append([]string(nil), states...),
	}
}

// RecordToolCall records one dispatched tool call.
func (c *Collector) RecordToolCall(action, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(action, outcome).Inc()
	c.toolCallDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// SetChannelState marks state as current and clears every other known state.
func (c *Collector) SetChannelState(state string) {
	if c == nil {
		return
	}
	for _, s := range c.states {
		c.channelState.WithLabelValues(s).Set(0)
	}
	c.channelState.WithLabelValues(state).Set(1)
}

// RecordReconnectAttempt counts one scheduled reconnect.
func (c *Collector) RecordReconnectAttempt() {
	if c == nil {
		return
	}
	c.reconnectAttempts.Inc()
}

// RecordCallTimeout counts one timed out call by its request event.
func (c *Collector) RecordCallTimeout(call string) {
	if c == nil {
		return
	}
	c.callTimeouts.WithLabelValues(call).Inc()
}

// RecordFrame counts one frame in direction.
func (c *Collector) RecordFrame(direction string) {
	if c == nil {
		return
	}
	c.frames.WithLabelValues(direction).Inc()
}
