package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestCollector() *Collector {
	return NewCollector(prometheus.NewRegistry(), []string{"disconnected", "connected"})
}

func TestCollector_RecordToolCall(t *testing.T) {
	c := newTestCollector()

	c.RecordToolCall("CLICK", OutcomeSuccess, 20*time.Millisecond)
	c.RecordToolCall("CLICK", OutcomeSuccess, 30*time.Millisecond)
	c.RecordToolCall("CLICK", OutcomeFailure, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.toolCalls.WithLabelValues("CLICK", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCalls.WithLabelValues("CLICK", OutcomeFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.toolCallDuration))
}

func TestCollector_SetChannelState(t *testing.T) {
	c := newTestCollector()

	c.SetChannelState("connected")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.channelState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.channelState.WithLabelValues("disconnected")))

	c.SetChannelState("disconnected")
	assert.Equal(t, 0.0, testutil.ToFloat64(c.channelState.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.channelState.WithLabelValues("disconnected")))
}

func TestCollector_ChannelCounters(t *testing.T) {
	c := newTestCollector()

	c.RecordReconnectAttempt()
	c.RecordReconnectAttempt()
	c.RecordCallTimeout("get_stats_ws")
	c.RecordFrame(DirectionIn)
	c.RecordFrame(DirectionOut)
	c.RecordFrame(DirectionOut)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.reconnectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callTimeouts.WithLabelValues("get_stats_ws")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues(DirectionOut)))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordToolCall("CLICK", OutcomeSuccess, time.Millisecond)
		c.SetChannelState("connected")
		c.RecordReconnectAttempt()
		c.RecordCallTimeout("x")
		c.RecordFrame(DirectionIn)
	})
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestCollector()
		newTestCollector()
	})
}
