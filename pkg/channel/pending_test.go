package channel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/entrhq/tabwire/pkg/types"
)

var statsSpec = CallSpec{
	Request: types.EventGetStats,
	Success: []types.EventName{types.EventStatsResponse},
	Failure: []types.EventName{types.EventStatsError},
	Timeout: time.Minute,
}

func TestPendingSuccess(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	call := table.add("a", statsSpec, nil)

	table.deliver(types.Frame{Event: types.EventStatsResponse, RequestID: "a", Data: []byte(`{"n":1}`)})

	res := <-call.done
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"n":1}`, string(res.frame.Data))
	assert.Equal(t, 0, table.len())
}

func TestPendingFailureCarriesRemoteMessage(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	call := table.add("a", statsSpec, nil)

	table.deliver(types.Frame{Event: types.EventStatsError, RequestID: "a", Data: []byte(`{"error":"db down"}`)})

	res := <-call.done
	var remote *RemoteError
	require.ErrorAs(t, res.err, &remote)
	assert.Equal(t, types.EventStatsError, remote.Event)
	assert.Equal(t, "db down", remote.Error())
}

func TestPendingTimeoutIgnoresLateResponse(t *testing.T) {
	timedOut := make(chan string, 1)
	table := newPendingTable(zaptest.NewLogger(t), func(s CallSpec) { timedOut <- s.name() })
	spec := statsSpec
	spec.Timeout = 10 * time.Millisecond
	call := table.add("a", spec, nil)

	res := <-call.done
	assert.True(t, errors.Is(res.err, ErrTimeout))

	table.deliver(types.Frame{Event: types.EventStatsResponse, RequestID: "a"})
	assert.Len(t, call.done, 0)
	assert.Equal(t, "get_stats_ws", <-timedOut)
}

func TestPendingFrameWithoutIDReachesEveryListener(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	a := table.add("a", statsSpec, nil)
	b := table.add("b", statsSpec, nil)
	other := table.add("c", CallSpec{Request: types.EventClearHistory, Success: []types.EventName{types.EventHistoryCleared}, Timeout: time.Minute}, nil)

	table.deliver(types.Frame{Event: types.EventStatsResponse})

	require.NoError(t, (<-a.done).err)
	require.NoError(t, (<-b.done).err)
	assert.Len(t, other.done, 0)
	assert.Equal(t, 1, table.len())
}

func TestPendingProgressKeepsCallOpen(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	var seen []string
	spec := CallSpec{
		Request:  types.EventExecuteAgent,
		Progress: []types.EventName{types.EventAgentProgress},
		Success:  []types.EventName{types.EventAgentCompleted},
		Timeout:  time.Minute,
	}
	call := table.add("run", spec, func(f types.Frame) {
		seen = append(seen, string(f.Data))
		if len(seen) == 1 {
			panic("callback bug")
		}
	})

	table.deliver(types.Frame{Event: types.EventAgentProgress, RequestID: "run", Data: []byte(`"1"`)})
	table.deliver(types.Frame{Event: types.EventAgentProgress, RequestID: "run", Data: []byte(`"2"`)})
	assert.Equal(t, 1, table.len())

	table.deliver(types.Frame{Event: types.EventAgentCompleted, RequestID: "run"})
	require.NoError(t, (<-call.done).err)
	assert.Equal(t, []string{`"1"`, `"2"`}, seen)
}

func TestPendingCompletesExactlyOnce(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	spec := statsSpec
	spec.Timeout = time.Millisecond

	for i := 0; i < 100; i++ {
		call := table.add("race", spec, nil)
		var wg sync.WaitGroup
		wins := make(chan bool, 3)
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				wins <- table.finish("race", callResult{})
			}()
		}
		wg.Wait()
		close(wins)

		<-call.done
		n := 0
		for w := range wins {
			if w {
				n++
			}
		}
		assert.LessOrEqual(t, n, 1)
		assert.Len(t, call.done, 0)
	}
}

func TestPendingFailAll(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	a := table.add("a", statsSpec, nil)
	b := table.add("b", statsSpec, nil)

	assert.Equal(t, 2, table.failAll(ErrDisconnected))
	assert.ErrorIs(t, (<-a.done).err, ErrDisconnected)
	assert.ErrorIs(t, (<-b.done).err, ErrDisconnected)
	assert.Equal(t, 0, table.failAll(ErrDisconnected))
}

func TestPendingFailRequestsOnlyMatchingCalls(t *testing.T) {
	table := newPendingTable(zaptest.NewLogger(t), nil)
	agentSpec := CallSpec{
		Request: types.EventExecuteAgent,
		Success: []types.EventName{types.EventAgentCompleted},
		Timeout: time.Minute,
	}
	run := table.add("run", agentSpec, nil)
	table.add("stats", statsSpec, nil)

	assert.Equal(t, 1, table.failRequests(types.EventExecuteAgent, ErrAgentStopped))
	assert.ErrorIs(t, (<-run.done).err, ErrAgentStopped)
	assert.Equal(t, 1, table.len())
	assert.Equal(t, 0, table.failRequests(types.EventExecuteAgent, ErrAgentStopped))
}
