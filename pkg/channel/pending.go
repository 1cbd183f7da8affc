package channel

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/types"
)

// ProgressFunc receives the progress frames of a streaming call.
type ProgressFunc func(types.Frame)

type callResult struct {
	frame types.Frame
	err   error
}

type pendingCall struct {
	id         string
	spec       CallSpec
	onProgress ProgressFunc
	done       chan callResult
	timer      *time.Timer
}

// pendingTable holds the correlated calls waiting for a terminal frame.
// An entry leaves the table exactly once, through take.
type pendingTable struct {
	logger    *zap.Logger
	onTimeout func(spec CallSpec)

	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable(logger *zap.Logger, onTimeout func(CallSpec)) *pendingTable {
	return &pendingTable{
		logger:    logger,
		onTimeout: onTimeout,
		calls:     make(map[string]*pendingCall),
	}
}

// add registers a call and arms its timer.
func (t *pendingTable) add(id string, spec CallSpec, onProgress ProgressFunc) *pendingCall {
	c := &pendingCall{
		id:         id,
		spec:       spec,
		onProgress: onProgress,
		done:       make(chan callResult, 1),
	}

	t.mu.Lock()
	t.calls[id] = c
	c.timer = time.AfterFunc(spec.Timeout, func() {
		if t.finish(id, callResult{err: spec.timeoutError()}) {
			t.logger.Warn("call timed out",
				zap.String("call", spec.name()),
				zap.String("request_id", id),
				zap.Duration("timeout", spec.Timeout))
			if t.onTimeout != nil {
				t.onTimeout(spec)
			}
		}
	})
	t.mu.Unlock()
	return c
}

// take removes id from the table. Only the first caller gets the entry.
func (t *pendingTable) take(id string) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.calls[id]
	if !ok {
		return nil, false
	}
	delete(t.calls, id)
	c.timer.Stop()
	return c, true
}

// finish completes id with res. It reports false when the entry was already gone.
func (t *pendingTable) finish(id string, res callResult) bool {
	c, ok := t.take(id)
	if !ok {
		return false
	}
	c.done <- res
	return true
}

// deliver routes an inbound frame to the calls it answers. A frame carrying a
// request id only reaches that call; one without reaches every call listening
// for its event.
func (t *pendingTable) deliver(f types.Frame) {
	t.mu.Lock()
	var targets []*pendingCall
	if f.RequestID != "" {
		if c, ok := t.calls[f.RequestID]; ok && c.spec.listens(f.Event) {
			targets = append(targets, c)
		}
	} else {
		for _, c := range t.calls {
			if c.spec.listens(f.Event) {
				targets = append(targets, c)
			}
		}
	}
	t.mu.Unlock()

	if len(targets) == 0 && f.RequestID != "" {
		t.logger.Debug("ignoring frame for unknown call",
			zap.String("event", string(f.Event)),
			zap.String("request_id", f.RequestID))
		return
	}

	for _, c := range targets {
		switch {
		case slices.Contains(c.spec.Progress, f.Event):
			t.progress(c, f)
		case slices.Contains(c.spec.Success, f.Event):
			t.finish(c.id, callResult{frame: f})
		case slices.Contains(c.spec.Failure, f.Event):
			t.finish(c.id, callResult{frame: f, err: remoteError(f)})
		}
	}
}

func (t *pendingTable) progress(c *pendingCall, f types.Frame) {
	if c.onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("progress callback panicked",
				zap.String("call", c.spec.name()),
				zap.Any("panic", r))
		}
	}()
	c.onProgress(f)
}

// failAll completes every pending call with err.
func (t *pendingTable) failAll(err error) int {
	return t.failRequests("", err)
}

// failRequests completes the pending calls made with request event with err.
// An empty event matches every call.
func (t *pendingTable) failRequests(request types.EventName, err error) int {
	t.mu.Lock()
	ids := make([]string, 0, len(t.calls))
	for id, c := range t.calls {
		if request == "" || c.spec.Request == request {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	n := 0
	for _, id := range ids {
		if t.finish(id, callResult{err: err}) {
			n++
		}
	}
	return n
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
