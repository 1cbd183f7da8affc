package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/types"
)

// CallSpec describes one correlated exchange: the request event, the events that
// report progress, and the terminal events that complete it.
type CallSpec struct {
	Request  types.EventName
	Progress []types.EventName
	Success  []types.EventName
	Failure  []types.EventName
	// Timeout bounds the whole exchange. Zero uses the request_timeout setting.
	Timeout time.Duration
}

func (s CallSpec) name() string {
	return string(s.Request)
}

func (s CallSpec) listens(e types.EventName) bool {
	return slices.Contains(s.Progress, e) || slices.Contains(s.Success, e) || slices.Contains(s.Failure, e)
}

func (s CallSpec) timeoutError() error {
	return fmt.Errorf("%s: %w", s.name(), ErrTimeout)
}

func progressOf(fn func(types.Progress)) ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(f types.Frame) {
		var p types.Progress
		if err := f.Decode(&p); err != nil {
			p.Message = string(f.Data)
		}
		fn(p)
	}
}

// RunAgent asks the server to run an agent towards goal and streams its progress
// to onProgress until the run completes. Only one run may be active at a time.
func (m *Manager) RunAgent(ctx context.Context, goal string, onProgress func(types.Progress)) (json.RawMessage, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, errors.New("goal is required")
	}

	m.mu.Lock()
	if m.agentRunning {
		m.mu.Unlock()
		return nil, ErrAgentBusy
	}
	m.agentRunning = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.agentRunning = false
		m.mu.Unlock()
	}()

	spec := CallSpec{
		Request:  types.EventExecuteAgent,
		Progress: []types.EventName{types.EventAgentProgress},
		Success:  []types.EventName{types.EventAgentCompleted},
		Failure:  []types.EventName{types.EventAgentError, types.EventAgentStopped},
		Timeout:  m.cfg.AgentTimeout,
	}
	f, err := m.Call(ctx, spec, map[string]string{"goal": goal}, progressOf(onProgress))
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Event == types.EventAgentStopped {
			return nil, ErrAgentStopped
		}
		return nil, err
	}
	return f.Data, nil
}

// StopAgent asks the server to stop the active run. Once the server confirms,
// the local run ends with ErrAgentStopped even if the confirmation was addressed
// to the stop request only.
func (m *Manager) StopAgent(ctx context.Context) error {
	spec := CallSpec{
		Request: types.EventStopAgent,
		Success: []types.EventName{types.EventAgentStopped},
		Failure: []types.EventName{types.EventAgentError},
		Timeout: m.cfg.StopTimeout,
	}
	f, err := m.Call(ctx, spec, map[string]any{}, nil)
	if err != nil {
		return err
	}
	if n := m.pending.failRequests(types.EventExecuteAgent, remoteError(f)); n > 0 {
		m.logger.Debug("ended agent run after stop confirmation", zap.Int("runs", n))
	}
	return nil
}

// GenerateScript asks the server for an automation script and streams its progress.
func (m *Manager) GenerateScript(ctx context.Context, req types.ScriptRequest, onProgress func(types.Progress)) (json.RawMessage, error) {
	if strings.TrimSpace(req.Goal) == "" {
		return nil, errors.New("goal is required")
	}
	if req.Constraints == nil {
		req.Constraints = map[string]any{}
	}

	spec := CallSpec{
		Request:  types.EventGenerateScript,
		Progress: []types.EventName{types.EventScriptProgress},
		Success:  []types.EventName{types.EventScriptReady},
		Failure:  []types.EventName{types.EventScriptError},
		Timeout:  m.cfg.ScriptTimeout,
	}
	f, err := m.Call(ctx, spec, req, progressOf(onProgress))
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}

// GetStats fetches the server statistics.
func (m *Manager) GetStats(ctx context.Context) (map[string]any, error) {
	spec := CallSpec{
		Request: types.EventGetStats,
		Success: []types.EventName{types.EventStatsResponse},
		Failure: []types.EventName{types.EventStatsError},
		Timeout: m.cfg.RequestTimeout,
	}
	f, err := m.Call(ctx, spec, nil, nil)
	if err != nil {
		return nil, err
	}
	stats := map[string]any{}
	if err := f.Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Event, err)
	}
	return stats, nil
}

// ClearHistory asks the server to drop its conversation history.
func (m *Manager) ClearHistory(ctx context.Context) error {
	spec := CallSpec{
		Request: types.EventClearHistory,
		Success: []types.EventName{types.EventHistoryCleared},
		Failure: []types.EventName{types.EventClearError},
		Timeout: m.cfg.RequestTimeout,
	}
	_, err := m.Call(ctx, spec, nil, nil)
	return err
}

// UpdateResult pushes an edited result back to the server.
func (m *Manager) UpdateResult(ctx context.Context, result any) error {
	spec := CallSpec{
		Request: types.EventUpdateResult,
		Success: []types.EventName{types.EventResultUpdated},
		Failure: []types.EventName{types.EventUpdateError},
		Timeout: m.cfg.RequestTimeout,
	}
	_, err := m.Call(ctx, spec, map[string]any{"result": result}, nil)
	return err
}
