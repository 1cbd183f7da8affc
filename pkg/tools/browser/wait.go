package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// WaitTool sleeps for a fixed time.
type WaitTool struct{}

func (t *WaitTool) Action() types.ActionType { return types.ActionWait }
func (t *WaitTool) Scope() tools.Scope        { return tools.ScopeBrowser }
func (t *WaitTool) Description() string      { return "Wait for a fixed number of milliseconds." }

func (t *WaitTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"time": prop("integer", "Milliseconds to wait. Default: 1000"),
	}, nil)
}

func (t *WaitTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	ms := call.Params.IntOr("time", int(DefaultWaitTime/time.Millisecond))
	if ms < 0 {
		ms = 0
	}
	if err := sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return nil, err
	}
	return message("Waited %dms", ms), nil
}

// Wait conditions accepted by WAIT_FOR_ELEMENT.
const (
	ConditionExists  = "exists"
	ConditionVisible = "visible"
	ConditionHidden  = "hidden"
)

// WaitForElementTool polls until an element exists, is visible or is hidden.
type WaitForElementTool struct {
	host browser.Host
	opts Options
}

func (t *WaitForElementTool) Action() types.ActionType { return types.ActionWaitForElement }
func (t *WaitForElementTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *WaitForElementTool) Description() string {
	return "Wait until an element exists, is visible or is hidden. Fails when the timeout elapses first."
}

func (t *WaitForElementTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":    tabIDProp,
		"selector":  prop("string", "CSS selector for the element to wait for (e.g., '.loading-spinner', '#content')"),
		"condition": prop("string", "'visible' (default), 'exists' or 'hidden'"),
		"timeout":   prop("integer", "Maximum wait time in milliseconds. Default: 10000"),
	}, []string{"selector"})
}

type elementState struct {
	Exists  bool `json:"exists"`
	Visible bool `json:"visible"`
}

func (s elementState) satisfies(condition string) bool {
	switch condition {
	case ConditionExists:
		return s.Exists
	case ConditionHidden:
		return !s.Exists || !s.Visible
	default:
		return s.Exists && s.Visible
	}
}

func (t *WaitForElementTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	condition := call.Params.String("condition")
	switch condition {
	case "":
		condition = ConditionVisible
	case ConditionExists, ConditionVisible, ConditionHidden:
	default:
		return nil, fmt.Errorf("invalid condition %q: expected exists, visible or hidden", condition)
	}
	timeout := t.opts.ElementWaitTimeout
	if ms, ok := call.Params.Int("timeout"); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	arg := map[string]any{"selector": selector}
	for {
		var state elementState
		err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.ElementState, arg, &state)
		if err != nil && !isTransient(err) {
			return nil, err
		}
		if err == nil && state.satisfies(condition) {
			return message("Element %s is %s", selector, condition), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("Timeout waiting for %s to be %s", selector, condition)
		case <-ticker.C:
		}
	}
}

// isTransient reports script failures that a later poll may not hit, such as the
// page navigating away mid-evaluation.
func isTransient(err error) bool {
	var se *browser.ScriptError
	if errors.As(err, &se) {
		return true
	}
	return !errors.Is(err, browser.ErrTabNotFound) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
