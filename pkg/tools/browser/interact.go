package browser

import (
	"context"
	"time"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// ClickTool clicks an element.
type ClickTool struct {
	host browser.Host
}

func (t *ClickTool) Action() types.ActionType { return types.ActionClick }
func (t *ClickTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *ClickTool) Description() string {
	return "Click an element using a CSS selector, optionally waiting afterwards for the page to react."
}

func (t *ClickTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":     tabIDProp,
		"selector":   prop("string", "CSS selector for the element to click (e.g., 'button.submit', '#login-btn')"),
		"wait_after": prop("integer", "Milliseconds to wait after the click"),
	}, []string{"selector"})
}

func (t *ClickTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	var msg string
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.Click, map[string]any{"selector": selector}, &msg); err != nil {
		return nil, err
	}
	if err := sleep(ctx, time.Duration(call.Params.IntOr("wait_after", 0))*time.Millisecond); err != nil {
		return nil, err
	}
	return Message{Message: msg}, nil
}

// HoverTool dispatches a synthetic mouse-over on an element.
type HoverTool struct {
	host browser.Host
}

func (t *HoverTool) Action() types.ActionType { return types.ActionHover }
func (t *HoverTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *HoverTool) Description() string {
	return "Hover over an element, optionally holding for a duration so hover menus can open."
}

func (t *HoverTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":   tabIDProp,
		"selector": prop("string", "CSS selector"),
		"duration": prop("integer", "Milliseconds to wait after hovering"),
	}, []string{"selector"})
}

func (t *HoverTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	var msg string
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.Hover, map[string]any{"selector": selector}, &msg); err != nil {
		return nil, err
	}
	if err := sleep(ctx, time.Duration(call.Params.IntOr("duration", 0))*time.Millisecond); err != nil {
		return nil, err
	}
	return Message{Message: msg}, nil
}

// ScrollTool scrolls the page or brings an element into view.
type ScrollTool struct {
	host browser.Host
}

// ScrollResult is the result of SCROLL.
type ScrollResult struct {
	Message string  `json:"message"`
	ScrollY float64 `json:"scroll_y"`
}

func (t *ScrollTool) Action() types.ActionType { return types.ActionScroll }
func (t *ScrollTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *ScrollTool) Description() string {
	return "Scroll the page up, down, left, right, to the top or bottom, or to an element."
}

func (t *ScrollTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":     tabIDProp,
		"direction":  prop("string", "'down' (default), 'up', 'left', 'right', 'top' or 'bottom'"),
		"amount":     prop("integer", "Pixels to scroll. Default: 500"),
		"to_element": prop("string", "CSS selector of an element to scroll into view instead"),
	}, nil)
}

func (t *ScrollTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	direction := call.Params.String("direction")
	if direction == "" {
		direction = "down"
	}
	arg := map[string]any{
		"direction":  direction,
		"amount":     call.Params.IntOr("amount", DefaultScrollAmount),
		"to_element": call.Params.String("to_element"),
	}

	var res struct {
		Message string  `json:"message"`
		ScrollY float64 `json:"scrollY"`
	}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.Scroll, arg, &res); err != nil {
		return nil, err
	}
	return ScrollResult{Message: res.Message, ScrollY: res.ScrollY}, nil
}
