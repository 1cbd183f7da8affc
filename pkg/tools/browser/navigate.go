package browser

import (
	"context"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// NavigateTool loads a URL in the target tab.
type NavigateTool struct {
	host browser.Host
	opts Options
}

func (t *NavigateTool) Action() types.ActionType { return types.ActionNavigate }
func (t *NavigateTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *NavigateTool) Description() string {
	return "Navigate a tab to a URL. With wait_for_load the call returns once the page has loaded, or after the navigation timeout."
}

func (t *NavigateTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":        tabIDProp,
		"url":           prop("string", "URL to navigate to (must include protocol, e.g., https://example.com)"),
		"wait_for_load": prop("boolean", "Wait for the load event. Default: false"),
	}, []string{"url"})
}

func (t *NavigateTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	url, err := tools.RequireString(call.Params, "url")
	if err != nil {
		return nil, err
	}
	if err := t.opts.Policy.Check(url); err != nil {
		return nil, err
	}

	id := call.Target.TabID
	if err := t.host.Navigate(ctx, id, url); err != nil {
		return nil, err
	}
	if call.Params.Bool("wait_for_load", false) {
		if err := waitForLoad(ctx, t.host, id, t.opts.NavigationTimeout, t.opts.Logger); err != nil {
			return nil, err
		}
	}
	return message("Navigated to %s", url), nil
}

// ReloadTabTool reloads the target tab and waits for it to load.
type ReloadTabTool struct {
	host browser.Host
	opts Options
}

func (t *ReloadTabTool) Action() types.ActionType { return types.ActionReloadTab }
func (t *ReloadTabTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *ReloadTabTool) Description() string {
	return "Reload a tab and wait for it to load, or for the reload timeout."
}

func (t *ReloadTabTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":       tabIDProp,
		"bypass_cache": prop("boolean", "Ask the server for fresh content. Default: false"),
	}, nil)
}

func (t *ReloadTabTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	id := call.Target.TabID
	if err := t.host.Reload(ctx, id, call.Params.Bool("bypass_cache", false)); err != nil {
		return nil, err
	}
	if err := waitForLoad(ctx, t.host, id, t.opts.ReloadTimeout, t.opts.Logger); err != nil {
		return nil, err
	}
	return message("Tab reloaded"), nil
}

// GoBackTool navigates back in the target tab's history.
type GoBackTool struct {
	host browser.Host
}

func (t *GoBackTool) Action() types.ActionType { return types.ActionGoBack }
func (t *GoBackTool) Scope() tools.Scope        { return tools.ScopeTab }
func (t *GoBackTool) Description() string      { return "Go back one entry in a tab's history." }

func (t *GoBackTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{"tab_id": tabIDProp}, nil)
}

func (t *GoBackTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	if err := t.host.GoBack(ctx, call.Target.TabID); err != nil {
		return nil, err
	}
	return message("Navigated back"), nil
}

// GoForwardTool navigates forward in the target tab's history.
type GoForwardTool struct {
	host browser.Host
}

func (t *GoForwardTool) Action() types.ActionType { return types.ActionGoForward }
func (t *GoForwardTool) Scope() tools.Scope        { return tools.ScopeTab }
func (t *GoForwardTool) Description() string      { return "Go forward one entry in a tab's history." }

func (t *GoForwardTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{"tab_id": tabIDProp}, nil)
}

func (t *GoForwardTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	if err := t.host.GoForward(ctx, call.Target.TabID); err != nil {
		return nil, err
	}
	return message("Navigated forward"), nil
}
