package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// OpenTabTool opens a new tab.
type OpenTabTool struct {
	host browser.Host
	opts Options
}

// OpenTabResult reports the tab OPEN_TAB created.
type OpenTabResult struct {
	Message string `json:"message"`
	TabID   int    `json:"tab_id"`
	URL     string `json:"url"`
}

func (t *OpenTabTool) Action() types.ActionType { return types.ActionOpenTab }
func (t *OpenTabTool) Scope() tools.Scope        { return tools.ScopeBrowser }

func (t *OpenTabTool) Description() string {
	return "Open a new tab, optionally navigating it to a URL. The new tab is focused unless active is false."
}

func (t *OpenTabTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"url":    prop("string", "URL to open. Defaults to about:blank"),
		"active": prop("boolean", "Focus the new tab. Default: true"),
	}, nil)
}

func (t *OpenTabTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	url := call.Params.String("url")
	if url == "" {
		url = "about:blank"
	}
	if url != "about:blank" {
		if err := t.opts.Policy.Check(url); err != nil {
			return nil, err
		}
	}

	tab, err := t.host.CreateTab(ctx, url, call.Params.Bool("active", true))
	if err != nil {
		return nil, err
	}
	return OpenTabResult{Message: "Opened new tab: " + url, TabID: tab.ID, URL: tab.URL}, nil
}

// CloseTabTool closes the target tab.
type CloseTabTool struct {
	host browser.Host
}

func (t *CloseTabTool) Action() types.ActionType { return types.ActionCloseTab }
func (t *CloseTabTool) Scope() tools.Scope        { return tools.ScopeTab }
func (t *CloseTabTool) Description() string      { return "Close a tab." }

func (t *CloseTabTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{"tab_id": tabIDProp}, nil)
}

func (t *CloseTabTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	if err := t.host.CloseTab(ctx, call.Target.TabID); err != nil {
		return nil, err
	}
	return message("Closed tab %d", call.Target.TabID), nil
}

// SwitchTabTool focuses a tab chosen by id or by direction.
type SwitchTabTool struct {
	host browser.Host
}

func (t *SwitchTabTool) Action() types.ActionType { return types.ActionSwitchTab }
func (t *SwitchTabTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *SwitchTabTool) Description() string {
	return "Focus another tab, either by tab_id or by direction (next or previous, wrapping around)."
}

func (t *SwitchTabTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":    prop("integer", "Tab to focus"),
		"direction": prop("string", "'next' or 'previous' relative to the active tab"),
	}, nil)
}

func (t *SwitchTabTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	_, hasID := call.Params.TabID()
	direction := call.Params.String("direction")
	if !hasID && direction == "" {
		return nil, errors.New("Invalid switch tab parameters")
	}

	target := call.Target
	if !hasID {
		var err error
		target, err = browser.NewResolver(t.host).Relative(ctx, direction)
		if err != nil {
			return nil, err
		}
	}
	if err := t.host.ActivateTab(ctx, target.TabID); err != nil {
		return nil, err
	}
	if hasID {
		return message("Switched to tab %d", target.TabID), nil
	}
	return message("Switched to %s tab", direction), nil
}

// DuplicateTabTool opens a copy of the target tab.
type DuplicateTabTool struct {
	host browser.Host
}

// DuplicateTabResult reports the copy DUPLICATE_TAB created.
type DuplicateTabResult struct {
	Message  string `json:"message"`
	NewTabID int    `json:"new_tab_id"`
}

func (t *DuplicateTabTool) Action() types.ActionType { return types.ActionDuplicateTab }
func (t *DuplicateTabTool) Scope() tools.Scope        { return tools.ScopeTab }
func (t *DuplicateTabTool) Description() string      { return "Open a copy of a tab and focus it." }

func (t *DuplicateTabTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{"tab_id": tabIDProp}, nil)
}

func (t *DuplicateTabTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	tab, err := t.host.DuplicateTab(ctx, call.Target.TabID)
	if err != nil {
		return nil, err
	}
	return DuplicateTabResult{
		Message:  fmt.Sprintf("Duplicated tab %d", call.Target.TabID),
		NewTabID: tab.ID,
	}, nil
}

// GetAllTabsTool lists every open tab.
type GetAllTabsTool struct {
	host browser.Host
}

// TabSummary is one entry of GET_ALL_TABS.
type TabSummary struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

func (t *GetAllTabsTool) Action() types.ActionType { return types.ActionGetAllTabs }
func (t *GetAllTabsTool) Scope() tools.Scope        { return tools.ScopeBrowser }
func (t *GetAllTabsTool) Description() string      { return "List every open tab with its URL and title." }

func (t *GetAllTabsTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{}, nil)
}

func (t *GetAllTabsTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	tabs, err := t.host.Tabs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TabSummary, 0, len(tabs))
	for _, tab := range tabs {
		out = append(out, TabSummary{ID: tab.ID, URL: tab.URL, Title: tab.Title, Active: tab.Active})
	}
	return map[string]any{"tabs": out}, nil
}
