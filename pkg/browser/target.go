package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/tabwire/pkg/types"
)

// Resolver turns request parameters into the tab a tool should act on.
type Resolver struct {
	host Host
}

// NewResolver returns a resolver backed by host.
func NewResolver(host Host) *Resolver {
	return &Resolver{host: host}
}

// Resolve picks the target tab: an explicit tab_id (or tabId) that must still be
// open, otherwise the active tab. A direction param is left to the tool; only
// SWITCH_TAB reads it as a tab choice, see Relative.
func (r *Resolver) Resolve(ctx context.Context, params types.Params) (types.TargetHandle, error) {
	if id, ok := params.TabID(); ok {
		tab, err := r.host.Tab(ctx, id)
		if err != nil {
			return types.TargetHandle{}, err
		}
		return handle(tab), nil
	}

	tab, err := r.host.ActiveTab(ctx)
	if err != nil {
		return types.TargetHandle{}, err
	}
	return handle(tab), nil
}

// Relative returns the tab next to or before the active one in its window,
// wrapping around. dir is next, previous or prev.
func (r *Resolver) Relative(ctx context.Context, dir string) (types.TargetHandle, error) {
	var step int
	switch strings.ToLower(dir) {
	case "next":
		step = 1
	case "previous", "prev":
		step = -1
	default:
		return types.TargetHandle{}, fmt.Errorf("invalid direction %q: expected next or previous", dir)
	}

	tabs, err := r.host.Tabs(ctx)
	if err != nil {
		return types.TargetHandle{}, err
	}
	if len(tabs) == 0 {
		return types.TargetHandle{}, ErrNoActiveTab
	}

	current := -1
	for i, t := range tabs {
		if t.Active {
			current = i
			break
		}
	}
	if current < 0 {
		return types.TargetHandle{}, ErrNoActiveTab
	}

	n := len(tabs)
	next := ((current+step)%n + n) % n
	return handle(tabs[next]), nil
}

func handle(t Tab) types.TargetHandle {
	return types.TargetHandle{TabID: t.ID, WindowID: t.WindowID}
}
