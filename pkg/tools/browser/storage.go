package browser

import (
	"context"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// GetLocalStorageTool reads one localStorage key, or all of them.
type GetLocalStorageTool struct {
	host browser.Host
}

func (t *GetLocalStorageTool) Action() types.ActionType { return types.ActionGetLocalStorage }
func (t *GetLocalStorageTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *GetLocalStorageTool) Description() string {
	return "Read a localStorage value, or every key and value when no key is given."
}

func (t *GetLocalStorageTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id": tabIDProp,
		"key":    prop("string", "Key to read. Default: all keys"),
	}, nil)
}

func (t *GetLocalStorageTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	return t.host.Execute(ctx, call.Target.TabID, scripts.LocalStorageGet, map[string]any{"key": call.Params.String("key")})
}

// SetLocalStorageTool writes one localStorage key.
type SetLocalStorageTool struct {
	host browser.Host
}

func (t *SetLocalStorageTool) Action() types.ActionType { return types.ActionSetLocalStorage }
func (t *SetLocalStorageTool) Scope() tools.Scope        { return tools.ScopeTab }
func (t *SetLocalStorageTool) Description() string      { return "Write a localStorage value." }

func (t *SetLocalStorageTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id": tabIDProp,
		"key":    prop("string", "Key to write"),
		"value":  prop("string", "Value to store"),
	}, []string{"key", "value"})
}

func (t *SetLocalStorageTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	key, err := tools.RequireString(call.Params, "key")
	if err != nil {
		return nil, err
	}
	var msg string
	arg := map[string]any{"key": key, "value": call.Params.String("value")}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.LocalStorageSet, arg, &msg); err != nil {
		return nil, err
	}
	return Message{Message: msg}, nil
}
