package browser

import (
	"context"
	"errors"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// ErrCustomScriptsDisabled is returned by EXECUTE_SCRIPT when custom scripts are off.
var ErrCustomScriptsDisabled = errors.New("custom scripts are disabled by configuration")

// ExecuteScriptTool runs caller-supplied code inside the page.
type ExecuteScriptTool struct {
	host browser.Host
	opts Options
}

func (t *ExecuteScriptTool) Action() types.ActionType { return types.ActionExecuteScript }
func (t *ExecuteScriptTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *ExecuteScriptTool) Description() string {
	return "Run a JavaScript function body inside the page. The body sees its input as `args`, may use await, and its return value must be JSON-serializable."
}

func (t *ExecuteScriptTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id": tabIDProp,
		"script": prop("string", "Function body, e.g. 'return document.title;'"),
		"args":   map[string]any{"description": "Value passed to the script as args"},
	}, []string{"script"})
}

func (t *ExecuteScriptTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	if !t.opts.AllowCustomScripts {
		return nil, ErrCustomScriptsDisabled
	}
	body, err := tools.RequireString(call.Params, "script")
	if err != nil {
		return nil, err
	}

	args := call.Params["args"]
	if args == nil {
		args = []any{}
	}
	raw, err := t.host.Execute(ctx, call.Target.TabID, scripts.Custom(body), args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": raw}, nil
}
