package browser

import (
	"context"
	"errors"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// TypeTool puts text into an input, textarea or content-editable element.
type TypeTool struct {
	host browser.Host
}

func (t *TypeTool) Action() types.ActionType { return types.ActionTypeText }
func (t *TypeTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *TypeTool) Description() string {
	return "Type text into an input, textarea or content-editable element, firing input and change events and optionally Enter."
}

func (t *TypeTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":      tabIDProp,
		"selector":    prop("string", "CSS selector of the field"),
		"text":        prop("string", "Text to type"),
		"value":       prop("string", "Alias of text"),
		"clear_first": prop("boolean", "Replace the current content instead of appending. Default: true"),
		"press_enter": prop("boolean", "Send Enter after typing. Default: false"),
	}, []string{"selector"})
}

func (t *TypeTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	text := call.Params.String("text")
	if !call.Params.Has("text") {
		text = call.Params.String("value")
	}

	arg := map[string]any{
		"selector":    selector,
		"text":        text,
		"clear_first": call.Params.Bool("clear_first", true),
		"press_enter": call.Params.Bool("press_enter", false),
	}
	var msg string
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.TypeText, arg, &msg); err != nil {
		return nil, err
	}
	return Message{Message: msg}, nil
}

// FillFormTool fills several fields and optionally submits.
type FillFormTool struct {
	host browser.Host
}

// FillFormResult lists one line per field plus one for the submit step.
type FillFormResult struct {
	Results []string `json:"results"`
}

func (t *FillFormTool) Action() types.ActionType { return types.ActionFillForm }
func (t *FillFormTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *FillFormTool) Description() string {
	return "Fill several form fields at once, keyed by CSS selector, then optionally click a submit element. Missing fields are reported, not fatal."
}

func (t *FillFormTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":          tabIDProp,
		"fields":          map[string]any{"type": "object", "description": "Map of CSS selector to value"},
		"submit_selector": prop("string", "Element to click after filling"),
	}, []string{"fields"})
}

func (t *FillFormTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	var in struct {
		Fields         map[string]any `json:"fields"`
		SubmitSelector string         `json:"submit_selector"`
	}
	if err := call.Params.Decode(&in); err != nil {
		return nil, err
	}
	if len(in.Fields) == 0 {
		return nil, errors.New("missing required parameter: fields")
	}

	fields := make(map[string]string, len(in.Fields))
	for sel, v := range in.Fields {
		fields[sel] = types.Params{"v": v}.String("v")
	}

	res := FillFormResult{Results: []string{}}
	arg := map[string]any{"fields": fields, "submit_selector": in.SubmitSelector}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.FillForm, arg, &res.Results); err != nil {
		return nil, err
	}
	return res, nil
}

// SelectDropdownTool chooses an option of a select element.
type SelectDropdownTool struct {
	host browser.Host
}

// SelectResult is the result of SELECT_DROPDOWN.
type SelectResult struct {
	Message string `json:"message"`
	Value   string `json:"value"`
}

func (t *SelectDropdownTool) Action() types.ActionType { return types.ActionSelectDropdown }
func (t *SelectDropdownTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *SelectDropdownTool) Description() string {
	return "Choose an option of a select element by value, by visible text, or by index."
}

func (t *SelectDropdownTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":   tabIDProp,
		"selector": prop("string", "CSS selector of the select element"),
		"value":    prop("string", "Option value"),
		"text":     prop("string", "Text the option label contains"),
		"index":    prop("integer", "Option index"),
	}, []string{"selector"})
}

func (t *SelectDropdownTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}

	arg := map[string]any{"selector": selector}
	switch {
	case call.Params.Has("value"):
		arg["value"] = call.Params.String("value")
	case call.Params.Has("text"):
		arg["text"] = call.Params.String("text")
	case call.Params.Has("index"):
		i, ok := call.Params.Int("index")
		if !ok {
			return nil, errors.New("index must be a number")
		}
		arg["index"] = i
	default:
		return nil, errors.New("one of value, text or index is required")
	}

	var res SelectResult
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.SelectDropdown, arg, &res); err != nil {
		return nil, err
	}
	return res, nil
}
