package browser

import (
	"context"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// GetPageInfoTool summarizes the target page.
type GetPageInfoTool struct {
	host browser.Host
}

func (t *GetPageInfoTool) Action() types.ActionType { return types.ActionGetPageInfo }
func (t *GetPageInfoTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *GetPageInfoTool) Description() string {
	return "Summarize a page: URL, title, media and form presence, link and image counts, and optionally its first 50 interactive elements."
}

func (t *GetPageInfoTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":              tabIDProp,
		"extract_interactive": prop("boolean", "Include buttons, links and inputs. Default: false"),
	}, nil)
}

func (t *GetPageInfoTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	arg := map[string]any{"extract_interactive": call.Params.Bool("extract_interactive", false)}
	return t.host.Execute(ctx, call.Target.TabID, scripts.PageInfo, arg)
}

// ExtractDOMTool dumps the DOM below a selector.
type ExtractDOMTool struct {
	host browser.Host
}

func (t *ExtractDOMTool) Action() types.ActionType { return types.ActionExtractDOM }
func (t *ExtractDOMTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *ExtractDOMTool) Description() string {
	return "Return the element tree below a selector (default: body) with tags, attributes and text, down to a depth."
}

func (t *ExtractDOMTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":   tabIDProp,
		"selector": prop("string", "Root element. Default: body"),
		"depth":    prop("integer", "Levels of children to include. Default: 3, max: 10"),
	}, nil)
}

func (t *ExtractDOMTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	depth := call.Params.IntOr("depth", DefaultDOMDepth)
	if depth < 0 {
		depth = 0
	}
	if depth > MaxDOMDepth {
		depth = MaxDOMDepth
	}
	arg := map[string]any{"selector": call.Params.String("selector"), "depth": depth}
	return t.host.Execute(ctx, call.Target.TabID, scripts.ExtractDOM, arg)
}

// FindElementsTool lists the elements matching a selector.
type FindElementsTool struct {
	host browser.Host
}

// FoundElement is one match of FIND_ELEMENTS.
type FoundElement struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	ID    string `json:"id"`
	Class string `json:"class"`
	Text  string `json:"text"`
}

// FindElementsResult is the result of FIND_ELEMENTS. Total counts every match,
// including those cut off by the limit.
type FindElementsResult struct {
	Elements []FoundElement `json:"elements"`
	Total    int            `json:"total"`
}

func (t *FindElementsTool) Action() types.ActionType { return types.ActionFindElements }
func (t *FindElementsTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *FindElementsTool) Description() string {
	return "Find the elements matching a CSS selector, optionally only visible ones. Returns at most limit matches (default 50)."
}

func (t *FindElementsTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":         tabIDProp,
		"selector":       prop("string", "CSS selector"),
		"filter_visible": prop("boolean", "Skip hidden elements. Default: false"),
		"limit":          prop("integer", "Maximum matches to return. Default: 50"),
	}, []string{"selector"})
}

func (t *FindElementsTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	limit := call.Params.IntOr("limit", DefaultFindLimit)
	if limit <= 0 || limit > DefaultFindLimit {
		limit = DefaultFindLimit
	}

	var res FindElementsResult
	arg := map[string]any{
		"selector":       selector,
		"filter_visible": call.Params.Bool("filter_visible", false),
		"limit":          limit,
	}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.FindElements, arg, &res); err != nil {
		return nil, err
	}
	if res.Elements == nil {
		res.Elements = []FoundElement{}
	}
	return res, nil
}

// GetElementTextTool reads an element's text or one of its attributes.
type GetElementTextTool struct {
	host browser.Host
}

func (t *GetElementTextTool) Action() types.ActionType { return types.ActionGetElementText }
func (t *GetElementTextTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *GetElementTextTool) Description() string {
	return "Read the trimmed text of an element, or the value of one attribute."
}

func (t *GetElementTextTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":    tabIDProp,
		"selector":  prop("string", "CSS selector"),
		"attribute": prop("string", "Attribute to read instead of the text"),
	}, []string{"selector"})
}

func (t *GetElementTextTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	var text *string
	arg := map[string]any{"selector": selector, "attribute": call.Params.String("attribute")}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.ElementText, arg, &text); err != nil {
		return nil, err
	}
	return map[string]any{"text": text}, nil
}

// GetElementAttributesTool reads every attribute of an element.
type GetElementAttributesTool struct {
	host browser.Host
}

func (t *GetElementAttributesTool) Action() types.ActionType { return types.ActionGetElementAttrs }
func (t *GetElementAttributesTool) Scope() tools.Scope        { return tools.ScopeTab }
func (t *GetElementAttributesTool) Description() string      { return "Read every attribute of an element." }

func (t *GetElementAttributesTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":   tabIDProp,
		"selector": prop("string", "CSS selector"),
	}, []string{"selector"})
}

func (t *GetElementAttributesTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	selector, err := tools.RequireString(call.Params, "selector")
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.ElementAttributes, map[string]any{"selector": selector}, &attrs); err != nil {
		return nil, err
	}
	return map[string]any{"attributes": attrs}, nil
}
