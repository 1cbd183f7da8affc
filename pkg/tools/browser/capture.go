package browser

import (
	"context"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// ScreenshotTool captures the visible part of the target tab.
type ScreenshotTool struct {
	host browser.Host
}

func (t *ScreenshotTool) Action() types.ActionType { return types.ActionScreenshot }
func (t *ScreenshotTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *ScreenshotTool) Description() string {
	return "Capture the visible viewport of a tab as a data URL."
}

func (t *ScreenshotTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":  tabIDProp,
		"format":  prop("string", "'png' (default) or 'jpeg'"),
		"quality": prop("integer", "JPEG quality, 0-100"),
	}, nil)
}

func (t *ScreenshotTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	url, err := t.host.CaptureVisible(ctx, call.Target.TabID, browser.CaptureOptions{
		Format:  call.Params.String("format"),
		Quality: call.Params.IntOr("quality", 0),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"screenshot": url}, nil
}
