package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/browser"
)

// Message is the result of tools that only report what they did.
type Message struct {
	Message string `json:"message"`
}

func message(format string, args ...any) Message {
	return Message{Message: fmt.Sprintf(format, args...)}
}

// prop builds one JSON schema property.
func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

var tabIDProp = prop("integer", "Tab to act on. Defaults to the active tab")

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForLoad blocks until the tab's load event or the fallback elapses. Running
// into the fallback is not an error; only cancellation of ctx is.
func waitForLoad(ctx context.Context, host browser.Host, tabID int, fallback time.Duration, logger *zap.Logger) error {
	wctx, cancel := context.WithTimeout(ctx, fallback)
	defer cancel()

	err := host.WaitForLoad(wctx, tabID)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		logger.Debug("load wait fell back", zap.Int("tab_id", tabID), zap.Duration("after", fallback))
		return nil
	default:
		logger.Debug("load wait failed", zap.Int("tab_id", tabID), zap.Error(err))
		return nil
	}
}
