// Package browser provides the browser-host surface that tool handlers run against:
// tab lifecycle, cookies, viewport capture and one-shot script execution inside a page.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/entrhq/tabwire/pkg/browser/scripts"
)

// WindowID is the id reported for the single browser window a host manages.
const WindowID = 1

// ErrTabNotFound matches every TabNotFoundError.
var ErrTabNotFound = errors.New("tab not found")

// ErrNoActiveTab is returned when no tab is open to act on.
var ErrNoActiveTab = errors.New("no active tab")

// TabNotFoundError reports a tab id that is not (or no longer) open.
type TabNotFoundError struct {
	ID int
}

func (e *TabNotFoundError) Error() string {
	return fmt.Sprintf("tab %d not found", e.ID)
}

// Is makes errors.Is(err, ErrTabNotFound) true.
func (e *TabNotFoundError) Is(target error) bool {
	return target == ErrTabNotFound
}

// ScriptError is an exception thrown by page code. Its message is reported verbatim.
type ScriptError struct {
	Script  string
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Tab describes one open tab.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"window_id"`
	Index    int    `json:"index"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Active   bool   `json:"active"`
}

// Cookie is a browser cookie. Expires is seconds since the epoch, 0 for a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	URL      string  `json:"url,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// CaptureOptions selects the image encoding of a viewport capture.
type CaptureOptions struct {
	Format  string // "png" (default) or "jpeg"
	Quality int    // jpeg only, 0-100
}

// Host is the browser surface tool handlers depend on.
//
// Every method may block on the browser; implementations honour ctx cancellation by
// abandoning the wait, even if the browser finishes the operation later.
type Host interface {
	// Tabs lists the open tabs in window order.
	Tabs(ctx context.Context) ([]Tab, error)
	// ActiveTab returns the focused tab.
	ActiveTab(ctx context.Context) (Tab, error)
	// Tab returns a tab by id, or a *TabNotFoundError.
	Tab(ctx context.Context, id int) (Tab, error)

	CreateTab(ctx context.Context, url string, active bool) (Tab, error)
	CloseTab(ctx context.Context, id int) error
	ActivateTab(ctx context.Context, id int) error
	DuplicateTab(ctx context.Context, id int) (Tab, error)

	// Navigate starts loading url and returns once the navigation is committed.
	Navigate(ctx context.Context, id int, url string) error
	// WaitForLoad blocks until the tab's load event or until ctx is done.
	WaitForLoad(ctx context.Context, id int) error
	// Reload restarts loading the tab and returns once committed.
	Reload(ctx context.Context, id int, bypassCache bool) error
	GoBack(ctx context.Context, id int) error
	GoForward(ctx context.Context, id int) error

	// Cookies returns the cookies visible to url, or every cookie when url is empty.
	Cookies(ctx context.Context, url string) ([]Cookie, error)
	SetCookie(ctx context.Context, c Cookie) error

	// CaptureVisible returns the visible viewport of a tab as a data URL.
	CaptureVisible(ctx context.Context, id int, opts CaptureOptions) (string, error)

	// Execute runs script once inside the tab's page with arg as its only argument.
	// arg and the result cross a JSON boundary. Exceptions thrown by the script
	// surface as *ScriptError.
	Execute(ctx context.Context, id int, script scripts.Script, arg any) (json.RawMessage, error)

	Close() error
}

// Eval runs script and decodes its JSON result into out.
func Eval(ctx context.Context, h Host, id int, script scripts.Script, arg any, out any) error {
	raw, err := h.Execute(ctx, id, script, arg)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unexpected result from %s: %w", script.Name, err)
	}
	return nil
}

// JSONArg round-trips v through encoding/json so only JSON-safe values reach a page.
func JSONArg(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("script argument is not JSON-serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
