package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/browser/scripts"
)

// defaultWait bounds browser waits when ctx carries no deadline.
const defaultWait = 30 * time.Second

// LaunchOptions configures the browser started by LaunchPlaywright.
type LaunchOptions struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// SkipInstall skips downloading the driver and browsers before launch.
	SkipInstall bool
}

// PlaywrightHost implements Host on one Chromium window driven by Playwright.
// Pages of the browser context are its tabs; ids are assigned in creation order.
type PlaywrightHost struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *zap.Logger

	mu     sync.Mutex
	pages  map[int]playwright.Page
	ids    map[playwright.Page]int
	order  []int
	active int
	nextID int
	closed bool
}

var _ Host = (*PlaywrightHost)(nil)

// LaunchPlaywright installs (unless skipped) and starts Playwright, launches Chromium and
// opens one blank tab.
func LaunchPlaywright(opts LaunchOptions, logger *zap.Logger) (*PlaywrightHost, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "browser"))

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	width, height := opts.ViewportWidth, opts.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	h := &PlaywrightHost{
		pw:      pw,
		browser: b,
		context: bctx,
		logger:  logger,
		pages:   make(map[int]playwright.Page),
		ids:     make(map[playwright.Page]int),
		nextID:  1,
	}

	// Pages opened by the site itself (window.open, target=_blank) become tabs too.
	bctx.OnPage(func(p playwright.Page) {
		id := h.adopt(p)
		logger.Debug("page opened", zap.Int("tab_id", id))
	})

	page, err := bctx.NewPage()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	h.mu.Lock()
	h.active = h.adoptLocked(page)
	h.mu.Unlock()

	logger.Info("browser launched", zap.Bool("headless", opts.Headless), zap.Int("width", width), zap.Int("height", height))
	return h, nil
}

// adopt registers p as a tab if it is not known yet and returns its id.
func (h *PlaywrightHost) adopt(p playwright.Page) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adoptLocked(p)
}

func (h *PlaywrightHost) adoptLocked(p playwright.Page) int {
	if id, ok := h.ids[p]; ok {
		return id
	}
	id := h.nextID
	h.nextID++
	h.pages[id] = p
	h.ids[p] = id
	h.order = append(h.order, id)
	p.OnClose(func(playwright.Page) { h.forget(id) })
	return id
}

// forget drops a closed tab and moves focus to its right-most neighbour.
func (h *PlaywrightHost) forget(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pages[id]
	if !ok {
		return
	}
	delete(h.pages, id)
	delete(h.ids, p)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if h.active == id {
		h.active = 0
		if n := len(h.order); n > 0 {
			h.active = h.order[n-1]
		}
	}
}

func (h *PlaywrightHost) page(id int) (playwright.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("browser is closed")
	}
	p, ok := h.pages[id]
	if !ok {
		return nil, &TabNotFoundError{ID: id}
	}
	return p, nil
}

// call runs a blocking Playwright call and gives up when ctx is done.
// The call itself keeps running; its result is discarded.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func callErr(ctx context.Context, fn func() error) error {
	_, err := call(ctx, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// timeoutMillis converts the remaining ctx time into a Playwright timeout.
func timeoutMillis(ctx context.Context) *float64 {
	d := defaultWait
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (h *PlaywrightHost) describe(id, index int, p playwright.Page) Tab {
	title, _ := p.Title()
	return Tab{
		ID:       id,
		WindowID: WindowID,
		Index:    index,
		URL:      p.URL(),
		Title:    title,
		Active:   id == h.currentActive(),
	}
}

func (h *PlaywrightHost) currentActive() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Tabs lists the open tabs in window order.
func (h *PlaywrightHost) Tabs(ctx context.Context) ([]Tab, error) {
	h.mu.Lock()
	order := append([]int(nil), h.order...)
	pages := make([]playwright.Page, len(order))
	for i, id := range order {
		pages[i] = h.pages[id]
	}
	h.mu.Unlock()

	return call(ctx, func() ([]Tab, error) {
		tabs := make([]Tab, 0, len(order))
		for i, id := range order {
			tabs = append(tabs, h.describe(id, i, pages[i]))
		}
		return tabs, nil
	})
}

// ActiveTab returns the focused tab.
func (h *PlaywrightHost) ActiveTab(ctx context.Context) (Tab, error) {
	id := h.currentActive()
	if id == 0 {
		return Tab{}, ErrNoActiveTab
	}
	return h.Tab(ctx, id)
}

// Tab returns a tab by id.
func (h *PlaywrightHost) Tab(ctx context.Context, id int) (Tab, error) {
	p, err := h.page(id)
	if err != nil {
		return Tab{}, err
	}
	h.mu.Lock()
	index := -1
	for i, v := range h.order {
		if v == id {
			index = i
		}
	}
	h.mu.Unlock()
	return call(ctx, func() (Tab, error) { return h.describe(id, index, p), nil })
}

// CreateTab opens a new page, navigating it to url unless url is empty or about:blank.
func (h *PlaywrightHost) CreateTab(ctx context.Context, url string, active bool) (Tab, error) {
	p, err := call(ctx, h.context.NewPage)
	if err != nil {
		return Tab{}, fmt.Errorf("failed to open tab: %w", err)
	}
	id := h.adopt(p)

	if active {
		h.mu.Lock()
		h.active = id
		h.mu.Unlock()
		if err := callErr(ctx, p.BringToFront); err != nil {
			h.logger.Debug("bring to front failed", zap.Int("tab_id", id), zap.Error(err))
		}
	}

	if url != "" && url != "about:blank" {
		if err := h.Navigate(ctx, id, url); err != nil {
			return Tab{}, err
		}
	}
	return h.Tab(ctx, id)
}

// CloseTab closes a tab.
func (h *PlaywrightHost) CloseTab(ctx context.Context, id int) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	if err := callErr(ctx, func() error { return p.Close() }); err != nil {
		return fmt.Errorf("failed to close tab %d: %w", id, err)
	}
	h.forget(id)
	return nil
}

// ActivateTab focuses a tab.
func (h *PlaywrightHost) ActivateTab(ctx context.Context, id int) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	if err := callErr(ctx, p.BringToFront); err != nil {
		return fmt.Errorf("failed to activate tab %d: %w", id, err)
	}
	h.mu.Lock()
	h.active = id
	h.mu.Unlock()
	return nil
}

// DuplicateTab opens the tab's current URL in a new, active tab.
func (h *PlaywrightHost) DuplicateTab(ctx context.Context, id int) (Tab, error) {
	p, err := h.page(id)
	if err != nil {
		return Tab{}, err
	}
	return h.CreateTab(ctx, p.URL(), true)
}

// Navigate starts loading url and returns once the response is committed.
func (h *PlaywrightHost) Navigate(ctx context.Context, id int, url string) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	_, err = call(ctx, func() (playwright.Response, error) {
		return p.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateCommit,
			Timeout:   timeoutMillis(ctx),
		})
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitForLoad blocks until the load event fires or ctx is done.
func (h *PlaywrightHost) WaitForLoad(ctx context.Context, id int) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	err = callErr(ctx, func() error {
		return p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateLoad,
			Timeout: timeoutMillis(ctx),
		})
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return context.DeadlineExceeded
	}
	return err
}

// Reload reloads the tab. Playwright always revalidates, so bypassCache only adds a
// no-cache request header for the reload itself.
func (h *PlaywrightHost) Reload(ctx context.Context, id int, bypassCache bool) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	if bypassCache {
		if err := p.SetExtraHTTPHeaders(map[string]string{"Cache-Control": "no-cache"}); err == nil {
			defer func() { _ = p.SetExtraHTTPHeaders(map[string]string{}) }()
		}
	}
	_, err = call(ctx, func() (playwright.Response, error) {
		return p.Reload(playwright.PageReloadOptions{
			WaitUntil: playwright.WaitUntilStateCommit,
			Timeout:   timeoutMillis(ctx),
		})
	})
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

// GoBack navigates back in the tab's history.
func (h *PlaywrightHost) GoBack(ctx context.Context, id int) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	_, err = call(ctx, func() (playwright.Response, error) {
		return p.GoBack(playwright.PageGoBackOptions{
			WaitUntil: playwright.WaitUntilStateCommit,
			Timeout:   timeoutMillis(ctx),
		})
	})
	if err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	return nil
}

// GoForward navigates forward in the tab's history.
func (h *PlaywrightHost) GoForward(ctx context.Context, id int) error {
	p, err := h.page(id)
	if err != nil {
		return err
	}
	_, err = call(ctx, func() (playwright.Response, error) {
		return p.GoForward(playwright.PageGoForwardOptions{
			WaitUntil: playwright.WaitUntilStateCommit,
			Timeout:   timeoutMillis(ctx),
		})
	})
	if err != nil {
		return fmt.Errorf("go forward failed: %w", err)
	}
	return nil
}

// Cookies returns the cookies for url, or all cookies of the context.
func (h *PlaywrightHost) Cookies(ctx context.Context, url string) ([]Cookie, error) {
	raw, err := call(ctx, func() ([]playwright.Cookie, error) {
		if url == "" {
			return h.context.Cookies()
		}
		return h.context.Cookies(url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		expires := c.Expires
		if expires < 0 {
			expires = 0
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}
	return out, nil
}

// SetCookie writes a cookie. Without a domain or URL it is scoped to the active tab's URL.
func (h *PlaywrightHost) SetCookie(ctx context.Context, c Cookie) error {
	oc := playwright.OptionalCookie{
		Name:     c.Name,
		Value:    c.Value,
		HttpOnly: playwright.Bool(c.HTTPOnly),
		Secure:   playwright.Bool(c.Secure),
	}
	switch {
	case c.Domain != "":
		path := c.Path
		if path == "" {
			path = "/"
		}
		oc.Domain = playwright.String(c.Domain)
		oc.Path = playwright.String(path)
	case c.URL != "":
		oc.URL = playwright.String(c.URL)
	default:
		tab, err := h.ActiveTab(ctx)
		if err != nil {
			return fmt.Errorf("cookie needs a domain or url: %w", err)
		}
		oc.URL = playwright.String(tab.URL)
	}
	if c.Expires > 0 {
		oc.Expires = playwright.Float(c.Expires)
	}

	if err := callErr(ctx, func() error { return h.context.AddCookies([]playwright.OptionalCookie{oc}) }); err != nil {
		return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
	}
	return nil
}

// CaptureVisible screenshots the tab's viewport.
func (h *PlaywrightHost) CaptureVisible(ctx context.Context, id int, opts CaptureOptions) (string, error) {
	p, err := h.page(id)
	if err != nil {
		return "", err
	}

	mime := "image/png"
	shot := playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng, Timeout: timeoutMillis(ctx)}
	if opts.Format == "jpeg" || opts.Format == "jpg" {
		mime = "image/jpeg"
		shot.Type = playwright.ScreenshotTypeJpeg
		if opts.Quality > 0 && opts.Quality <= 100 {
			shot.Quality = playwright.Int(opts.Quality)
		}
	}

	img, err := call(ctx, func() ([]byte, error) { return p.Screenshot(shot) })
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img), nil
}

type evalResult struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

// Execute runs script in the tab's main frame.
func (h *PlaywrightHost) Execute(ctx context.Context, id int, script scripts.Script, arg any) (json.RawMessage, error) {
	p, err := h.page(id)
	if err != nil {
		return nil, err
	}
	jsonArg, err := JSONArg(arg)
	if err != nil {
		return nil, err
	}

	out, err := call(ctx, func() (any, error) { return p.Evaluate(scripts.Wrap(script), jsonArg) })
	if err != nil {
		return nil, fmt.Errorf("script %s failed: %w", script.Name, err)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("script %s returned a non-JSON value: %w", script.Name, err)
	}
	var res evalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("script %s returned an unexpected shape: %w", script.Name, err)
	}
	if !res.OK {
		return nil, &ScriptError{Script: script.Name, Message: res.Error}
	}
	if len(res.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return res.Value, nil
}

// Close shuts the browser and the Playwright driver down. Safe to call more than once.
func (h *PlaywrightHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	var errs []error
	if err := h.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}
