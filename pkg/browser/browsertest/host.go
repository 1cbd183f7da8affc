// Package browsertest provides an in-memory browser.Host for tests.
//
// The fake keeps a tiny DOM per tab and answers every embedded script by name with the
// same result shape the real page function produces. Selectors are matched loosely:
// "#id", ".class", a bare tag name, or an element's explicit Selector.
package browsertest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
)

// Option is one <option> of a select element.
type Option struct {
	Value string
	Text  string
}

// Element is a node of the fake DOM.
type Element struct {
	Selector        string
	Tag             string
	ID              string
	Class           string
	Text            string
	Value           string
	Attrs           map[string]string
	Hidden          bool
	ContentEditable bool
	Options         []Option
	Children        []*Element

	// Events lists the DOM events dispatched on the element, in order.
	Events []string
}

func (e *Element) matches(sel string) bool {
	switch {
	case sel == "":
		return false
	case e.Selector == sel:
		return true
	case strings.HasPrefix(sel, "#"):
		return e.ID != "" && e.ID == sel[1:]
	case strings.HasPrefix(sel, "."):
		for _, c := range strings.Fields(e.Class) {
			if c == sel[1:] {
				return true
			}
		}
		return false
	default:
		return strings.EqualFold(e.Tag, sel)
	}
}

func (e *Element) editable() bool {
	switch strings.ToLower(e.Tag) {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func (e *Element) attributes() map[string]string {
	out := make(map[string]string, len(e.Attrs)+2)
	for k, v := range e.Attrs {
		out[k] = v
	}
	if e.ID != "" {
		out["id"] = e.ID
	}
	if e.Class != "" {
		out["class"] = e.Class
	}
	return out
}

func (e *Element) textContent() string {
	var b strings.Builder
	b.WriteString(e.Text)
	for _, c := range e.Children {
		b.WriteString(c.textContent())
	}
	return b.String()
}

func (e *Element) dispatch(events ...string) {
	e.Events = append(e.Events, events...)
}

// Page is the state of one fake tab.
type Page struct {
	ID       int
	URL      string
	Title    string
	Elements []*Element
	Storage  map[string]string
	ScrollX  int
	ScrollY  int
	Height   int
	Reloads  int

	history  []string
	pos      int
	loadedAt time.Time
}

// Query returns the first element matching sel, depth first.
func (p *Page) Query(sel string) *Element {
	all := p.QueryAll(sel)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// QueryAll returns every element matching sel in document order.
func (p *Page) QueryAll(sel string) []*Element {
	var out []*Element
	var walk func([]*Element)
	walk = func(els []*Element) {
		for _, e := range els {
			if e.matches(sel) {
				out = append(out, e)
			}
			walk(e.Children)
		}
	}
	walk(p.Elements)
	return out
}

func (p *Page) visit(u string) {
	if p.pos < len(p.history)-1 {
		p.history = p.history[:p.pos+1]
	}
	p.history = append(p.history, u)
	p.pos = len(p.history) - 1
	p.URL = u
}

// ScriptFunc answers one script call. arg is the decoded script argument; a non-object
// argument arrives under the key "args". It runs with the host locked and must not call
// back into the host.
type ScriptFunc func(p *Page, arg map[string]any) (any, error)

// Host is a fake browser.Host.
type Host struct {
	// LoadDelay is how long a navigation or reload takes to fire its load event.
	LoadDelay time.Duration

	mu      sync.Mutex
	pages   map[int]*Page
	order   []int
	active  int
	nextID  int
	cookies []browser.Cookie
	scripts map[string]ScriptFunc
	calls   []string
	closed  bool
}

var _ browser.Host = (*Host)(nil)

// New returns a host with one blank active tab.
func New() *Host {
	h := &Host{
		pages:   make(map[int]*Page),
		scripts: make(map[string]ScriptFunc),
		nextID:  1,
	}
	p := h.openLocked("about:blank")
	h.active = p.ID
	return h
}

func (h *Host) openLocked(u string) *Page {
	p := &Page{
		ID:      h.nextID,
		Storage: make(map[string]string),
		Height:  2000,
	}
	h.nextID++
	p.visit(u)
	h.pages[p.ID] = p
	h.order = append(h.order, p.ID)
	return p
}

// AddTab opens a tab showing url with the given DOM. It does not change focus.
func (h *Host) AddTab(u, title string, elements ...*Element) *Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.openLocked(u)
	p.Title = title
	p.Elements = elements
	return p
}

// Page returns the state of a tab, or nil.
func (h *Host) Page(id int) *Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pages[id]
}

// Active returns the focused tab's state, or nil.
func (h *Host) Active() *Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pages[h.active]
}

// Update runs fn on a tab with the host locked.
func (h *Host) Update(id int, fn func(p *Page)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.pages[id]; ok {
		fn(p)
	}
}

// HandleScript replaces the built-in answer for the named script.
func (h *Host) HandleScript(name string, fn ScriptFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts[name] = fn
}

// ScriptCalls returns the names of the scripts executed so far.
func (h *Host) ScriptCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// AllCookies returns every stored cookie.
func (h *Host) AllCookies() []browser.Cookie {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]browser.Cookie(nil), h.cookies...)
}

// AddCookies stores cookies as given.
func (h *Host) AddCookies(cs ...browser.Cookie) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cookies = append(h.cookies, cs...)
}

func (h *Host) page(id int) (*Page, error) {
	if h.closed {
		return nil, fmt.Errorf("browser is closed")
	}
	p, ok := h.pages[id]
	if !ok {
		return nil, &browser.TabNotFoundError{ID: id}
	}
	return p, nil
}

func (h *Host) tabLocked(p *Page) browser.Tab {
	index := -1
	for i, id := range h.order {
		if id == p.ID {
			index = i
		}
	}
	return browser.Tab{
		ID:       p.ID,
		WindowID: browser.WindowID,
		Index:    index,
		URL:      p.URL,
		Title:    p.Title,
		Active:   p.ID == h.active,
	}
}

func (h *Host) Tabs(ctx context.Context) ([]browser.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tabs := make([]browser.Tab, 0, len(h.order))
	for _, id := range h.order {
		tabs = append(tabs, h.tabLocked(h.pages[id]))
	}
	return tabs, nil
}

func (h *Host) ActiveTab(ctx context.Context) (browser.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pages[h.active]
	if !ok {
		return browser.Tab{}, browser.ErrNoActiveTab
	}
	return h.tabLocked(p), nil
}

func (h *Host) Tab(ctx context.Context, id int) (browser.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.page(id)
	if err != nil {
		return browser.Tab{}, err
	}
	return h.tabLocked(p), nil
}

func (h *Host) CreateTab(ctx context.Context, u string, active bool) (browser.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if u == "" {
		u = "about:blank"
	}
	p := h.openLocked(u)
	p.loadedAt = time.Now().Add(h.LoadDelay)
	if active {
		h.active = p.ID
	}
	return h.tabLocked(p), nil
}

func (h *Host) CloseTab(ctx context.Context, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.page(id); err != nil {
		return err
	}
	delete(h.pages, id)
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
	return nil
}

func (h *Host) ActivateTab(ctx context.Context, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.page(id); err != nil {
		return err
	}
	h.active = id
	return nil
}

func (h *Host) DuplicateTab(ctx context.Context, id int) (browser.Tab, error) {
	h.mu.Lock()
	p, err := h.page(id)
	h.mu.Unlock()
	if err != nil {
		return browser.Tab{}, err
	}
	return h.CreateTab(ctx, p.URL, true)
}

func (h *Host) Navigate(ctx context.Context, id int, u string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.page(id)
	if err != nil {
		return err
	}
	p.visit(u)
	p.loadedAt = time.Now().Add(h.LoadDelay)
	return nil
}

func (h *Host) WaitForLoad(ctx context.Context, id int) error {
	h.mu.Lock()
	p, err := h.page(id)
	var wait time.Duration
	if err == nil {
		wait = time.Until(p.loadedAt)
	}
	h.mu.Unlock()
	if err != nil {
		return err
	}
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) Reload(ctx context.Context, id int, bypassCache bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.page(id)
	if err != nil {
		return err
	}
	p.Reloads++
	p.loadedAt = time.Now().Add(h.LoadDelay)
	return nil
}

func (h *Host) GoBack(ctx context.Context, id int) error {
	return h.step(id, -1)
}

func (h *Host) GoForward(ctx context.Context, id int) error {
	return h.step(id, 1)
}

func (h *Host) step(id, delta int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.page(id)
	if err != nil {
		return err
	}
	next := p.pos + delta
	if next < 0 || next >= len(p.history) {
		return nil
	}
	p.pos = next
	p.URL = p.history[next]
	p.loadedAt = time.Now().Add(h.LoadDelay)
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (h *Host) Cookies(ctx context.Context, u string) ([]browser.Cookie, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if u == "" {
		return append([]browser.Cookie(nil), h.cookies...), nil
	}
	host := hostOf(u)
	var out []browser.Cookie
	for _, c := range h.cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if host == domain || strings.HasSuffix(host, "."+domain) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (h *Host) SetCookie(ctx context.Context, c browser.Cookie) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.Domain == "" {
		src := c.URL
		if src == "" {
			p, ok := h.pages[h.active]
			if !ok {
				return browser.ErrNoActiveTab
			}
			src = p.URL
		}
		c.Domain = hostOf(src)
	}
	if c.Path == "" {
		c.Path = "/"
	}
	c.URL = ""
	for i, existing := range h.cookies {
		if existing.Name == c.Name && existing.Domain == c.Domain && existing.Path == c.Path {
			h.cookies[i] = c
			return nil
		}
	}
	h.cookies = append(h.cookies, c)
	return nil
}

func (h *Host) CaptureVisible(ctx context.Context, id int, opts browser.CaptureOptions) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.page(id); err != nil {
		return "", err
	}
	mime := "image/png"
	if opts.Format == "jpeg" || opts.Format == "jpg" {
		mime = "image/jpeg"
	}
	img := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("tab-%d", id)))
	return "data:" + mime + ";base64," + img, nil
}

func (h *Host) Execute(ctx context.Context, id int, script scripts.Script, arg any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jsonArg, err := browser.JSONArg(arg)
	if err != nil {
		return nil, err
	}
	args, ok := jsonArg.(map[string]any)
	if !ok {
		args = map[string]any{"args": jsonArg}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	p, err := h.page(id)
	if err != nil {
		return nil, err
	}
	h.calls = append(h.calls, script.Name)

	fn, ok := h.scripts[script.Name]
	if !ok {
		fn, ok = builtins[script.Name]
	}
	if !ok {
		return nil, &browser.ScriptError{Script: script.Name, Message: "script not supported: " + script.Name}
	}

	value, err := fn(p, args)
	if err != nil {
		return nil, &browser.ScriptError{Script: script.Name, Message: err.Error()}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

var builtins = map[string]ScriptFunc{
	scripts.NamePageInfo:          pageInfo,
	scripts.NameExtractDOM:        extractDOM,
	scripts.NameClick:             click,
	scripts.NameTypeText:          typeText,
	scripts.NameFillForm:          fillForm,
	scripts.NameSelectDropdown:    selectDropdown,
	scripts.NameElementState:      elementState,
	scripts.NameScroll:            scroll,
	scripts.NameElementText:       elementText,
	scripts.NameElementAttributes: elementAttributes,
	scripts.NameLocalStorageGet:   localStorageGet,
	scripts.NameLocalStorageSet:   localStorageSet,
	scripts.NameHover:             hover,
	scripts.NameFindElements:      findElements,
	scripts.NamePageHTML:          pageHTML,
}

func str(arg map[string]any, key string) string {
	switch v := arg[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(arg map[string]any, key string) (int, bool) {
	f, ok := arg[key].(float64)
	return int(f), ok
}

func notFound(sel string) error {
	return fmt.Errorf("Element not found: %s", sel)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

func pageInfo(p *Page, arg map[string]any) (any, error) {
	info := map[string]any{
		"url":        p.URL,
		"title":      p.Title,
		"hasVideo":   p.Query("video") != nil,
		"hasAudio":   p.Query("audio") != nil,
		"hasForm":    p.Query("form") != nil,
		"imageCount": len(p.QueryAll("img")),
		"linkCount":  len(p.QueryAll("a")),
	}
	if on, _ := arg["extract_interactive"].(bool); on {
		var interactive []map[string]any
		var walk func([]*Element)
		walk = func(els []*Element) {
			for _, e := range els {
				switch strings.ToLower(e.Tag) {
				case "button", "a", "input", "textarea", "select":
					if len(interactive) < 50 {
						interactive = append(interactive, map[string]any{
							"tag":   strings.ToLower(e.Tag),
							"id":    e.ID,
							"class": e.Class,
							"text":  truncate(e.textContent(), 100),
						})
					}
				}
				walk(e.Children)
			}
		}
		walk(p.Elements)
		info["interactive"] = interactive
	}
	return info, nil
}

func extractDOM(p *Page, arg map[string]any) (any, error) {
	depth, _ := num(arg, "depth")
	sel := str(arg, "selector")

	var walk func(e *Element, level int) map[string]any
	walk = func(e *Element, level int) map[string]any {
		children := []any{}
		if level < depth {
			for _, c := range e.Children {
				children = append(children, walk(c, level+1))
			}
		}
		var id, class any
		if e.ID != "" {
			id = e.ID
		}
		if e.Class != "" {
			class = e.Class
		}
		return map[string]any{
			"tag":        strings.ToLower(e.Tag),
			"id":         id,
			"class":      class,
			"attributes": e.attributes(),
			"text":       truncate(e.textContent(), 200),
			"children":   children,
		}
	}

	root := &Element{Tag: "body", Children: p.Elements}
	if sel != "" {
		root = p.Query(sel)
		if root == nil {
			return nil, notFound(sel)
		}
	}
	return walk(root, 0), nil
}

func click(p *Page, arg map[string]any) (any, error) {
	sel := str(arg, "selector")
	el := p.Query(sel)
	if el == nil {
		return nil, notFound(sel)
	}
	el.dispatch("click")
	return "Clicked: " + sel, nil
}

func typeText(p *Page, arg map[string]any) (any, error) {
	sel := str(arg, "selector")
	text := str(arg, "text")
	clear, _ := arg["clear_first"].(bool)
	el := p.Query(sel)
	if el == nil {
		return nil, notFound(sel)
	}

	switch {
	case el.ContentEditable:
		if clear {
			el.Text = text
		} else {
			el.Text += text
		}
	case el.editable():
		if clear {
			el.Value = text
		} else {
			el.Value += text
		}
	default:
		return nil, fmt.Errorf("Element is not editable: %s", sel)
	}
	el.dispatch("focus", "input", "change")
	if enter, _ := arg["press_enter"].(bool); enter {
		el.dispatch("keydown", "keypress", "keyup")
	}
	return "Typed text into: " + sel, nil
}

func fillForm(p *Page, arg map[string]any) (any, error) {
	fields, _ := arg["fields"].(map[string]any)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := []string{}
	for _, sel := range keys {
		el := p.Query(sel)
		if el == nil {
			results = append(results, "Not found: "+sel)
			continue
		}
		value := fmt.Sprint(fields[sel])
		if el.ContentEditable {
			el.Text = value
		} else {
			el.Value = value
		}
		el.dispatch("input", "change")
		results = append(results, "Filled "+sel)
	}

	if submit := str(arg, "submit_selector"); submit != "" {
		if el := p.Query(submit); el != nil {
			el.dispatch("click")
			results = append(results, "Submitted form via "+submit)
		} else {
			results = append(results, "Not found: "+submit)
		}
	}
	return results, nil
}

func selectDropdown(p *Page, arg map[string]any) (any, error) {
	sel := str(arg, "selector")
	el := p.Query(sel)
	if el == nil {
		return nil, notFound(sel)
	}
	if !strings.EqualFold(el.Tag, "select") {
		return nil, fmt.Errorf("Element is not a select: %s", sel)
	}

	switch {
	case arg["value"] != nil:
		el.Value = str(arg, "value")
	case arg["text"] != nil:
		text := str(arg, "text")
		found := false
		for _, o := range el.Options {
			if strings.Contains(o.Text, text) {
				el.Value = o.Value
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("Option not found: %s", text)
		}
	case arg["index"] != nil:
		i, _ := num(arg, "index")
		if i < 0 || i >= len(el.Options) {
			return nil, fmt.Errorf("Option index out of range: %d", i)
		}
		el.Value = el.Options[i].Value
	}
	el.dispatch("input", "change")
	return map[string]any{"message": "Selected option in: " + sel, "value": el.Value}, nil
}

func elementState(p *Page, arg map[string]any) (any, error) {
	el := p.Query(str(arg, "selector"))
	if el == nil {
		return map[string]any{"exists": false, "visible": false}, nil
	}
	return map[string]any{"exists": true, "visible": !el.Hidden}, nil
}

func scroll(p *Page, arg map[string]any) (any, error) {
	if target := str(arg, "to_element"); target != "" {
		if p.Query(target) == nil {
			return nil, notFound(target)
		}
		return map[string]any{"message": "Scrolled to element: " + target, "scrollY": p.ScrollY}, nil
	}

	amount, _ := num(arg, "amount")
	dir := str(arg, "direction")
	switch dir {
	case "up":
		p.ScrollY = max(0, p.ScrollY-amount)
	case "top":
		p.ScrollY = 0
	case "bottom":
		p.ScrollY = p.Height
	case "left":
		p.ScrollX = max(0, p.ScrollX-amount)
	case "right":
		p.ScrollX += amount
	default:
		p.ScrollY = min(p.Height, p.ScrollY+amount)
	}
	if dir == "" {
		dir = "down"
	}
	return map[string]any{"message": "Scrolled " + dir, "scrollY": p.ScrollY}, nil
}

func elementText(p *Page, arg map[string]any) (any, error) {
	sel := str(arg, "selector")
	el := p.Query(sel)
	if el == nil {
		return nil, notFound(sel)
	}
	if attr := str(arg, "attribute"); attr != "" {
		v, ok := el.attributes()[attr]
		if !ok {
			return nil, nil
		}
		return v, nil
	}
	return strings.TrimSpace(el.textContent()), nil
}

func elementAttributes(p *Page, arg map[string]any) (any, error) {
	sel := str(arg, "selector")
	el := p.Query(sel)
	if el == nil {
		return nil, notFound(sel)
	}
	return el.attributes(), nil
}

func localStorageGet(p *Page, arg map[string]any) (any, error) {
	if key := str(arg, "key"); key != "" {
		v, ok := p.Storage[key]
		if !ok {
			return nil, nil
		}
		return v, nil
	}
	out := make(map[string]string, len(p.Storage))
	for k, v := range p.Storage {
		out[k] = v
	}
	return out, nil
}

func localStorageSet(p *Page, arg map[string]any) (any, error) {
	key := str(arg, "key")
	p.Storage[key] = str(arg, "value")
	return "Set " + key + " in localStorage", nil
}

func hover(p *Page, arg map[string]any) (any, error) {
	sel := str(arg, "selector")
	el := p.Query(sel)
	if el == nil {
		return nil, notFound(sel)
	}
	el.dispatch("mouseenter", "mouseover")
	return "Hovered over: " + sel, nil
}

func findElements(p *Page, arg map[string]any) (any, error) {
	limit, ok := num(arg, "limit")
	if !ok {
		limit = 50
	}
	visibleOnly, _ := arg["filter_visible"].(bool)

	found := []map[string]any{}
	total := 0
	for i, e := range p.QueryAll(str(arg, "selector")) {
		if visibleOnly && e.Hidden {
			continue
		}
		total++
		if len(found) >= limit {
			continue
		}
		found = append(found, map[string]any{
			"index": i,
			"tag":   strings.ToLower(e.Tag),
			"id":    e.ID,
			"class": e.Class,
			"text":  truncate(e.textContent(), 100),
		})
	}
	return map[string]any{"elements": found, "total": total}, nil
}

func pageHTML(p *Page, arg map[string]any) (any, error) {
	var b strings.Builder
	if sel := str(arg, "selector"); sel != "" {
		el := p.Query(sel)
		if el == nil {
			return nil, notFound(sel)
		}
		render(&b, el)
	} else {
		b.WriteString("<html><head><title>")
		b.WriteString(html.EscapeString(p.Title))
		b.WriteString("</title></head><body>")
		for _, e := range p.Elements {
			render(&b, e)
		}
		b.WriteString("</body></html>")
	}
	return map[string]any{"url": p.URL, "title": p.Title, "html": b.String()}, nil
}

func render(b *strings.Builder, e *Element) {
	tag := strings.ToLower(e.Tag)
	b.WriteString("<" + tag)
	attrs := e.attributes()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, ` %s="%s"`, k, html.EscapeString(attrs[k]))
	}
	b.WriteString(">")
	b.WriteString(html.EscapeString(e.Text))
	for _, c := range e.Children {
		render(b, c)
	}
	b.WriteString("</" + tag + ">")
}
