package browser

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/scripts"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// PageContent is the cleaned markup of a page or of one element.
type PageContent struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	HTML        string `json:"html"`
	Length      int    `json:"length"`
	Truncated   bool   `json:"truncated"`
}

// GetPageContentTool returns the page's markup with scripts, styles and noise removed.
type GetPageContentTool struct {
	host browser.Host
}

func (t *GetPageContentTool) Action() types.ActionType { return types.ActionGetPageContent }
func (t *GetPageContentTool) Scope() tools.Scope        { return tools.ScopeTab }

func (t *GetPageContentTool) Description() string {
	return "Return the page's HTML (or one element's) with scripts, styles and noise removed, keeping the attributes useful for targeting."
}

func (t *GetPageContentTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"tab_id":     tabIDProp,
		"selector":   prop("string", "Only this element. Default: whole document"),
		"max_length": prop("integer", "Maximum content length in characters. Default: 10000, max: 100000"),
	}, nil)
}

func (t *GetPageContentTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	maxLength := call.Params.IntOr("max_length", DefaultContentLength)
	if maxLength < 100 || maxLength > MaxContentLength {
		return nil, fmt.Errorf("max_length must be between 100 and %d", MaxContentLength)
	}

	var page struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		HTML  string `json:"html"`
	}
	arg := map[string]any{"selector": call.Params.String("selector")}
	if err := browser.Eval(ctx, t.host, call.Target.TabID, scripts.PageHTML, arg, &page); err != nil {
		return nil, err
	}

	content, err := cleanHTML(page.HTML, maxLength)
	if err != nil {
		return nil, err
	}
	content.URL = page.URL
	if content.Title == "" {
		content.Title = page.Title
	}
	return content, nil
}

var (
	skippedTags = set("script", "style", "noscript", "iframe", "embed", "object", "svg", "template")

	blockTags = set(
		"div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "td", "th", "form", "fieldset", "blockquote", "pre",
	)

	voidTags = set(
		"area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "param", "source", "track", "wbr",
	)

	globalAttrs = set("id", "class", "role", "name", "aria-label", "aria-describedby")

	tagAttrs = map[string]map[string]bool{
		"a":        set("href", "target"),
		"img":      set("src", "alt"),
		"input":    set("type", "placeholder", "value"),
		"textarea": set("placeholder"),
		"select":   set("multiple"),
		"option":   set("value", "selected"),
		"button":   set("type"),
		"form":     set("action", "method"),
		"label":    set("for"),
		"table":    set("summary"),
	}
)

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// cleaner writes a reduced copy of a document, stopping once limit characters of
// output have been produced.
type cleaner struct {
	out       strings.Builder
	written   int
	limit     int
	truncated bool
}

// cleanHTML parses raw and keeps its semantic structure plus the attributes useful for
// targeting elements.
func cleanHTML(raw string, limit int) (*PageContent, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	c := &cleaner{limit: limit}
	c.children(doc, 0)

	return &PageContent{
		Title:       findTitle(doc),
		Description: findMetaDescription(doc),
		HTML:        c.out.String(),
		Length:      min(c.written, limit),
		Truncated:   c.truncated,
	}, nil
}

func (c *cleaner) full() bool {
	if c.written >= c.limit {
		c.truncated = true
	}
	return c.truncated
}

func (c *cleaner) node(n *html.Node, depth int) {
	if c.full() {
		return
	}
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
	case html.TextNode:
		c.text(n.Data)
	case html.ElementNode:
		if !skippedTags[strings.ToLower(n.Data)] {
			c.element(n, depth)
		}
	default:
		c.children(n, depth)
	}
}

func (c *cleaner) children(n *html.Node, depth int) {
	for child := n.FirstChild; child != nil && !c.full(); child = child.NextSibling {
		c.node(child, depth)
	}
}

func (c *cleaner) text(data string) {
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		return
	}
	if room := c.limit - c.written; len(text) > room {
		c.out.WriteString(text[:room])
		c.out.WriteString("...")
		c.written = c.limit
		c.truncated = true
		return
	}
	c.out.WriteString(text)
	c.written += len(text)
}

func (c *cleaner) element(n *html.Node, depth int) {
	tag := strings.ToLower(n.Data)
	block := blockTags[tag]

	if block && depth > 0 {
		c.out.WriteString("\n" + strings.Repeat("  ", depth))
	}
	c.out.WriteString("<" + tag)
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if globalAttrs[key] || strings.HasPrefix(key, "data-") || tagAttrs[tag][key] {
			fmt.Fprintf(&c.out, ` %s="%s"`, key, html.EscapeString(a.Val))
		}
	}
	c.out.WriteString(">")
	c.written += len(tag) + 2

	if voidTags[tag] {
		return
	}

	c.children(n, depth+1)

	if block {
		c.out.WriteString("\n" + strings.Repeat("  ", depth))
	}
	c.out.WriteString("</" + tag + ">")
	c.written += len(tag) + 3
}

// findTitle returns the text of the first <title>.
func findTitle(doc *html.Node) string {
	n := findFirst(doc, func(n *html.Node) bool { return n.Data == "title" })
	if n == nil || n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

// findMetaDescription returns the content of <meta name="description">.
func findMetaDescription(doc *html.Node) string {
	n := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "name") == "description" && attr(n, "content") != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
