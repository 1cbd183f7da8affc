package browser

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

const (
	maxAuthCookies     = 10
	maxFallbackCookies = 5
	maxCookieValue     = 100
)

// authCookieKeywords select the cookies GET_COOKIES reports. Everything else is
// withheld unless nothing matches.
var authCookieKeywords = []string{
	"session", "auth", "token", "user", "login",
	"ssid", "sid", "hsid", "account", "credentials",
}

// CookieSummary is one cookie as reported by GET_COOKIES.
type CookieSummary struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// CookiesResult is the result of GET_COOKIES.
type CookiesResult struct {
	Cookies         []CookieSummary `json:"cookies"`
	TotalCookies    int             `json:"total_cookies"`
	ReturnedCookies int             `json:"returned_cookies"`
	Filtered        bool            `json:"filtered"`
}

// FilterCookies keeps at most 10 authentication-looking cookies, or the first 5 when
// none look like authentication, and truncates long values.
func FilterCookies(all []browser.Cookie) CookiesResult {
	var auth []browser.Cookie
	for _, c := range all {
		name := strings.ToLower(c.Name)
		for _, kw := range authCookieKeywords {
			if strings.Contains(name, kw) {
				auth = append(auth, c)
				break
			}
		}
	}

	picked := auth
	limit := maxAuthCookies
	if len(auth) == 0 {
		picked = all
		limit = maxFallbackCookies
	}
	if len(picked) > limit {
		picked = picked[:limit]
	}

	out := make([]CookieSummary, 0, len(picked))
	for _, c := range picked {
		out = append(out, CookieSummary{Name: c.Name, Value: truncateValue(c.Value), Domain: c.Domain})
	}

	return CookiesResult{
		Cookies:         out,
		TotalCookies:    len(all),
		ReturnedCookies: len(out),
		Filtered:        len(auth) > 0,
	}
}

// truncateValue cuts v after maxCookieValue runes, never inside a multi-byte rune.
func truncateValue(v string) string {
	offset := 0
	for n := 0; n < maxCookieValue; n++ {
		if offset >= len(v) {
			return v
		}
		_, size := utf8.DecodeRuneInString(v[offset:])
		offset += size
	}
	if offset >= len(v) {
		return v
	}
	return v[:offset] + "..."
}

// GetCookiesTool reads cookies, filtered down to what looks like authentication state.
type GetCookiesTool struct {
	host browser.Host
}

func (t *GetCookiesTool) Action() types.ActionType { return types.ActionGetCookies }
func (t *GetCookiesTool) Scope() tools.Scope        { return tools.ScopeBrowser }

func (t *GetCookiesTool) Description() string {
	return "Read session and authentication cookies, optionally for one URL. At most 10 are returned and values are truncated."
}

func (t *GetCookiesTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"url": prop("string", "Only cookies sent to this URL. Default: all cookies"),
	}, nil)
}

func (t *GetCookiesTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	all, err := t.host.Cookies(ctx, call.Params.String("url"))
	if err != nil {
		return nil, err
	}
	return FilterCookies(all), nil
}

// SetCookieTool writes one cookie.
type SetCookieTool struct {
	host browser.Host
}

func (t *SetCookieTool) Action() types.ActionType { return types.ActionSetCookie }
func (t *SetCookieTool) Scope() tools.Scope        { return tools.ScopeBrowser }
func (t *SetCookieTool) Description() string      { return "Set a cookie." }

func (t *SetCookieTool) Schema() map[string]any {
	return tools.BaseToolSchema(map[string]any{
		"name":    prop("string", "Cookie name"),
		"value":   prop("string", "Cookie value"),
		"domain":  prop("string", "Cookie domain. Defaults to the active tab's host"),
		"path":    prop("string", "Cookie path. Default: /"),
		"expires": prop("number", "Expiry in seconds since the epoch. Default: session cookie"),
	}, []string{"name", "value"})
}

func (t *SetCookieTool) Execute(ctx context.Context, call tools.Call) (any, error) {
	name, err := tools.RequireString(call.Params, "name")
	if err != nil {
		return nil, err
	}

	path := call.Params.String("path")
	if path == "" {
		path = "/"
	}
	c := browser.Cookie{
		Name:   name,
		Value:  call.Params.String("value"),
		Domain: call.Params.String("domain"),
		Path:   path,
	}
	if expires, ok := call.Params.Int("expires"); ok {
		c.Expires = float64(expires)
	}

	if err := t.host.SetCookie(ctx, c); err != nil {
		return nil, err
	}
	return message("Cookie %s set", name), nil
}
