package browser

import (
	"fmt"
	"net/url"

	"github.com/gobwas/glob"
)

// URLPolicy decides which URLs a tab may be navigated to.
type URLPolicy struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// NewURLPolicy compiles the allowed and denied glob patterns.
func NewURLPolicy(allowed, denied []string) (*URLPolicy, error) {
	p := &URLPolicy{}

	for _, pattern := range allowed {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed url pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}

	for _, pattern := range denied {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied url pattern '%s': %w", pattern, err)
		}
		p.denied = append(p.denied, g)
	}

	return p, nil
}

// Allows reports whether rawURL may be opened. Denied patterns take precedence and an
// empty allow list allows everything else. A nil policy allows all.
func (p *URLPolicy) Allows(rawURL string) bool {
	if p == nil {
		return true
	}

	for _, g := range p.denied {
		if g.Match(rawURL) {
			return false
		}
	}

	if len(p.allowed) == 0 {
		return true
	}

	for _, g := range p.allowed {
		if g.Match(rawURL) {
			return true
		}
	}
	return false
}

// Check returns an error naming rawURL when it is malformed or not allowed.
func (p *URLPolicy) Check(rawURL string) error {
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if !p.Allows(rawURL) {
		return fmt.Errorf("navigation to %s is not allowed by url policy", rawURL)
	}
	return nil
}
