package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLPolicy_Allows(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		denied  []string
		url     string
		want    bool
	}{
		{name: "empty lists allow all", url: "https://example.com", want: true},
		{name: "allowed match", allowed: []string{"https://*.example.com/*"}, url: "https://app.example.com/login", want: true},
		{name: "allowed miss", allowed: []string{"https://*.example.com/*"}, url: "https://evil.test/", want: false},
		{name: "denied wins", allowed: []string{"https://*"}, denied: []string{"https://admin.*"}, url: "https://admin.example.com", want: false},
		{name: "denied only", denied: []string{"file://*"}, url: "file:///etc/passwd", want: false},
		{name: "denied only other url", denied: []string{"file://*"}, url: "https://example.com", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewURLPolicy(tt.allowed, tt.denied)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Allows(tt.url))
		})
	}
}

func TestURLPolicy_InvalidPattern(t *testing.T) {
	_, err := NewURLPolicy([]string{"[unclosed"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid allowed url pattern")

	_, err = NewURLPolicy(nil, []string{"[unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid denied url pattern")
}

func TestURLPolicy_Check(t *testing.T) {
	var nilPolicy *URLPolicy
	assert.NoError(t, nilPolicy.Check("https://example.com"))

	p, err := NewURLPolicy([]string{"https://ok.test/*"}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Check("https://ok.test/page"))

	err = p.Check("https://other.test/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}
