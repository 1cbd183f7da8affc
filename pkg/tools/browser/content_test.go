package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		limit     int
		wantTitle string
		wantDesc  string
		want      []string
		wantNot   []string
		truncated bool
	}{
		{
			name: "drops scripts and styles",
			input: `<html><head>
				<title>Test Page</title>
				<meta name="description" content="Test description">
				<script>alert('evil');</script>
				<style>body { color: red; }</style>
			</head><body>
				<h1 id="main-title">Hello World</h1>
				<p class="intro">This is a test.</p>
			</body></html>`,
			limit:     10000,
			wantTitle: "Test Page",
			wantDesc:  "Test description",
			want:      []string{`<h1 id="main-title">`, "Hello World", `<p class="intro">`},
			wantNot:   []string{"<script>", "alert", "<style>", "color: red"},
		},
		{
			name: "keeps targeting attributes",
			input: `<form action="/submit" method="post" onsubmit="x()">
				<label for="user-input">Name</label>
				<input type="text" name="username" id="user-input" placeholder="Enter name" data-test="username-field" style="color:red">
				<button type="submit" class="btn-primary">Submit</button>
			</form>`,
			limit: 10000,
			want: []string{
				`<form action="/submit" method="post">`,
				`<label for="user-input">`,
				`data-test="username-field"`,
				`name="username"`,
				`<button type="submit" class="btn-primary">`,
			},
			wantNot: []string{"onsubmit", "style="},
		},
		{
			name:    "void elements are not closed",
			input:   `<img src="a.png" alt="A"><br><input type="text" name="q"><hr>`,
			limit:   10000,
			want:    []string{`<img src="a.png" alt="A">`, "<br>", `<input type="text" name="q">`},
			wantNot: []string{"</img>", "</br>", "</input>", "</hr>"},
		},
		{
			name:    "noise elements removed",
			input:   `<div>Content</div><noscript>No JS</noscript><iframe src="ad.html"></iframe><svg><circle/></svg>`,
			limit:   10000,
			want:    []string{"<div>", "Content"},
			wantNot: []string{"No JS", "<iframe", "<svg"},
		},
		{
			name: "truncates",
			input: `<p>First paragraph with some content.</p>
				<p>Second paragraph with more content.</p>
				<p>Third paragraph that should be truncated.</p>`,
			limit:     60,
			want:      []string{"First paragraph", "..."},
			wantNot:   []string{"Third paragraph"},
			truncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanHTML(tt.input, tt.limit)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.Equal(t, tt.truncated, got.Truncated)
			for _, s := range tt.want {
				assert.Contains(t, got.HTML, s)
			}
			for _, s := range tt.wantNot {
				assert.NotContains(t, got.HTML, s)
			}
			assert.LessOrEqual(t, got.Length, tt.limit)
		})
	}
}
