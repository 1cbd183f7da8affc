package slash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCommand *Command
		wantOK      bool
	}{
		{
			name:        "command without argument",
			input:       "/agent-stop",
			wantCommand: &Command{Name: "agent-stop"},
			wantOK:      true,
		},
		{
			name:        "command with argument",
			input:       "/agent-run find cheap flights",
			wantCommand: &Command{Name: "agent-run", Arg: "find cheap flights"},
			wantOK:      true,
		},
		{
			name:        "with surrounding whitespace",
			input:       "  /channel-status  ",
			wantCommand: &Command{Name: "channel-status"},
			wantOK:      true,
		},
		{
			name:        "with multiple spaces in argument",
			input:       `/tool-navigate {"url":  "https://example.com"}`,
			wantCommand: &Command{Name: "tool-navigate", Arg: `{"url":  "https://example.com"}`},
			wantOK:      true,
		},
		{
			name:        "just slash",
			input:       "/",
			wantCommand: &Command{},
			wantOK:      true,
		},
		{
			name:   "not a slash command",
			input:  "regular message",
			wantOK: false,
		},
		{
			name:   "empty string",
			input:  "",
			wantOK: false,
		},
		{
			name:   "slash in middle",
			input:  "not /agent-run",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := Parse(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantOK, ShouldIntercept(tt.input))
			if tt.wantOK {
				require.NotNil(t, cmd)
				assert.Equal(t, *tt.wantCommand, *cmd)
			} else {
				assert.Nil(t, cmd)
			}
		})
	}
}

var testCatalog = Catalog{
	"agent":    {Actions: map[string]string{"run": "", "stop": "", "stats": "", "script": ""}},
	"channel":  {Actions: map[string]string{"connect": "", "disconnect": "", "status": ""}},
	"calendar": {Actions: map[string]string{"create": ""}},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Resolution
	}{
		{
			name:  "bare slash lists agents",
			input: "/",
			want:  Resolution{Stage: StageAgentSelect, Agents: []string{"agent", "calendar", "channel"}},
		},
		{
			name:  "agent prefix",
			input: "/c",
			want:  Resolution{Stage: StageAgentPartial, Query: "c", Agents: []string{"calendar", "channel"}},
		},
		{
			name:  "prefix with no match",
			input: "/zzz",
			want:  Resolution{Stage: StageAgentPartial, Query: "zzz"},
		},
		{
			name:  "full agent lists actions",
			input: "/channel",
			want:  Resolution{Stage: StageActionSelect, Agent: "channel", Actions: []string{"connect", "disconnect", "status"}},
		},
		{
			name:  "agent with trailing dash lists actions",
			input: "/calendar-",
			want:  Resolution{Stage: StageActionSelect, Agent: "calendar", Actions: []string{"create"}},
		},
		{
			name:  "unknown agent",
			input: "/mail-send hi",
			want:  Resolution{Stage: StageUnknownAgent, Agent: "mail", Agents: []string{"agent", "calendar", "channel"}, Arg: "hi"},
		},
		{
			name:  "action prefix",
			input: "/agent-st",
			want:  Resolution{Stage: StageActionPartial, Agent: "agent", Query: "st", Actions: []string{"stats", "stop"}},
		},
		{
			name:  "complete with argument",
			input: "/Agent-Run book a table for two",
			want:  Resolution{Stage: StageComplete, Agent: "agent", Action: "run", Arg: "book a table for two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.input, testCatalog)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIgnoresPlainText(t *testing.T) {
	_, ok := Resolve("hello", testCatalog)
	assert.False(t, ok)
}
