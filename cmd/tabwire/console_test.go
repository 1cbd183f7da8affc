package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/browsertest"
	"github.com/entrhq/tabwire/pkg/channel"
	"github.com/entrhq/tabwire/pkg/dispatch"
	"github.com/entrhq/tabwire/pkg/tools"
	browsertools "github.com/entrhq/tabwire/pkg/tools/browser"
	"github.com/entrhq/tabwire/pkg/types"
)

type fakeClient struct {
	mu          sync.Mutex
	calls       []string
	goals       []string
	script      types.ScriptRequest
	scriptReply json.RawMessage
	runErr      error
	autoConnect bool
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeClient) Connect(context.Context) error { f.record("connect"); return nil }
func (f *fakeClient) Disconnect()                   { f.record("disconnect") }

func (f *fakeClient) Status() channel.Status {
	return channel.Status{State: channel.StateReconnecting, Attempts: 2, LastError: "dial refused"}
}

func (f *fakeClient) EnableAutoConnect(context.Context) error {
	f.record("autoconnect-on")
	f.autoConnect = true
	return nil
}

func (f *fakeClient) DisableAutoConnect() error {
	f.record("autoconnect-off")
	f.autoConnect = false
	return nil
}

func (f *fakeClient) RunAgent(_ context.Context, goal string, onProgress func(types.Progress)) (json.RawMessage, error) {
	f.mu.Lock()
	f.goals = append(f.goals, goal)
	f.mu.Unlock()
	onProgress(types.Progress{Status: "thinking", Message: "opening the page"})
	if f.runErr != nil {
		return nil, f.runErr
	}
	return json.RawMessage(`{"answer":"done"}`), nil
}

func (f *fakeClient) StopAgent(context.Context) error { f.record("stop"); return nil }

func (f *fakeClient) GenerateScript(_ context.Context, req types.ScriptRequest, _ func(types.Progress)) (json.RawMessage, error) {
	f.mu.Lock()
	f.script = req
	f.mu.Unlock()
	return f.scriptReply, nil
}

func (f *fakeClient) GetStats(context.Context) (map[string]any, error) {
	return map[string]any{"runs": 3}, nil
}

func (f *fakeClient) ClearHistory(context.Context) error { f.record("clear"); return nil }

type harness struct {
	client *fakeClient
	host   *browsertest.Host
	out    *bytes.Buffer
	con    *console
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	host := browsertest.New()
	reg := tools.NewRegistry()
	require.NoError(t, browsertools.Register(reg, host, browsertools.DefaultOptions()))
	d := dispatch.New(reg, browser.NewResolver(host), dispatch.WithLogger(zaptest.NewLogger(t)))

	client := &fakeClient{}
	out := &bytes.Buffer{}
	return &harness{
		client: client,
		host:   host,
		out:    out,
		con:    newConsole(client, d, newCatalog(reg), out, zaptest.NewLogger(t)),
	}
}

// exec runs lines through the console and returns its output.
func (h *harness) exec(t *testing.T, lines ...string) string {
	t.Helper()
	err := h.con.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"))
	require.NoError(t, err)
	h.con.mu.Lock()
	defer h.con.mu.Unlock()
	return h.out.String()
}

func TestCatalogListsEveryTool(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, browsertools.Register(reg, browsertest.New(), browsertools.DefaultOptions()))

	catalog := newCatalog(reg)
	assert.Len(t, catalog["tool"].Actions, len(types.Vocabulary()))
	assert.Contains(t, catalog["tool"].Actions, "get_all_tabs")
	assert.Contains(t, catalog["agent"].Actions, "run")
}

func TestConsoleCompletion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "groups", input: "/", want: []string{"/agent-", "/channel-", "/plan-", "/tool-"}},
		{name: "group prefix", input: "/ch", want: []string{"/channel-"}},
		{name: "unknown group", input: "/mail-send", want: []string{`unknown command group "mail"`}},
		{name: "actions", input: "/agent", want: []string{"/agent-run", "/agent-stop", "/agent-script"}},
		{name: "action prefix", input: "/tool-get_e", want: []string{"/tool-get_element_text", "/tool-get_element_attributes"}},
		{name: "no match", input: "/zz", want: []string{"unknown command /zz"}},
		{name: "help", input: "/help", want: []string{"Commands:", "channel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newHarness(t).exec(t, tt.input)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestConsoleAgentCommands(t *testing.T) {
	h := newHarness(t)
	out := h.exec(t, "/agent-run find the pricing page", "book a table", "/agent-stop", "/agent-stats", "/agent-clear", "/agent-run")

	assert.ElementsMatch(t, []string{"find the pricing page", "book a table"}, h.client.goals)
	assert.Contains(t, h.client.calls, "stop")
	assert.Contains(t, h.client.calls, "clear")
	assert.Contains(t, out, "[thinking] opening the page")
	assert.Contains(t, out, `"answer": "done"`)
	assert.Contains(t, out, `"runs": 3`)
	assert.Contains(t, out, "usage: /agent-run <goal>")
}

func TestConsoleAgentStopped(t *testing.T) {
	h := newHarness(t)
	h.client.runErr = channel.ErrAgentStopped

	out := h.exec(t, "/agent-run anything")
	assert.Contains(t, out, "agent stopped before finishing")
}

func TestConsoleChannelCommands(t *testing.T) {
	h := newHarness(t)
	out := h.exec(t,
		"/channel-connect",
		"/channel-status",
		"/channel-autoconnect off",
		"/channel-autoconnect maybe",
		"/channel-disconnect",
	)

	assert.Equal(t, []string{"connect", "autoconnect-off", "disconnect"}, h.client.calls)
	assert.Contains(t, out, "state: reconnecting")
	assert.Contains(t, out, "last error: dial refused")
	assert.Contains(t, out, "usage: /channel-autoconnect on|off")
}

func TestConsoleToolCommand(t *testing.T) {
	h := newHarness(t)
	out := h.exec(t,
		`/tool-navigate {url: "https://example.com/", wait_for_load: true}`,
		"/tool-click {selector: '#nope'}",
		"/tool-navigate {url",
	)

	assert.Equal(t, "https://example.com/", h.host.Active().URL)
	assert.Contains(t, out, "NAVIGATE ok")
	assert.Contains(t, out, "CLICK failed: Element not found: #nope")
	assert.Contains(t, out, "invalid params")
}

func TestConsoleScriptThenPlan(t *testing.T) {
	h := newHarness(t)
	h.host.Update(h.host.Active().ID, func(p *browsertest.Page) {
		p.URL = "https://shop.example.com/"
		p.Elements = []*browsertest.Element{{Tag: "input", ID: "q"}}
	})
	h.client.scriptReply = json.RawMessage(`{"action_plan":{"actions":[
		{"type":"TYPE","params":{"selector":"#q","text":"socks"}},
		{"type":"CLICK","params":{"selector":"#search"}}
	]}}`)

	out := h.exec(t, "/plan-run", "/agent-script search for socks", "/plan-run")

	assert.Equal(t, "https://shop.example.com/", h.client.script.TargetURL)
	assert.Equal(t, "search for socks", h.client.script.Goal)
	assert.Contains(t, out, "no action plan provided")
	assert.Contains(t, out, "plan with 2 actions ready")
	assert.Contains(t, out, "1. TYPE ok")
	assert.Contains(t, out, "2. CLICK failed: Element not found: #search")
	assert.Contains(t, out, "Some actions failed")
	assert.Equal(t, "socks", h.host.Active().Query("#q").Value)
}

func TestConsolePlanFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "tabs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actions:\n  - type: GET_ALL_TABS\n"), 0o600))

	out := h.exec(t, "/plan-run "+path, "/plan-run "+filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Contains(t, out, "All actions executed successfully")
	assert.Contains(t, out, "failed to read plan")
}

func TestConsoleQuitStopsReading(t *testing.T) {
	h := newHarness(t)
	h.exec(t, "/quit", "/channel-connect")
	assert.Empty(t, h.client.calls)
}
