package plan_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/entrhq/tabwire/pkg/browser"
	"github.com/entrhq/tabwire/pkg/browser/browsertest"
	"github.com/entrhq/tabwire/pkg/dispatch"
	"github.com/entrhq/tabwire/pkg/plan"
	"github.com/entrhq/tabwire/pkg/tools"
	browsertools "github.com/entrhq/tabwire/pkg/tools/browser"
	"github.com/entrhq/tabwire/pkg/types"
)

const loginPlan = `
name: sign in
actions:
  - type: TYPE
    params:
      selector: "#user"
      text: alice
  - type: CLICK
    params: {selector: "#missing"}
  - type: CLICK
    params: {selector: "#go"}
`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		steps   int
		wantErr string
	}{
		{name: "yaml", input: loginPlan, steps: 3},
		{name: "json", input: `{"actions":[{"type":"GET_ALL_TABS"}]}`, steps: 1},
		{name: "empty actions", input: "name: nothing\nactions: []\n", steps: 0},
		{name: "empty document", input: "", wantErr: "no action plan provided"},
		{name: "unknown action", input: "actions:\n  - type: TELEPORT\n", wantErr: "step 1: unknown action TELEPORT"},
		{name: "missing type", input: "actions:\n  - params: {}\n", wantErr: "step 1: missing type"},
		{name: "unknown field", input: "actions: []\nretries: 3\n", wantErr: "invalid plan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := plan.Parse([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.Actions, tt.steps)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loginPlan), 0o600))

	p, err := plan.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sign in", p.Name)
	assert.Equal(t, types.ActionTypeText, p.Actions[0].Type)
	assert.Equal(t, "alice", p.Actions[0].Params.String("text"))

	_, err = plan.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read plan")
}

func TestRunContinuesPastFailures(t *testing.T) {
	host := browsertest.New()
	page := host.AddTab("https://app.example.com/login", "Login",
		&browsertest.Element{Tag: "input", ID: "user"},
		&browsertest.Element{Tag: "button", ID: "go"},
	)
	reg := tools.NewRegistry()
	require.NoError(t, browsertools.Register(reg, host, browsertools.DefaultOptions()))
	d := dispatch.New(reg, browser.NewResolver(host), dispatch.WithLogger(zaptest.NewLogger(t)))

	p, err := plan.Parse([]byte(loginPlan))
	require.NoError(t, err)
	p.TabID = page.ID

	var seen []int
	summary := plan.NewRunner(d, zaptest.NewLogger(t)).Run(context.Background(), p, func(r plan.StepResult) {
		seen = append(seen, r.Index)
	})

	assert.False(t, summary.Success)
	assert.Equal(t, "Some actions failed", summary.Message)
	assert.Equal(t, []int{1, 2, 3}, seen)
	require.Len(t, summary.Results, 3)

	assert.True(t, summary.Results[0].Success, summary.Results[0].Error)
	assert.False(t, summary.Results[1].Success)
	assert.Contains(t, summary.Results[1].Error, "#missing")
	assert.True(t, summary.Results[2].Success, summary.Results[2].Error)
	assert.Equal(t, types.ActionClick, summary.Results[2].Action)

	got := host.Page(page.ID)
	assert.Equal(t, "alice", got.Query("#user").Value)
	assert.Contains(t, got.Query("#go").Events, "click")
}

type recordingDispatcher struct {
	mu    sync.Mutex
	descs []types.ActionDescriptor
	fail  map[types.ActionType]string
}

func (r *recordingDispatcher) Dispatch(_ context.Context, d types.ActionDescriptor) types.ResultEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs = append(r.descs, d)
	if msg, ok := r.fail[d.ActionType]; ok {
		return types.Failed(d.RequestID, msg)
	}
	return types.Succeeded(d.RequestID, "ok")
}

func TestRunAllSucceed(t *testing.T) {
	rec := &recordingDispatcher{}
	p := &plan.Plan{Actions: []plan.Step{{Type: types.ActionGetAllTabs}, {Type: types.ActionGoBack}}}

	summary := plan.NewRunner(rec, nil).Run(context.Background(), p, nil)

	assert.True(t, summary.Success)
	assert.Equal(t, "All actions executed successfully", summary.Message)
	assert.Equal(t, "ok", summary.Results[1].Result)
	require.Len(t, rec.descs, 2)
	assert.NotEqual(t, rec.descs[0].RequestID, rec.descs[1].RequestID)
}

func TestRunTabTargeting(t *testing.T) {
	rec := &recordingDispatcher{}
	p := &plan.Plan{
		TabID: 4,
		Actions: []plan.Step{
			{Type: types.ActionClick, Params: types.Params{"selector": "a"}},
			{Type: types.ActionClick, TabID: 9},
			{Type: types.ActionClick, TabID: 9, Params: types.Params{"tabId": 2}},
		},
	}

	plan.NewRunner(rec, nil).Run(context.Background(), p, nil)

	require.Len(t, rec.descs, 3)
	id, _ := rec.descs[0].Params.TabID()
	assert.Equal(t, 4, id)
	id, _ = rec.descs[1].Params.TabID()
	assert.Equal(t, 9, id)
	id, _ = rec.descs[2].Params.TabID()
	assert.Equal(t, 2, id)
	assert.NotContains(t, p.Actions[0].Params, "tab_id", "step params must not be mutated")
}

func TestRunCancelled(t *testing.T) {
	rec := &recordingDispatcher{}
	p := &plan.Plan{Actions: []plan.Step{{Type: types.ActionGoBack}, {Type: types.ActionGoForward}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := plan.NewRunner(rec, nil).Run(ctx, p, nil)

	assert.False(t, summary.Success)
	assert.Empty(t, rec.descs)
	for _, r := range summary.Results {
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
}
