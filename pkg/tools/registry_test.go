package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/tabwire/pkg/types"
)

type stubTool struct {
	action types.ActionType
}

func (s stubTool) Action() types.ActionType { return s.action }
func (s stubTool) Description() string      { return "stub" }
func (s stubTool) Schema() map[string]any   { return BaseToolSchema(map[string]any{}, nil) }
func (s stubTool) Scope() Scope             { return ScopeTab }
func (s stubTool) Execute(ctx context.Context, call Call) (any, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{types.ActionClick}, stubTool{types.ActionHover}))

	got, ok := r.Get(types.ActionClick)
	require.True(t, ok)
	assert.Equal(t, types.ActionClick, got.Action())

	_, ok = r.Get(types.ActionScroll)
	assert.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, types.ActionClick, list[0].Action())
	assert.Equal(t, types.ActionHover, list[1].Action())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		tools   []Tool
		wantErr string
	}{
		{name: "unknown action", tools: []Tool{stubTool{"DANCE"}}, wantErr: "not part of the vocabulary"},
		{name: "duplicate in batch", tools: []Tool{stubTool{types.ActionWait}, stubTool{types.ActionWait}}, wantErr: "already registered"},
		{name: "duplicate of existing", tools: []Tool{stubTool{types.ActionClick}}, wantErr: "already registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Register(stubTool{types.ActionClick}))

			err := r.Register(tt.tools...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Len(t, r.List(), 1, "failed registration must not add tools")
		})
	}
}

func TestRegistry_Missing(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.Missing(), len(types.Vocabulary()))

	require.NoError(t, r.Register(stubTool{types.ActionClick}))
	assert.NotContains(t, r.Missing(), types.ActionClick)
	assert.Len(t, r.Missing(), len(types.Vocabulary())-1)
}

func TestBaseToolSchema(t *testing.T) {
	s := BaseToolSchema(map[string]any{"selector": map[string]any{"type": "string"}}, []string{"selector"})
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, []string{"selector"}, s["required"])

	s = BaseToolSchema(map[string]any{}, nil)
	_, has := s["required"]
	assert.False(t, has)
}

func TestRequireString(t *testing.T) {
	v, err := RequireString(types.Params{"selector": "#a"}, "selector")
	require.NoError(t, err)
	assert.Equal(t, "#a", v)

	_, err = RequireString(types.Params{}, "selector")
	assert.EqualError(t, err, "missing required parameter: selector")
}
