package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(EventPing, "", Ping{Timestamp: 42})
	require.NoError(t, err)
	assert.Equal(t, EventPing, f.Event)
	assert.Empty(t, f.RequestID)
	assert.JSONEq(t, `{"timestamp":42}`, string(f.Data))

	empty, err := NewFrame(EventStopAgent, "req-1", nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Data)

	raw, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"stop_agent_ws","request_id":"req-1"}`, string(raw))
}

func TestFrameDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Progress
		wantErr bool
	}{
		{name: "payload", data: `{"status":"running","message":"step 1"}`, want: Progress{Status: "running", Message: "step 1"}},
		{name: "empty", data: ``, want: Progress{}},
		{name: "null", data: `null`, want: Progress{}},
		{name: "malformed", data: `{"status":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Frame{Event: EventAgentProgress}
			if tt.data != "" {
				f.Data = json.RawMessage(tt.data)
			}
			var got Progress
			err := f.Decode(&got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolRequestDescriptor(t *testing.T) {
	var req ToolRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tool_id":"t-9","action_type":"CLICK","params":{"selector":"#go"}}`), &req))

	desc := req.Descriptor()
	assert.Equal(t, "t-9", desc.RequestID)
	assert.Equal(t, ActionClick, desc.ActionType)
	assert.Equal(t, "#go", desc.Params.String("selector"))
}

func TestToolResultWireShape(t *testing.T) {
	raw, err := json.Marshal(ToolResult{ToolID: "t-1", Result: Failed("t-1", "Element not found: #submit")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool_id":"t-1","result":{"request_id":"t-1","success":false,"error":"Element not found: #submit"}}`, string(raw))

	raw, err = json.Marshal(Succeeded("t-2", map[string]any{"tab_id": 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id":"t-2","success":true,"data":{"tab_id":3}}`, string(raw))
}

func TestRemoteFailureText(t *testing.T) {
	assert.Equal(t, "boom", RemoteFailure{Error: "boom", Message: "ignored"}.Text())
	assert.Equal(t, "fallback", RemoteFailure{Message: "fallback"}.Text())
	assert.Empty(t, RemoteFailure{}.Text())
}
