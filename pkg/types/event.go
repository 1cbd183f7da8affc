package types

import "encoding/json"

// EventName is the name of a frame exchanged over the channel.
type EventName string

const (
	EventExecuteAgent   EventName = "execute_agent_ws"   // EventExecuteAgent starts a remote agent run.
	EventAgentProgress  EventName = "agent_progress"     // EventAgentProgress reports an intermediate agent status.
	EventAgentCompleted EventName = "agent_completed"    // EventAgentCompleted ends a run successfully.
	EventAgentError     EventName = "agent_error"        // EventAgentError ends a run with an error.
	EventAgentStopped   EventName = "agent_stopped"      // EventAgentStopped acknowledges a stop request.
	EventStopAgent      EventName = "stop_agent_ws"      // EventStopAgent asks the server to stop the active run.
	EventGenerateScript EventName = "generate_script_ws" // EventGenerateScript asks for a generated automation script.
	EventScriptProgress EventName = "script_progress"    // EventScriptProgress reports script generation progress.
	EventScriptReady    EventName = "script_generated"   // EventScriptReady carries the generated script.
	EventScriptError    EventName = "script_error"       // EventScriptError reports a failed script generation.
	EventGetStats       EventName = "get_stats_ws"       // EventGetStats requests server statistics.
	EventStatsResponse  EventName = "stats_response"     // EventStatsResponse carries server statistics.
	EventStatsError     EventName = "stats_error"        // EventStatsError reports a failed stats request.
	EventClearHistory   EventName = "clear_history_ws"   // EventClearHistory asks the server to clear its history.
	EventHistoryCleared EventName = "history_cleared"    // EventHistoryCleared acknowledges a history clear.
	EventClearError     EventName = "clear_error"        // EventClearError reports a failed history clear.
	EventUpdateResult   EventName = "update_result_ws"   // EventUpdateResult pushes an edited result to the server.
	EventResultUpdated  EventName = "result_updated"     // EventResultUpdated acknowledges a result update.
	EventUpdateError    EventName = "update_error"       // EventUpdateError reports a failed result update.
	EventPing           EventName = "ping"               // EventPing is the keepalive frame.
	EventPong           EventName = "pong"               // EventPong is the optional keepalive answer.
	EventToolRequest    EventName = "tool_execution_request"
	EventToolResult     EventName = "tool_execution_result"

	// Local events, published on the bus but never sent.
	EventConnectionStatus   EventName = "connection_status"
	EventConnectionError    EventName = "connection_error"
	EventReconnectExhausted EventName = "max_reconnect_attempts_reached"
	EventStateChanged       EventName = "state_changed"
)

// Frame is one JSON text message on the channel.
type Frame struct {
	Event     EventName       `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the frame payload into out. An empty payload leaves out untouched.
func (f Frame) Decode(out any) error {
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return nil
	}
	return json.Unmarshal(f.Data, out)
}

// NewFrame encodes data into a frame.
func NewFrame(event EventName, requestID string, data any) (Frame, error) {
	f := Frame{Event: event, RequestID: requestID}
	if data == nil {
		return f, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	f.Data = raw
	return f, nil
}

// ToolRequest is the payload of tool_execution_request.
type ToolRequest struct {
	ToolID     string     `json:"tool_id"`
	ActionType ActionType `json:"action_type"`
	Params     Params     `json:"params"`
}

// Descriptor converts the request into an action descriptor.
func (r ToolRequest) Descriptor() ActionDescriptor {
	return ActionDescriptor{RequestID: r.ToolID, ActionType: r.ActionType, Params: r.Params}
}

// ToolResult is the payload of tool_execution_result.
type ToolResult struct {
	ToolID string         `json:"tool_id"`
	Result ResultEnvelope `json:"result"`
}

// ConnectionStatus is the payload of connection_status.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

// ConnectionError is the payload of connection_error.
type ConnectionError struct {
	Error string `json:"error"`
}

// Progress is the payload of agent_progress and script_progress.
type Progress struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// RemoteFailure is the payload shape of every *_error event.
type RemoteFailure struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the most specific failure text.
func (f RemoteFailure) Text() string {
	if f.Error != "" {
		return f.Error
	}
	return f.Message
}

// ScriptRequest is the payload of generate_script_ws.
type ScriptRequest struct {
	Goal         string         `json:"goal"`
	TargetURL    string         `json:"target_url,omitempty"`
	DOMStructure map[string]any `json:"dom_structure,omitempty"`
	Constraints  map[string]any `json:"constraints,omitempty"`
}

// Ping is the payload of the keepalive frame.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}
