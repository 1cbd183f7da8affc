package channel

// State is the connection state of a Manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateGivingUp is entered when the reconnect budget is spent. Only an explicit
	// Connect or the auto-connect monitor leaves it.
	StateGivingUp State = "giving_up"
)

// States lists every state, in lifecycle order.
func States() []State {
	return []State{StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateGivingUp}
}

// StateNames returns the states as strings, for metrics.Collector.
func StateNames() []string {
	states := States()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return names
}

// Status is a snapshot of the manager for display.
type Status struct {
	State        State  `json:"state"`
	Connected    bool   `json:"connected"`
	Attempts     int    `json:"attempts"`
	AutoConnect  bool   `json:"auto_connect"`
	AgentRunning bool   `json:"agent_running"`
	Pending      int    `json:"pending"`
	LastError    string `json:"last_error,omitempty"`
}
