package types

// ResultEnvelope is the single reply to one ActionDescriptor.
type ResultEnvelope struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Succeeded builds a success envelope for id.
func Succeeded(id string, data any) ResultEnvelope {
	return ResultEnvelope{RequestID: id, Success: true, Data: data}
}

// Failed builds a failure envelope for id carrying msg.
func Failed(id string, msg string) ResultEnvelope {
	return ResultEnvelope{RequestID: id, Success: false, Error: msg}
}
