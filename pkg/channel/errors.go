package channel

import (
	"errors"
	"fmt"

	"github.com/entrhq/tabwire/pkg/types"
)

var (
	// ErrNotConnected is returned by sends attempted while no connection is open.
	// Frames are never queued for a later connection.
	ErrNotConnected = errors.New("websocket not connected")

	// ErrDisconnected fails pending calls when the connection is closed on purpose.
	ErrDisconnected = errors.New("channel disconnected")

	// ErrTimeout is wrapped by every call that got no terminal response in time.
	ErrTimeout = errors.New("request timeout")

	// ErrAgentBusy is returned by RunAgent while another run is active.
	ErrAgentBusy = errors.New("an agent run is already in progress")

	// ErrAgentStopped ends a run that the server stopped on request.
	ErrAgentStopped = errors.New("agent execution stopped by user")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("channel manager is shut down")

	// ErrMalformedFrame is returned by Conn.Read for a message that is not a frame.
	// The connection stays usable.
	ErrMalformedFrame = errors.New("malformed frame")
)

// RemoteError is a failure event reported by the server for one call.
type RemoteError struct {
	Event   types.EventName
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unknown error", e.Event)
	}
	return e.Message
}

func remoteError(f types.Frame) *RemoteError {
	var failure types.RemoteFailure
	if err := f.Decode(&failure); err != nil {
		return &RemoteError{Event: f.Event, Message: string(f.Data)}
	}
	return &RemoteError{Event: f.Event, Message: failure.Text()}
}
