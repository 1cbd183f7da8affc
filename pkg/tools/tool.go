// Package tools defines the browser tool contract and the registry the dispatcher
// routes action descriptors through.
package tools

import (
	"context"
	"fmt"

	"github.com/entrhq/tabwire/pkg/types"
)

// Scope tells the dispatcher whether a tool acts on a resolved tab.
type Scope int

const (
	// ScopeTab tools receive a resolved target tab.
	ScopeTab Scope = iota
	// ScopeBrowser tools act on the browser as a whole and skip target resolution.
	ScopeBrowser
)

func (s Scope) String() string {
	if s == ScopeBrowser {
		return "browser"
	}
	return "tab"
}

// Call is one invocation of a tool.
type Call struct {
	// Target is the resolved tab. It is zero for browser-scoped tools.
	Target types.TargetHandle
	Params types.Params
}

// Tool executes one action type.
type Tool interface {
	// Action returns the action type this tool answers.
	Action() types.ActionType

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Schema returns the JSON schema for this tool's parameters.
	Schema() map[string]any

	// Scope reports whether the dispatcher must resolve a target tab first.
	Scope() Scope

	// Execute runs the tool. The returned value becomes the envelope's data and must
	// be JSON-serializable. A returned error becomes a failure envelope carrying its
	// message.
	Execute(ctx context.Context, call Call) (any, error)
}

// BaseToolSchema creates a basic JSON schema structure for tool parameters.
func BaseToolSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RequireString returns params[key] or an error naming the missing parameter.
func RequireString(params types.Params, key string) (string, error) {
	v := params.String(key)
	if v == "" {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	return v, nil
}
