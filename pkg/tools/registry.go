package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/entrhq/tabwire/pkg/types"
)

// Registry maps action types to their tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[types.ActionType]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[types.ActionType]Tool)}
}

// Register adds tools. Registering an action outside the vocabulary, or one that is
// already registered, is an error and leaves the registry unchanged.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[types.ActionType]bool, len(tools))
	for _, t := range tools {
		a := t.Action()
		if !a.Known() {
			return fmt.Errorf("action %s is not part of the vocabulary", a)
		}
		if _, exists := r.tools[a]; exists || seen[a] {
			return fmt.Errorf("tool for %s already registered", a)
		}
		seen[a] = true
	}
	for _, t := range tools {
		r.tools[t.Action()] = t
	}
	return nil
}

// Get returns the tool for action.
func (r *Registry) Get(action types.ActionType) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[action]
	return t, ok
}

// List returns every registered tool sorted by action type.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action() < out[j].Action() })
	return out
}

// Missing returns the vocabulary actions that have no tool.
func (r *Registry) Missing() []types.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.ActionType
	for _, a := range types.Vocabulary() {
		if _, ok := r.tools[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}
