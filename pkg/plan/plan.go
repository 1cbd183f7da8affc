// Package plan loads action plans and runs them step by step through the dispatcher.
//
// A plan is YAML (or JSON, which YAML accepts):
//
//	name: sign in
//	tab_id: 3
//	actions:
//	  - type: NAVIGATE
//	    params: {url: "https://app.example.com/login", wait_for_load: true}
//	  - type: TYPE
//	    params: {selector: "#user", text: "alice"}
//	  - type: CLICK
//	    params: {selector: "#go"}
package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/tabwire/pkg/types"
)

// Step is one action of a plan.
type Step struct {
	Type   types.ActionType `yaml:"type" json:"type"`
	Params types.Params     `yaml:"params,omitempty" json:"params,omitempty"`
	// TabID targets a specific tab. Zero falls back to the plan's tab.
	TabID int `yaml:"tab_id,omitempty" json:"tab_id,omitempty"`
}

// Plan is an ordered list of actions.
type Plan struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// TabID is the default target of every step. Zero lets each step resolve
	// to the active tab.
	TabID   int    `yaml:"tab_id,omitempty" json:"tab_id,omitempty"`
	Actions []Step `yaml:"actions" json:"actions"`
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan. Unknown fields and unknown action types
// are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no action plan provided")
		}
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every step names a known action.
func (p *Plan) Validate() error {
	var errs []error
	for i, s := range p.Actions {
		if s.Type == "" {
			errs = append(errs, fmt.Errorf("step %d: missing type", i+1))
			continue
		}
		if !s.Type.Known() {
			errs = append(errs, fmt.Errorf("step %d: unknown action %s", i+1, s.Type))
		}
	}
	return errors.Join(errs...)
}

// Dispatcher runs a single descriptor. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, desc types.ActionDescriptor) types.ResultEnvelope
}

// StepResult reports one executed step.
type StepResult struct {
	Index   int              `json:"index"`
	Action  types.ActionType `json:"action"`
	Success bool             `json:"success"`
	Result  any              `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Summary reports a whole run. Success is true only when every step succeeded.
type Summary struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results []StepResult `json:"results"`
}

// Runner executes plans.
type Runner struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewRunner creates a runner on top of d.
func NewRunner(d Dispatcher, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{dispatcher: d, logger: logger.With(zap.String("component", "plan"))}
}

// Run executes the steps in order. A failed step does not stop the plan; a
// cancelled ctx fails the steps that did not start. onStep, if set, sees each
// result as it completes.
func (r *Runner) Run(ctx context.Context, p *Plan, onStep func(StepResult)) Summary {
	runID := uuid.NewString()
	results := make([]StepResult, 0, len(p.Actions))

	r.logger.Info("running plan",
		zap.String("plan", p.Name),
		zap.String("run_id", runID),
		zap.Int("steps", len(p.Actions)))

	for i, step := range p.Actions {
		res := StepResult{Index: i + 1, Action: step.Type}
		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
		} else {
			env := r.dispatcher.Dispatch(ctx, types.ActionDescriptor{
				RequestID:  fmt.Sprintf("plan-%s-%d", runID, i+1),
				ActionType: step.Type,
				Params:     p.params(step),
			})
			res.Success = env.Success
			res.Result = env.Data
			res.Error = env.Error
		}

		if !res.Success {
			r.logger.Warn("plan step failed",
				zap.String("run_id", runID),
				zap.Int("step", res.Index),
				zap.String("action", string(step.Type)),
				zap.String("error", res.Error))
		}
		results = append(results, res)
		if onStep != nil {
			onStep(res)
		}
	}

	summary := Summary{Success: true, Message: "All actions executed successfully", Results: results}
	for _, res := range results {
		if !res.Success {
			summary.Success = false
			summary.Message = "Some actions failed"
			break
		}
	}
	return summary
}

// params copies the step params and applies the tab target.
func (p *Plan) params(s Step) types.Params {
	out := make(types.Params, len(s.Params)+1)
	for k, v := range s.Params {
		out[k] = v
	}
	if _, explicit := out.TabID(); explicit {
		return out
	}
	switch {
	case s.TabID != 0:
		out["tab_id"] = s.TabID
	case p.TabID != 0:
		out["tab_id"] = p.TabID
	}
	return out
}
