// Package dispatch routes action descriptors to browser tools and answers every
// descriptor with exactly one result envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/channel"
	"github.com/entrhq/tabwire/pkg/metrics"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

const instrumentationName = "github.com/entrhq/tabwire/pkg/dispatch"

// Channel is the part of channel.Manager the dispatcher needs.
type Channel interface {
	Subscribe(event types.EventName, h channel.Handler) channel.Subscription
	Send(ctx context.Context, event types.EventName, payload any) error
}

// Resolver picks the target tab of a tab-scoped action.
type Resolver interface {
	Resolve(ctx context.Context, params types.Params) (types.TargetHandle, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records every dispatch on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithCallTimeout bounds each tool execution. Zero leaves tools to their own timeouts.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.callTimeout = timeout }
}

// Dispatcher validates, resolves and executes action descriptors.
type Dispatcher struct {
	registry    *tools.Registry
	resolver    Resolver
	logger      *zap.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer
	callTimeout time.Duration

	mu  sync.Mutex
	sub channel.Subscription
	wg  sync.WaitGroup
}

// New creates a dispatcher over registry.
func New(registry *tools.Registry, resolver Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		resolver: resolver,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("component", "dispatcher"))
	return d
}

// Dispatch runs one descriptor and returns its envelope. It never panics and never
// returns without an envelope: unknown actions, resolution failures, tool errors
// and tool panics all come back as failures carrying the message.
func (d *Dispatcher) Dispatch(ctx context.Context, desc types.ActionDescriptor) (env types.ResultEnvelope) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "tool.dispatch",
		trace.WithAttributes(
			attribute.String("tool.id", desc.RequestID),
			attribute.String("tool.action", string(desc.ActionType))))

	outcome := metrics.OutcomeSuccess
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.OutcomePanic
			env = types.Failed(desc.RequestID, fmt.Sprint(r))
			d.logger.Error("tool panicked",
				zap.String("tool_id", desc.RequestID),
				zap.String("action", string(desc.ActionType)),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}

		elapsed := time.Since(start)
		span.SetAttributes(
			attribute.Bool("tool.success", env.Success),
			attribute.String("tool.outcome", outcome),
			attribute.Float64("tool.duration_ms", float64(elapsed.Milliseconds())))
		if env.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, env.Error)
		}
		span.End()
		d.metrics.RecordToolCall(string(desc.ActionType), outcome, elapsed)

		d.logger.Debug("tool call finished",
			zap.String("tool_id", desc.RequestID),
			zap.String("action", string(desc.ActionType)),
			zap.Bool("success", env.Success),
			zap.Duration("duration", elapsed))
	}()

	tool, ok := d.lookupTool(desc.ActionType)
	if !ok {
		outcome = metrics.OutcomeUnknown
		return types.Failed(desc.RequestID, fmt.Sprintf("unknown tool: %s", desc.ActionType))
	}

	call := tools.Call{Params: desc.Params}
	if call.Params == nil {
		call.Params = types.Params{}
	}

	if tool.Scope() == tools.ScopeTab {
		target, err := d.resolver.Resolve(ctx, call.Params)
		if err != nil {
			outcome = metrics.OutcomeFailure
			span.RecordError(err)
			return types.Failed(desc.RequestID, err.Error())
		}
		call.Target = target
		span.SetAttributes(attribute.Int("tool.tab_id", target.TabID))
	}

	data, err := d.execute(ctx, tool, call)
	if err != nil {
		outcome = metrics.OutcomeFailure
		span.RecordError(err)
		d.logger.Info("tool failed",
			zap.String("tool_id", desc.RequestID),
			zap.String("action", string(desc.ActionType)),
			zap.Error(err))
		return types.Failed(desc.RequestID, err.Error())
	}
	return types.Succeeded(desc.RequestID, data)
}

func (d *Dispatcher) lookupTool(action types.ActionType) (tools.Tool, bool) {
	tool, ok := d.registry.Get(action)
	if !ok {
		d.logger.Warn("unknown tool", zap.String("action", string(action)))
	}
	return tool, ok
}

// execute runs the tool and encodes its result, so an envelope that left the
// dispatcher can always be sent.
func (d *Dispatcher) execute(ctx context.Context, tool tools.Tool, call tools.Call) (any, error) {
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	data, err := tool.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("tool result cannot be encoded: %w", err)
	}
	return json.RawMessage(raw), nil
}

// Attach answers every tool_execution_request arriving on ch. Each request runs
// on its own goroutine, so results may leave in any order; each result echoes the
// request's tool_id. A result that cannot be sent is logged and dropped.
func (d *Dispatcher) Attach(ctx context.Context, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sub != nil {
		d.sub.Unsubscribe()
	}
	d.sub = ch.Subscribe(types.EventToolRequest, func(f types.Frame) {
		d.accept(ctx, ch, f)
	})
	d.logger.Info("dispatcher attached", zap.Int("tools", len(d.registry.List())))
}

// Detach stops taking new requests. Calls in flight keep running; see Wait.
func (d *Dispatcher) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sub != nil {
		d.sub.Unsubscribe()
		d.sub = nil
	}
}

// Wait blocks until every accepted request has been answered or dropped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) accept(ctx context.Context, ch Channel, f types.Frame) {
	var req types.ToolRequest
	if err := f.Decode(&req); err != nil {
		d.rejectMalformed(ctx, ch, f, err)
		return
	}

	d.logger.Info("tool request received",
		zap.String("tool_id", req.ToolID),
		zap.String("action", string(req.ActionType)))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		env := d.Dispatch(ctx, req.Descriptor())
		d.reply(ctx, ch, req.ToolID, env)
	}()
}

// rejectMalformed answers a request whose params could not be decoded, when at
// least its tool_id is readable.
func (d *Dispatcher) rejectMalformed(ctx context.Context, ch Channel, f types.Frame, cause error) {
	var head struct {
		ToolID string `json:"tool_id"`
	}
	if err := f.Decode(&head); err != nil || head.ToolID == "" {
		d.logger.Warn("dropping unreadable tool request", zap.Error(cause))
		return
	}
	d.logger.Warn("invalid tool request", zap.String("tool_id", head.ToolID), zap.Error(cause))
	d.reply(ctx, ch, head.ToolID, types.Failed(head.ToolID, fmt.Sprintf("invalid tool request: %v", cause)))
}

func (d *Dispatcher) reply(ctx context.Context, ch Channel, toolID string, env types.ResultEnvelope) {
	err := ch.Send(ctx, types.EventToolResult, types.ToolResult{ToolID: toolID, Result: env})
	if err != nil {
		d.logger.Warn("discarding tool result",
			zap.String("tool_id", toolID),
			zap.Bool("success", env.Success),
			zap.Error(err))
	}
}
