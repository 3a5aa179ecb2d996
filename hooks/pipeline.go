// Package hooks implements the Hook Pipeline (C3): ordered interception
// around fixed agent-loop positions, with state mutation and jump-target
// semantics (spec.md §4.3).
package hooks

import (
	"context"

	"github.com/agentruntime/core/state"
	"github.com/agentruntime/core/telemetry"
)

// Position is one of the four fixed interception points in the agent loop.
type Position string

const (
	BeforeAgent Position = "BEFORE_AGENT"
	AfterAgent  Position = "AFTER_AGENT"
	BeforeModel Position = "BEFORE_MODEL"
	AfterModel  Position = "AFTER_MODEL"
)

// Result is what a Hook returns from Invoke: a set of state updates to
// apply, plus an optional jump target.
type Result struct {
	Updates    map[string]any
	JumpTarget string
}

// Hook is polymorphic over the four positions. A hook declares which
// positions it targets and, for jumps, which labels it's allowed to target;
// defaults are no-op and may-not-jump.
type Hook interface {
	// Name identifies the hook for logging and ordering diagnostics.
	Name() string
	// Positions returns the set of positions this hook should be invoked at.
	Positions() []Position
	// AllowedJumpTargets returns the labels this hook may jump to. A jump
	// returned from Invoke that isn't in this set is ignored.
	AllowedJumpTargets() []string
	// Invoke runs the hook at the given position with the current state and
	// config, returning state updates and an optional jump target.
	Invoke(ctx context.Context, position Position, st *state.Map, cfg map[string]any) (Result, error)
}

// BaseHook provides Name and the may-not-jump default (no allowed jump
// targets) so concrete hooks only need to implement Invoke and Positions.
type BaseHook struct {
	HookName string
}

func (b BaseHook) Name() string                    { return b.HookName }
func (b BaseHook) AllowedJumpTargets() []string     { return nil }

// Pipeline runs hooks in registration order at each position, applying
// updates to shared state after every hook invocation (spec.md §4.3
// Ordering). The pipeline is not parallel: a hook observes every prior
// hook's writes at the same position.
type Pipeline struct {
	hooks  map[Position][]Hook
	logger telemetry.Logger
	tracer telemetry.Tracer
	bus    Bus
}

// New constructs an empty Pipeline.
func New(logger telemetry.Logger, tracer telemetry.Tracer) *Pipeline {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Pipeline{hooks: make(map[Position][]Hook), logger: logger, tracer: tracer}
}

// SetBus wires bus into the pipeline: after every AFTER_AGENT/AFTER_MODEL
// run, the pipeline publishes a turn-completion event so subscribers such as
// the learning loop (C5) can react without the pipeline depending on them
// directly (SPEC_FULL.md §4.3).
func (p *Pipeline) SetBus(bus Bus) {
	p.bus = bus
}

// Register adds hook at every position it declares, in call order. Hooks
// registered earlier run earlier within a shared position.
func (p *Pipeline) Register(hook Hook) {
	for _, pos := range hook.Positions() {
		p.hooks[pos] = append(p.hooks[pos], hook)
	}
}

// Outcome summarizes one pipeline run at a position.
type Outcome struct {
	JumpTarget string // set if any hook requested and was allowed a jump
}

// Run invokes every hook registered at position in registration order. Each
// hook's returned updates are applied to st before the next hook runs. An
// individual hook's error is logged and skipped: the pipeline continues
// with the remaining hooks (spec.md §4.3, §7 Hook errors never abort the
// turn). The first hook to request an allowed jump wins; later hooks still
// run (jump targets affect the caller's subsequent routing, not pipeline
// iteration).
func (p *Pipeline) Run(ctx context.Context, position Position, st *state.Map, cfg map[string]any) Outcome {
	_, span := p.tracer.Start(ctx, "hooks.pipeline.run")
	defer span.End()

	var outcome Outcome
	for _, hook := range p.hooks[position] {
		result, err := hook.Invoke(ctx, position, st, cfg)
		if err != nil {
			p.logger.Error(ctx, "hook invocation failed", "hook", hook.Name(), "position", string(position), "err", err)
			continue
		}
		st.ApplyUpdates(result.Updates)
		if result.JumpTarget != "" && outcome.JumpTarget == "" && isAllowedJump(hook, result.JumpTarget) {
			outcome.JumpTarget = result.JumpTarget
		}
	}

	if p.bus != nil && (position == AfterAgent || position == AfterModel) {
		event := Event{Type: string(position), Position: position, State: st.GetAll()}
		if err := p.bus.Publish(ctx, event); err != nil {
			p.logger.Error(ctx, "event bus publish failed", "position", string(position), "err", err)
		}
	}

	return outcome
}

func isAllowedJump(hook Hook, target string) bool {
	for _, allowed := range hook.AllowedJumpTargets() {
		if allowed == target {
			return true
		}
	}
	return false
}

// HookFunc adapts a plain function into a Hook with no jump targets,
// registered at the given positions.
type HookFunc struct {
	BaseHook
	positions []Position
	fn        func(ctx context.Context, position Position, st *state.Map, cfg map[string]any) (Result, error)
}

// NewHookFunc builds a Hook from fn, registered at positions.
func NewHookFunc(name string, positions []Position, fn func(ctx context.Context, position Position, st *state.Map, cfg map[string]any) (Result, error)) *HookFunc {
	return &HookFunc{BaseHook: BaseHook{HookName: name}, positions: positions, fn: fn}
}

func (h *HookFunc) Positions() []Position { return h.positions }

func (h *HookFunc) Invoke(ctx context.Context, position Position, st *state.Map, cfg map[string]any) (Result, error) {
	return h.fn(ctx, position, st, cfg)
}
