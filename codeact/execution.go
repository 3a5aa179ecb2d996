package codeact

import (
	"context"
	"time"

	"github.com/agentruntime/core/errs"
	"github.com/agentruntime/core/state"
	"github.com/agentruntime/core/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// SnippetState enumerates the linear states a code snippet passes through
// (spec.md §4.2 "State machine (per code snippet)").
type SnippetState string

const (
	StateReceived   SnippetState = "RECEIVED"
	StateParsed     SnippetState = "PARSED"
	StateRegistered SnippetState = "REGISTERED"
	StateInvoked    SnippetState = "INVOKED"
	StateCompleted  SnippetState = "COMPLETED"
	StateFailed     SnippetState = "FAILED"
)

// Record captures one code snippet's passage through the state machine,
// including any failure detail, for storage in state.KeyExecutionHistory.
type Record struct {
	Language  string
	Source    string
	State     SnippetState
	Result    string
	Error     string
	Stack     string
	StartedAt time.Time
	EndedAt   time.Time
}

// Success reports whether the snippet reached COMPLETED.
func (r *Record) Success() bool { return r.State == StateCompleted }

// Interpreter is the external collaborator that actually runs a parsed
// snippet (the embedded code interpreter, out of scope per spec.md §1). It
// receives the bridge proxies bound for this turn and returns the snippet's
// final value or an error with an optional stack trace.
type Interpreter interface {
	Run(ctx context.Context, language, source string, tools *ToolProxy, st *StateProxy, funcs *FunctionTable) (result string, stack string, err error)
}

// Bridge drives one code snippet through RECEIVED → PARSED → REGISTERED →
// INVOKED → {COMPLETED, FAILED}, recording an execution Record into the turn
// state's execution history regardless of outcome (spec.md §4.2).
type Bridge struct {
	interpreter Interpreter
	funcs       *FunctionTable
	logger      telemetry.Logger
	tracer      telemetry.Tracer
}

// NewBridge constructs a Bridge around interpreter, sharing funcs across
// calls so previously compiled snippets remain addressable.
func NewBridge(interpreter Interpreter, funcs *FunctionTable, logger telemetry.Logger, tracer telemetry.Tracer) *Bridge {
	if funcs == nil {
		funcs = NewFunctionTable()
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Bridge{interpreter: interpreter, funcs: funcs, logger: logger, tracer: tracer}
}

// Execute runs source through the state machine, binding the executed code
// to a ToolProxy backed by caller/observer and a StateProxy backed by
// turnState. Execute itself never returns an error — every outcome,
// including FAILED transitions, is communicated through the returned Record
// so the agent loop can surface the error to the next model call (spec.md
// §4.2 Failure semantics). The record is always appended to
// state.KeyExecutionHistory.
func (b *Bridge) Execute(ctx context.Context, language, source string, turnState *state.Map, caller ToolCaller, observer Observer, imports ...string) *Record {
	ctx, span := b.tracer.Start(ctx, "codeact.execute")
	defer span.End()

	rec := &Record{Language: language, Source: source, State: StateReceived, StartedAt: time.Now()}
	defer b.appendHistory(turnState, rec)

	if source == "" {
		return b.fail(span, rec, errs.New(errs.KindCodeExecution, "empty code snippet"), "")
	}
	rec.State = StateParsed

	if _, err := b.funcs.Register(language, source, imports...); err != nil {
		return b.fail(span, rec, err, "")
	}
	rec.State = StateRegistered
	rec.State = StateInvoked

	toolProxy := NewToolProxy(caller, observer, b.logger, b.tracer)
	stateProxy := NewStateProxy(turnState)

	result, stack, runErr := b.interpreter.Run(ctx, language, source, toolProxy, stateProxy, b.funcs)
	if runErr != nil {
		return b.fail(span, rec, errs.Wrap(errs.KindCodeExecution, "code execution raised", runErr), stack)
	}

	rec.State = StateCompleted
	rec.Result = result
	rec.EndedAt = time.Now()
	span.SetStatus(codes.Ok, "ok")
	return rec
}

func (b *Bridge) fail(span telemetry.Span, rec *Record, err error, stack string) *Record {
	rec.State = StateFailed
	rec.Error = err.Error()
	rec.Stack = stack
	rec.EndedAt = time.Now()
	span.RecordError(err)
	span.SetStatus(codes.Error, "code execution failed")
	return rec
}

func (b *Bridge) appendHistory(turnState *state.Map, rec *Record) {
	existing, _ := turnState.Get(state.KeyExecutionHistory)
	history, _ := existing.([]*Record)
	history = append(history, rec)
	turnState.Set(state.KeyExecutionHistory, history)
}
