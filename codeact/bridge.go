// Package codeact implements the Code-Acting Execution Bridge (C2): the
// contract by which code emitted by the model calls registered tools and
// reads/writes turn state, with one-lookup-per-call semantics and post-call
// schema observation. The embedded code interpreter that actually executes
// the snippet is an external collaborator (spec.md §1 Out of scope); this
// package defines the bridge contract the interpreter is wired against.
package codeact

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/agentruntime/core/errs"
	"github.com/agentruntime/core/state"
	"github.com/agentruntime/core/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolCaller is the subset of the tool registry the bridge needs: a single
// lookup-and-call per invocation, plus best-effort post-call observation.
type ToolCaller interface {
	// Call invokes the named tool synchronously and returns its raw JSON
	// result. success is false when the tool reported a business-logic
	// failure captured in the result payload (an {"error": "..."} envelope),
	// as opposed to err, which is reserved for "tool not found" and similar
	// bridge-level failures.
	Call(ctx context.Context, name string, argsJSON []byte) (resultJSON []byte, success bool, err error)
	// List returns every tool name currently registered.
	List() []string
	// Has reports whether name is registered.
	Has(name string) bool
}

// Observer receives a fire-and-forget notification after every tool call so
// the schema registry can be refined without extending the call's critical
// path (spec.md §4.1 "Observer feedback loop").
type Observer interface {
	Observe(ctx context.Context, name string, resultJSON []byte, success bool)
}

// ToolProxy is the contract presented to executed code for invoking tools.
type ToolProxy struct {
	caller   ToolCaller
	observer Observer
	tracer   telemetry.Tracer
	logger   telemetry.Logger
}

// NewToolProxy constructs a ToolProxy bound to caller and observer.
func NewToolProxy(caller ToolCaller, observer Observer, logger telemetry.Logger, tracer telemetry.Tracer) *ToolProxy {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &ToolProxy{caller: caller, observer: observer, logger: logger, tracer: tracer}
}

// Call invokes name with argsJSON and returns a string that is either a JSON
// object describing the success payload, or {"error": "<message>"} on
// failure (spec.md §6 Tool-call envelope). The envelope is stable: code
// executing against the bridge can always json-decode the return value.
//
// After returning to the caller, Call asynchronously forwards
// (name, resultString, success) to the schema observer; observation never
// blocks the call and never masks the tool result (spec.md §4.2).
func (p *ToolProxy) Call(ctx context.Context, name string, argsJSON string) (resultString string, err error) {
	ctx, span := p.tracer.Start(ctx, "codeact.tool_call", trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	if !p.caller.Has(name) {
		toolErr := errs.New(errs.KindValidation, fmt.Sprintf("Tool not found: %s", name)).WithField("tool", name)
		span.RecordError(toolErr)
		span.SetStatus(codes.Error, "tool not found")
		return "", toolErr
	}

	result, success, callErr := p.caller.Call(ctx, name, []byte(argsJSON))
	if callErr != nil {
		envelope, _ := json.Marshal(map[string]string{"error": callErr.Error()})
		p.publishObservation(ctx, name, envelope, false)
		span.RecordError(callErr)
		span.SetStatus(codes.Error, "tool call raised")
		return string(envelope), nil
	}

	p.publishObservation(ctx, name, result, success)
	span.SetStatus(codes.Ok, "ok")
	return string(result), nil
}

// publishObservation forwards the tool result to the schema observer on a
// detached goroutine so schema observation never extends the tool call's
// critical path. Observation failures are swallowed (spec.md §4.1, §4.2).
func (p *ToolProxy) publishObservation(ctx context.Context, name string, result []byte, success bool) {
	if p.observer == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error(detached, "schema observation panicked", "tool", name, "recover", r)
			}
		}()
		p.observer.Observe(detached, name, result, success)
	}()
}

// List returns every registered tool name.
func (p *ToolProxy) List() []string { return p.caller.List() }

// Has reports whether name is registered.
func (p *ToolProxy) Has(name string) bool { return p.caller.Has(name) }

// StateProxy is the contract presented to executed code for reading and
// writing turn state.
type StateProxy struct {
	mu sync.Mutex
	m  *state.Map
}

// NewStateProxy constructs a StateProxy bound to m.
func NewStateProxy(m *state.Map) *StateProxy {
	return &StateProxy{m: m}
}

// Get returns the value stored under key.
func (p *StateProxy) Get(key string) (any, bool) { return p.m.Get(key) }

// Has reports whether key is present.
func (p *StateProxy) Has(key string) bool { return p.m.Has(key) }

// Set performs a structural write into the turn state map.
func (p *StateProxy) Set(key string, value any) { p.m.Set(key, value) }

// GetAll returns a snapshot of every state entry.
func (p *StateProxy) GetAll() map[string]any { return p.m.GetAll() }

// FunctionTable holds previously compiled code snippets addressable by
// function name, together with the import/require lines passed to Register
// for each function. The table does not derive import/require declarations
// from the snippet's source; it only accumulates the lines it is given.
type FunctionTable struct {
	mu        sync.RWMutex
	functions map[string]CompiledFunction
	imports   map[string]map[string]struct{} // function name -> set of import/require lines
}

// CompiledFunction is a single registered code snippet.
type CompiledFunction struct {
	Name     string
	Language string
	Source   string
}

// NewFunctionTable constructs an empty function table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{
		functions: make(map[string]CompiledFunction),
		imports:   make(map[string]map[string]struct{}),
	}
}

// Register extracts the top-level function name from source and adds it to
// the table. Extraction failure is a hard error: the snippet cannot be
// registered (spec.md §4.2).
func (t *FunctionTable) Register(language, source string, imports ...string) (string, error) {
	name, err := ExtractFunctionName(language, source)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.functions[name] = CompiledFunction{Name: name, Language: language, Source: source}
	if len(imports) > 0 {
		set := t.imports[name]
		if set == nil {
			set = make(map[string]struct{}, len(imports))
		}
		for _, imp := range imports {
			set[imp] = struct{}{}
		}
		t.imports[name] = set
	}
	return name, nil
}

// Get returns the compiled function registered under name.
func (t *FunctionTable) Get(name string) (CompiledFunction, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.functions[name]
	return fn, ok
}

// Imports returns the accumulated import/require lines for name, sorted for
// deterministic rendering.
func (t *FunctionTable) Imports(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.imports[name]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for imp := range set {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}
