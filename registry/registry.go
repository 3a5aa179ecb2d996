// Package registry implements the Tool Registry & Schema Observation
// subsystem (C1): the authoritative set of tools an agent can call, stub
// rendering for generated code, and runtime schema inference from observed
// return values.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentruntime/core/errs"
	"github.com/agentruntime/core/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Registry is the process-wide tool registry singleton. It is safe for
// concurrent use: registration is serialized under a write lock, and reads
// take a shared read lock (they are not lock-free). Lookups return the
// stored *Record itself, not a copy.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	aliases map[string]string // alias -> canonical name

	Schema *SchemaRegistry

	logger telemetry.Logger
	tracer telemetry.Tracer
}

// New constructs an empty Registry with its own SchemaRegistry.
func New(logger telemetry.Logger, tracer telemetry.Tracer) *Registry {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Registry{
		records: make(map[string]*Record),
		aliases: make(map[string]string),
		Schema:  NewSchemaRegistry(logger, tracer),
		logger:  logger,
		tracer:  tracer,
	}
}

// Register admits a tool. It fails synchronously if the name is blank, is
// already registered, or the tool's declared return schema fails JSON-Schema
// validation. A failed registration does not mutate the registry.
func (r *Registry) Register(ctx context.Context, def Definition, call CallFunc) error {
	_, span := r.tracer.Start(ctx, "registry.register", trace.WithAttributes(attribute.String("tool", def.Name)))
	defer span.End()

	if def.Name == "" {
		err := errs.New(errs.KindValidation, "tool name is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing name")
		return err
	}
	if call == nil {
		err := errs.New(errs.KindValidation, "tool call implementation is required").WithField("tool", def.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing call")
		return err
	}
	if def.DeclaredReturn != nil {
		if err := validateShapeSchema(def.Name, def.DeclaredReturn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid declared return schema")
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[def.Name]; exists {
		err := errs.New(errs.KindValidation, "tool already registered").WithField("tool", def.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "duplicate name")
		return err
	}
	for _, alias := range def.Aliases {
		if _, exists := r.aliases[alias]; exists {
			err := errs.New(errs.KindValidation, "alias already registered").WithField("alias", alias)
			span.RecordError(err)
			span.SetStatus(codes.Error, "duplicate alias")
			return err
		}
	}

	r.records[def.Name] = &Record{Definition: def, Call: call}
	for _, alias := range def.Aliases {
		r.aliases[alias] = def.Name
	}
	if def.DeclaredReturn != nil {
		r.Schema.RegisterDeclared(def.Name, def.DeclaredReturn)
	}
	span.SetStatus(codes.Ok, "registered")
	return nil
}

// GetTool returns the record registered under name, if any.
func (r *Registry) GetTool(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// GetToolByAlias resolves an alias to its canonical record.
func (r *Registry) GetToolByAlias(alias string) (*Record, bool) {
	r.mu.RLock()
	name, ok := r.aliases[alias]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.GetTool(name)
}

// GetAllTools returns every registered record.
func (r *Registry) GetAllTools() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// GetToolsForLanguage filters GetAllTools by the tool's declared supported
// language set. A tool with no declared languages supports every language.
func (r *Registry) GetToolsForLanguage(lang string) []*Record {
	all := r.GetAllTools()
	out := make([]*Record, 0, len(all))
	for _, rec := range all {
		if len(rec.Definition.Meta.Languages) == 0 {
			out = append(out, rec)
			continue
		}
		for _, l := range rec.Definition.Meta.Languages {
			if l == lang {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// GetToolDefinition returns the structured definition for name.
func (r *Registry) GetToolDefinition(name string) (Definition, bool) {
	rec, ok := r.GetTool(name)
	if !ok {
		return Definition{}, false
	}
	return rec.Definition, true
}

// GetReturnSchema returns the effective return schema for name.
func (r *Registry) GetReturnSchema(name string) (*ReturnSchema, bool) {
	return r.Schema.Get(name)
}

// CallTool invokes the registered tool's implementation and folds the
// result into the schema registry. This is the one-lookup-per-call path
// used directly by React-mode tool calls; the code-acting bridge (C2) uses
// the same registry but layers its own proxy semantics on top.
func (r *Registry) CallTool(ctx context.Context, name string, argsJSON []byte) (resultJSON []byte, err error) {
	_, span := r.tracer.Start(ctx, "registry.call_tool", trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	rec, ok := r.GetTool(name)
	if !ok {
		err := errs.New(errs.KindValidation, fmt.Sprintf("unknown tool %q", name))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown tool")
		return nil, err
	}
	result, success, callErr := rec.Call(ctx, argsJSON)
	go r.Schema.Observe(context.WithoutCancel(ctx), name, result, success && callErr == nil)
	if callErr != nil {
		wrapped := errs.Wrap(errs.KindToolExecution, "tool call failed", callErr).WithField("tool", name)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, "tool call failed")
		return nil, wrapped
	}
	span.SetStatus(codes.Ok, "ok")
	return result, nil
}
