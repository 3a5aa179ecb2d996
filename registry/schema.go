package registry

import (
	"context"
	"sync"
	"time"

	"github.com/agentruntime/core/telemetry"
)

// SchemaRegistry holds the declared and effective (declared ⊔ observed)
// return schemas for every tool. Mutations are serialized per tool name;
// reads take a shared read lock (they are not lock-free) and return cloned
// snapshots.
type SchemaRegistry struct {
	mu       sync.RWMutex
	declared map[string]*ReturnSchema
	effective map[string]*ReturnSchema

	locks sync.Map // per-tool-name *sync.Mutex, for serializing observe/register

	logger telemetry.Logger
	tracer telemetry.Tracer
}

// NewSchemaRegistry constructs an empty schema registry.
func NewSchemaRegistry(logger telemetry.Logger, tracer telemetry.Tracer) *SchemaRegistry {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &SchemaRegistry{
		declared:  make(map[string]*ReturnSchema),
		effective: make(map[string]*ReturnSchema),
		logger:    logger,
		tracer:    tracer,
	}
}

func (r *SchemaRegistry) lockFor(name string) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// RegisterDeclared seeds both the declared and effective mappings for name
// with schema, sourced as {DECLARED}. A nil schema is a no-op (tools may
// register without a declared return schema, per spec.md §3).
func (r *SchemaRegistry) RegisterDeclared(name string, schema *Shape) {
	if schema == nil {
		return
	}
	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	rs := &ReturnSchema{Success: cloneShape(schema), LastUpdatedAt: time.Now()}
	rs.addSource(SourceDeclared)

	r.mu.Lock()
	r.declared[name] = rs
	r.effective[name] = cloneReturnSchema(rs)
	r.mu.Unlock()
}

// Observe folds a tool call's payload into the effective schema for name.
// success selects whether the payload refines Success or Error. Observation
// is best-effort: malformed payloads degrade to an optional-unknown shape
// rather than propagating an error to the caller (spec.md §4.1 "Observation
// errors are swallowed").
func (r *SchemaRegistry) Observe(ctx context.Context, name string, payload []byte, success bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "schema observation panicked", "tool", name, "recover", rec)
		}
	}()

	_, span := r.tracer.Start(ctx, "registry.schema.observe")
	defer span.End()

	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	observed := shapeFromJSON(payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.effective[name]
	if !ok {
		rs = &ReturnSchema{}
	} else {
		rs = cloneReturnSchema(rs)
	}
	if success {
		rs.Success = mergeShapeOrNil(rs.Success, observed)
	} else {
		rs.Error = mergeShapeOrNil(rs.Error, observed)
	}
	rs.ObservationCount++
	rs.LastUpdatedAt = time.Now()
	rs.addSource(SourceObserved)
	r.effective[name] = rs
}

func mergeShapeOrNil(current, next *Shape) *Shape {
	if current == nil {
		return next
	}
	return mergeShape(current, next)
}

// ClearObserved reverts the effective schema for name back to its declared
// schema (or removes it entirely if nothing was ever declared).
func (r *SchemaRegistry) ClearObserved(name string) {
	lock := r.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.declared[name]; ok {
		r.effective[name] = cloneReturnSchema(d)
	} else {
		delete(r.effective, name)
	}
}

// ClearAllObserved reverts every tool's effective schema back to declared.
func (r *SchemaRegistry) ClearAllObserved() {
	r.mu.Lock()
	names := make([]string, 0, len(r.effective))
	for name := range r.effective {
		names = append(names, name)
	}
	r.mu.Unlock()
	for _, name := range names {
		r.ClearObserved(name)
	}
}

// Get returns a snapshot of the effective return schema for name.
func (r *SchemaRegistry) Get(name string) (*ReturnSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.effective[name]
	if !ok {
		return nil, false
	}
	return cloneReturnSchema(rs), true
}

func cloneReturnSchema(rs *ReturnSchema) *ReturnSchema {
	if rs == nil {
		return nil
	}
	out := &ReturnSchema{
		Success:          cloneShape(rs.Success),
		Error:            cloneShape(rs.Error),
		Description:      rs.Description,
		TypeHint:         rs.TypeHint,
		ObservationCount: rs.ObservationCount,
		LastUpdatedAt:    rs.LastUpdatedAt,
	}
	if rs.Sources != nil {
		out.Sources = make(map[Source]struct{}, len(rs.Sources))
		for s := range rs.Sources {
			out.Sources[s] = struct{}{}
		}
	}
	return out
}
