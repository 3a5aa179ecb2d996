// Package evaldag implements the Evaluation DAG (C4): compilation of an
// evaluation suite into a dependency graph rooted at a synthetic START node,
// bounded-parallel execution, and per-criterion timeout/exception isolation
// (spec.md §4.4).
package evaldag

import (
	"context"
	"time"
)

// Status is the outcome of a single criterion execution.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
	StatusTimeout Status = "TIMEOUT"
	StatusError   Status = "ERROR"
)

// Result is what a single criterion execution publishes to state under
// `<criterion_name>_result`.
type Result struct {
	Name      string
	Status    Status
	Value     any
	Reasoning string
	StartTime time.Time
	EndTime   time.Time
	Err       error
}

// Evaluator is the per-criterion evaluation contract: given the read-only
// context, the results of the criterion's declared dependencies (keyed by
// dependency name), and the criterion's config bag, produce a value and
// optional reasoning.
type Evaluator interface {
	Evaluate(ctx context.Context, evalCtx *Context, predecessors map[string]Result, config map[string]any) (value any, reasoning string, err error)
}

// EvaluatorFunc adapts a plain function into an Evaluator.
type EvaluatorFunc func(ctx context.Context, evalCtx *Context, predecessors map[string]Result, config map[string]any) (any, string, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, evalCtx *Context, predecessors map[string]Result, config map[string]any) (any, string, error) {
	return f(ctx, evalCtx, predecessors, config)
}

// Criterion is one node in the suite, naming its dependencies, evaluator,
// per-node config, and an optional timeout override.
type Criterion struct {
	Name         string
	DependsOn    []string
	Evaluator    Evaluator
	Config       map[string]any
	Timeout      time.Duration // zero means use the Runner's default timeout
}

// Suite is the compile-time input: a named set of criteria.
type Suite struct {
	ID         string
	Criteria   []Criterion
}

// Context is the read-only evaluation context threaded through every
// criterion's Evaluate call: the suite handle and whatever evaluation
// artifacts the caller supplies (turn transcript, generated code, etc).
type Context struct {
	SuiteID   string
	Artifacts map[string]any
}

// Statistics summarizes per-status counts across a suite run.
type Statistics struct {
	Total         int
	SuccessCount  int
	FailedCount   int
	SkippedCount  int
	TimeoutCount  int
	ErrorCount    int
}

// SuiteResult is the aggregated outcome of a suite run.
type SuiteResult struct {
	SuiteID        string
	CriteriaResults map[string]Result
	Statistics     Statistics
	StartTime      time.Time
	EndTime        time.Time
}
