package evaldag

import (
	"context"
	"sync"
	"time"

	"github.com/agentruntime/core/errs"
	"github.com/agentruntime/core/state"
	"github.com/agentruntime/core/telemetry"
)

// Runner executes compiled DAGs against a shared Pool.
type Runner struct {
	pool           *Pool
	defaultTimeout time.Duration
	logger         telemetry.Logger
	tracer         telemetry.Tracer
}

// NewRunner constructs a Runner. defaultTimeout applies to any criterion
// that doesn't declare its own Timeout.
func NewRunner(pool *Pool, defaultTimeout time.Duration, logger telemetry.Logger, tracer telemetry.Tracer) *Runner {
	if pool == nil {
		pool = NewPool(1)
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Runner{pool: pool, defaultTimeout: defaultTimeout, logger: logger, tracer: tracer}
}

// Run executes dag to completion, writing each criterion's result to
// `<name>_result` in turnState as it completes (spec.md §4.4), and returns
// the aggregated SuiteResult. Cancelling ctx aborts any criterion still
// running at its next suspension point (best-effort, via context
// propagation) and marks every not-yet-started criterion SKIPPED.
func (r *Runner) Run(ctx context.Context, dag *DAG, evalCtx *Context, turnState *state.Map) *SuiteResult {
	ctx, span := r.tracer.Start(ctx, "evaldag.run")
	defer span.End()

	if turnState == nil {
		turnState = state.New()
	}

	start := time.Now()
	indegree := dag.indegree()

	var mu sync.Mutex
	results := make(map[string]Result, len(dag.order))
	var wg sync.WaitGroup
	wg.Add(len(dag.order))

	var dispatch func(name string)
	dispatch = func(name string) {
		go r.runCriterion(ctx, dag, name, evalCtx, turnState, &mu, results, indegree, &wg, dispatch)
	}

	for _, succ := range dag.nodes[startNode].successors {
		dispatch(succ)
	}

	wg.Wait()

	end := time.Now()
	stats := Statistics{Total: len(results)}
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			stats.SuccessCount++
		case StatusFailed:
			stats.FailedCount++
		case StatusSkipped:
			stats.SkippedCount++
		case StatusTimeout:
			stats.TimeoutCount++
		case StatusError:
			stats.ErrorCount++
		}
	}

	return &SuiteResult{
		SuiteID:         dag.suiteID,
		CriteriaResults: results,
		Statistics:      stats,
		StartTime:       start,
		EndTime:         end,
	}
}

// runCriterion executes one node, then propagates readiness to successors
// whose indegree has dropped to zero.
func (r *Runner) runCriterion(
	ctx context.Context,
	dag *DAG,
	name string,
	evalCtx *Context,
	turnState *state.Map,
	mu *sync.Mutex,
	results map[string]Result,
	indegree map[string]int,
	wg *sync.WaitGroup,
	dispatch func(string),
) {
	defer wg.Done()

	n := dag.nodes[name]
	res := Result{Name: name, StartTime: time.Now()}

	select {
	case <-ctx.Done():
		res.Status = StatusSkipped
		res.EndTime = res.StartTime
	default:
		res = r.evaluate(ctx, name, n.criterion, evalCtx, mu, results)
	}

	mu.Lock()
	results[name] = res
	mu.Unlock()

	turnState.Set(name+"_result", res)

	mu.Lock()
	ready := make([]string, 0, len(n.successors))
	for _, succ := range n.successors {
		indegree[succ]--
		if indegree[succ] == 0 {
			ready = append(ready, succ)
		}
	}
	mu.Unlock()

	for _, succ := range ready {
		dispatch(succ)
	}
}

// evaluate runs a single criterion's evaluator under its resolved timeout,
// gathering its predecessor results and converting panics/timeouts into the
// appropriate status (spec.md §4.4 Per-criterion evaluator contract).
func (r *Runner) evaluate(ctx context.Context, name string, c Criterion, evalCtx *Context, mu *sync.Mutex, results map[string]Result) Result {
	start := time.Now()
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mu.Lock()
	predecessors := make(map[string]Result, len(c.DependsOn))
	for _, dep := range c.DependsOn {
		if res, ok := results[dep]; ok {
			predecessors[dep] = res
		}
	}
	mu.Unlock()

	if err := r.pool.acquire(runCtx); err != nil {
		status := StatusSkipped
		if runCtx.Err() == context.DeadlineExceeded {
			status = StatusTimeout
		}
		return Result{Name: name, Status: status, StartTime: start, EndTime: time.Now()}
	}
	defer r.pool.release()

	type outcome struct {
		value     any
		reasoning string
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: errs.New(errs.KindEvaluator, "criterion panicked").WithField("criterion", name).WithField("panic", rec)}
			}
		}()
		value, reasoning, err := c.Evaluator.Evaluate(runCtx, evalCtx, predecessors, c.Config)
		done <- outcome{value: value, reasoning: reasoning, err: err}
	}()

	select {
	case <-runCtx.Done():
		if runCtx.Err() == context.DeadlineExceeded {
			r.logger.Warn(ctx, "criterion timed out", "criterion", name, "timeout", timeout.String())
			return Result{Name: name, Status: StatusTimeout, StartTime: start, EndTime: time.Now()}
		}
		return Result{Name: name, Status: StatusSkipped, StartTime: start, EndTime: time.Now()}
	case out := <-done:
		end := time.Now()
		if out.err != nil {
			r.logger.Error(ctx, "criterion failed", "criterion", name, "err", out.err)
			return Result{Name: name, Status: StatusError, StartTime: start, EndTime: end, Err: out.err}
		}
		return Result{Name: name, Status: StatusSuccess, Value: out.value, Reasoning: out.reasoning, StartTime: start, EndTime: end}
	}
}
