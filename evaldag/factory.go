package evaldag

import (
	"time"

	"github.com/agentruntime/core/config"
	"github.com/agentruntime/core/telemetry"
)

// NewRunnerFromConfig builds a Pool and Runner sized from cfg
// (SPEC_FULL.md §6 `evaluation.poolSize` / `evaluation.criterionDefaultTimeoutMs`).
func NewRunnerFromConfig(cfg config.Evaluation, logger telemetry.Logger, tracer telemetry.Tracer) *Runner {
	size := cfg.PoolSize
	if size < 1 {
		size = 8
	}
	timeoutMs := cfg.CriterionDefaultTimeoutMs
	if timeoutMs < 1 {
		timeoutMs = 30_000
	}
	pool := NewPool(int64(size))
	return NewRunner(pool, time.Duration(timeoutMs)*time.Millisecond, logger, tracer)
}
