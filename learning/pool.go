package learning

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/agentruntime/core/errs"
	"github.com/agentruntime/core/hooks"
	"github.com/agentruntime/core/state"
	"github.com/agentruntime/core/telemetry"
)

// task is one queued asynchronous extraction job.
type task struct {
	ctx context.Context
	tc  TriggerContext
}

// Pool runs extraction asynchronously on a bounded worker pool distinct
// from the agent's own goroutine, so learning cannot starve turns (spec.md
// §4.5 Execution mode, §5 Learning pool). The queue applies drop-oldest
// backpressure once full.
type Pool struct {
	extractor  Extractor
	repository *Repository
	logger     telemetry.Logger
	limiter    *rate.Limiter // nil means unlimited dispatch

	mu      sync.Mutex
	queue   chan task
	workers int

	wg sync.WaitGroup
}

// Option configures optional Pool behavior.
type Option func(*Pool)

// WithRateLimit bounds how fast queued extractions are dispatched to the
// judge model: each worker waits on limiter before running an extraction,
// so a burst of turns firing the learning loop doesn't translate into a
// burst of judge calls (SPEC_FULL.md §6 `learning.pool.rateLimitPerSecond`).
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(p *Pool) { p.limiter = limiter }
}

// NewPool constructs a Pool with workers goroutines draining a queue of
// capacity queueCapacity.
func NewPool(extractor Extractor, repository *Repository, workers, queueCapacity int, logger telemetry.Logger, opts ...Option) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	p := &Pool{
		extractor:  extractor,
		repository: repository,
		logger:     logger,
		queue:      make(chan task, queueCapacity),
		workers:    workers,
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Pool) drain() {
	defer p.wg.Done()
	for t := range p.queue {
		if p.limiter != nil {
			if err := p.limiter.Wait(t.ctx); err != nil {
				p.logger.Warn(t.ctx, "learning pool rate limiter wait aborted", "err", err)
				continue
			}
		}
		p.runExtraction(t.ctx, t.tc)
	}
}

// Submit enqueues tc for asynchronous extraction. If the queue is full, the
// oldest queued task is dropped to make room (drop-oldest backpressure);
// the dropped task's failure is logged, never propagated to the caller.
func (p *Pool) Submit(ctx context.Context, tc TriggerContext) {
	t := task{ctx: ctx, tc: tc}
	select {
	case p.queue <- t:
		return
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case dropped := <-p.queue:
		p.logger.Warn(ctx, "learning pool queue full, dropping oldest task", "fired_at", dropped.tc.FiredAt)
	default:
	}
	select {
	case p.queue <- t:
	default:
		p.logger.Warn(ctx, "learning pool queue full after eviction, dropping new task", "fired_at", tc.FiredAt)
	}
}

// Close stops accepting new tasks and waits for in-flight workers to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) runExtraction(ctx context.Context, tc TriggerContext) {
	experiences, err := p.extractor.Extract(ctx, tc)
	if err != nil {
		p.logger.Error(ctx, "async experience extraction failed", "err", err)
		return
	}
	if len(experiences) == 0 {
		return
	}
	if err := p.repository.SaveBatch(ctx, experiences); err != nil {
		p.logger.Error(ctx, "failed to persist extracted experiences", "err", err)
	}
}

// Loop is the top-level entry point invoked from AFTER_AGENT/AFTER_MODEL
// hooks: it asks strategy whether to learn, and if so runs extraction
// either synchronously (blocking until the extractor returns or fails,
// logging the failure) or by submitting to pool (spec.md §4.5 Execution
// mode).
type Loop struct {
	strategy   Strategy
	extractor  Extractor
	repository *Repository
	pool       *Pool
	logger     telemetry.Logger
}

// NewLoop constructs a Loop. pool may be nil if async learning is never
// used (every Decision.Async == false).
func NewLoop(strategy Strategy, extractor Extractor, repository *Repository, pool *Pool, logger telemetry.Logger) *Loop {
	if strategy == nil {
		strategy = DefaultStrategy
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Loop{strategy: strategy, extractor: extractor, repository: repository, pool: pool, logger: logger}
}

// Run executes the trigger decision and, if it says to learn, runs
// extraction synchronously or asynchronously per the decision.
func (l *Loop) Run(ctx context.Context, tc TriggerContext) error {
	decision := l.strategy.Decide(ctx, tc)
	if !decision.ShouldLearn {
		return nil
	}
	if decision.Async {
		if l.pool == nil {
			return errs.New(errs.KindLearning, "async learning requested but no pool is configured")
		}
		l.pool.Submit(ctx, tc)
		return nil
	}

	experiences, err := l.extractor.Extract(ctx, tc)
	if err != nil {
		l.logger.Error(ctx, "sync experience extraction failed", "err", err)
		return errs.Wrap(errs.KindLearning, "synchronous extraction failed", err)
	}
	if len(experiences) == 0 {
		return nil
	}
	if err := l.repository.SaveBatch(ctx, experiences); err != nil {
		l.logger.Error(ctx, "failed to persist extracted experiences", "err", err)
		return errs.Wrap(errs.KindLearning, "failed to persist extracted experiences", err)
	}
	return nil
}

var _ hooks.Subscriber = (*Loop)(nil)

// HandleEvent adapts Loop to hooks.Subscriber: registering a Loop with a
// hooks.Bus (via Bus.Register) lets AFTER_AGENT/AFTER_MODEL hook-pipeline
// completion drive learning without the pipeline importing this package
// (SPEC_FULL.md §4.3, spec.md §4.5).
func (l *Loop) HandleEvent(ctx context.Context, event hooks.Event) error {
	return l.Run(ctx, TriggerContext{
		FiredAt: event.Type,
		State:   state.NewFromMap(event.State),
	})
}
