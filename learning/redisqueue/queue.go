// Package redisqueue provides a Redis-backed alternative to learning.Pool's
// in-memory queue, for multi-process deployments where the async learning
// backlog must survive a single process restart (spec.md §9 Asynchronous
// learning; SPEC_FULL.md §4.5 expansion).
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/agentruntime/core/learning"
	"github.com/agentruntime/core/state"
	"github.com/agentruntime/core/telemetry"
)

// payload is the JSON-serializable form of a learning.TriggerContext
// queued onto Redis; TriggerContext's *state.Map isn't serializable, so
// only the parts the extractor actually reads are carried across the wire.
type payload struct {
	FiredAt           string                      `json:"fired_at"`
	ConversationTurns []learning.ConversationTurn `json:"conversation_turns"`
	ToolCalls         []learning.ToolCallTrace    `json:"tool_calls"`
	GeneratedCode     []string                    `json:"generated_code"`
}

// Queue is a Redis list used as a bounded FIFO queue with drop-oldest
// backpressure, mirroring learning.Pool's semantics across processes.
type Queue struct {
	client   *redis.Client
	key      string
	capacity int64
	logger   telemetry.Logger
}

// NewQueue constructs a Queue using keyPrefix+":learning:queue" as the
// Redis list key.
func NewQueue(client *redis.Client, keyPrefix string, capacity int64, logger telemetry.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Queue{client: client, key: keyPrefix + ":learning:queue", capacity: capacity, logger: logger}
}

// Push enqueues tc, trimming the oldest entry if the queue is at capacity
// (drop-oldest backpressure, matching learning.Pool).
func (q *Queue) Push(ctx context.Context, tc learning.TriggerContext) error {
	p := payload{
		FiredAt:           tc.FiredAt,
		ConversationTurns: tc.ConversationTurns,
		ToolCalls:         tc.ToolCalls,
	}
	if tc.State != nil {
		if code, ok := tc.State.Get("generated_code"); ok {
			if list, ok := code.([]string); ok {
				p.GeneratedCode = list
			}
		}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, q.key, data)
	pipe.LTrim(ctx, q.key, -q.capacity, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// Pop blocks until an entry is available or ctx is done, returning the
// decoded trigger context. Only the queued generated code survives the
// Redis round trip as state: when it is non-empty, the returned
// TriggerContext.State is a fresh map holding it under
// state.KeyGeneratedCode; otherwise State is nil.
func (q *Queue) Pop(ctx context.Context) (learning.TriggerContext, error) {
	res, err := q.client.BLPop(ctx, 0, q.key).Result()
	if err != nil {
		return learning.TriggerContext{}, err
	}
	if len(res) != 2 {
		return learning.TriggerContext{}, errors.New("redisqueue: unexpected BLPOP reply shape")
	}
	var p payload
	if err := json.Unmarshal([]byte(res[1]), &p); err != nil {
		return learning.TriggerContext{}, err
	}
	tc := learning.TriggerContext{
		FiredAt:           p.FiredAt,
		ConversationTurns: p.ConversationTurns,
		ToolCalls:         p.ToolCalls,
	}
	if len(p.GeneratedCode) > 0 {
		tc.State = state.NewFromMap(map[string]any{state.KeyGeneratedCode: p.GeneratedCode})
	}
	return tc, nil
}

// Len reports the current queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Worker drains a Queue, running each popped task through its own extractor
// and repository and logging failures; it does not use learning.Pool or its
// in-memory channel.
type Worker struct {
	queue     *Queue
	extractor learning.Extractor
	repo      *learning.Repository
	logger    telemetry.Logger
	limiter   *rate.Limiter // nil means unlimited dispatch
}

// NewWorker constructs a Worker. limiter may be nil for unlimited dispatch.
func NewWorker(queue *Queue, extractor learning.Extractor, repo *learning.Repository, logger telemetry.Logger, limiter *rate.Limiter) *Worker {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Worker{queue: queue, extractor: extractor, repo: repo, logger: logger, limiter: limiter}
}

// Run pops and processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		tc, err := w.queue.Pop(popCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
				continue
			}
			w.logger.Error(ctx, "redisqueue worker pop failed", "err", err)
			continue
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				continue
			}
		}
		experiences, err := w.extractor.Extract(ctx, tc)
		if err != nil {
			w.logger.Error(ctx, "redisqueue async extraction failed", "err", err)
			continue
		}
		if len(experiences) == 0 {
			continue
		}
		if err := w.repo.SaveBatch(ctx, experiences); err != nil {
			w.logger.Error(ctx, "redisqueue failed to persist extracted experiences", "err", err)
		}
	}
}
