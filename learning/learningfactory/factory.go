// Package learningfactory wires the learning pool backend named by config,
// selecting between the in-memory Pool and the Redis-backed queue/worker
// pair. Lives apart from package learning to avoid learning depending on
// the optional redis client.
package learningfactory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/agentruntime/core/config"
	"github.com/agentruntime/core/learning"
	"github.com/agentruntime/core/learning/redisqueue"
	"github.com/agentruntime/core/telemetry"
)

// AsyncBackend is what either backend exposes to a Loop: a way to enqueue
// work, plus a way to shut down cleanly.
type AsyncBackend interface {
	Submit(tc learning.TriggerContext)
	Close()
}

// memoryBackend adapts *learning.Pool to AsyncBackend (Pool.Submit takes a
// context; this runtime always submits with context.Background() since
// async extraction must outlive the originating turn's request context).
type memoryBackend struct{ pool *learning.Pool }

func (b memoryBackend) Submit(tc learning.TriggerContext) { b.pool.Submit(context.Background(), tc) }
func (b memoryBackend) Close()                            { b.pool.Close() }

// redisBackend adapts a Queue+Worker pair to AsyncBackend.
type redisBackend struct {
	queue  *redisqueue.Queue
	cancel context.CancelFunc
}

func (b redisBackend) Submit(tc learning.TriggerContext) {
	_ = b.queue.Push(context.Background(), tc)
}
func (b redisBackend) Close() { b.cancel() }

// New constructs the configured async backend. extractor/repo are shared
// by both the in-memory and Redis-backed workers.
func New(cfg config.Learning, extractor learning.Extractor, repo *learning.Repository, logger telemetry.Logger) (AsyncBackend, error) {
	limiter := newLimiter(cfg)
	switch cfg.PoolBackend {
	case "", "memory":
		var opts []learning.Option
		if limiter != nil {
			opts = append(opts, learning.WithRateLimit(limiter))
		}
		pool := learning.NewPool(extractor, repo, cfg.PoolSize, cfg.QueueCapacity, logger, opts...)
		return memoryBackend{pool: pool}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		queue := redisqueue.NewQueue(client, cfg.Redis.KeyPrefix, int64(cfg.QueueCapacity), logger)
		ctx, cancel := context.WithCancel(context.Background())
		for i := 0; i < cfg.PoolSize; i++ {
			worker := redisqueue.NewWorker(queue, extractor, repo, logger, limiter)
			go worker.Run(ctx)
		}
		return redisBackend{queue: queue, cancel: cancel}, nil
	default:
		return nil, fmt.Errorf("learningfactory: unknown pool backend %q", cfg.PoolBackend)
	}
}

// newLimiter builds the shared rate limiter bounding dispatch into the
// learning pool from cfg, or nil when unconfigured (unlimited dispatch).
func newLimiter(cfg config.Learning) *rate.Limiter {
	if cfg.RateLimitPerSecond <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst)
}
