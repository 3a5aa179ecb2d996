// Package learning implements the Learning & Experience Loop (C5): a
// trigger-decision strategy, prompt assembly for an LLM judge, sync/async
// execution, and a façade that persists extracted experiences through C6
// (spec.md §4.5).
package learning

import (
	"context"

	"github.com/agentruntime/core/experience"
	"github.com/agentruntime/core/state"
)

// TriggerContext is what a Strategy examines to decide whether a turn
// carries reusable signal.
type TriggerContext struct {
	FiredAt           string // "AFTER_AGENT" or "AFTER_MODEL"
	ConversationTurns []ConversationTurn
	ToolCalls         []ToolCallTrace
	State             *state.Map
}

// ConversationTurn is one exchange in the turn's transcript.
type ConversationTurn struct {
	Role    string
	Content string
}

// ToolCallTrace summarizes a single tool invocation for extraction
// ("tool name + success flag", spec.md §4.5).
type ToolCallTrace struct {
	ToolName string
	Success  bool
}

// Decision is what a Strategy returns: whether to learn, and whether to do
// so synchronously or asynchronously.
type Decision struct {
	ShouldLearn bool
	Async       bool
}

// Strategy decides whether a turn should be learned from.
type Strategy interface {
	Decide(ctx context.Context, tc TriggerContext) Decision
}

// StrategyFunc adapts a function into a Strategy.
type StrategyFunc func(ctx context.Context, tc TriggerContext) Decision

func (f StrategyFunc) Decide(ctx context.Context, tc TriggerContext) Decision { return f(ctx, tc) }

// DefaultStrategy requires at least one of: generated code present, tool
// calls present, execution history present, or non-trivial conversation
// (spec.md §4.5 Trigger decision). It always recommends async execution;
// callers needing synchronous extraction use a custom Strategy.
var DefaultStrategy Strategy = StrategyFunc(func(_ context.Context, tc TriggerContext) Decision {
	hasGeneratedCode := false
	if tc.State != nil {
		if code, ok := tc.State.Get(state.KeyGeneratedCode); ok {
			if list, ok := code.([]string); ok {
				hasGeneratedCode = len(list) > 0
			} else {
				hasGeneratedCode = code != nil
			}
		}
	}
	hasToolCalls := len(tc.ToolCalls) > 0
	hasExecutionHistory := false
	if tc.State != nil {
		hasExecutionHistory = tc.State.Has(state.KeyExecutionHistory)
	}
	nonTrivialConversation := len(tc.ConversationTurns) >= 2

	shouldLearn := hasGeneratedCode || hasToolCalls || hasExecutionHistory || nonTrivialConversation
	return Decision{ShouldLearn: shouldLearn, Async: true}
})

// Extractor is the seam that turns a TriggerContext into candidate
// experiences via an LLM judge.
type Extractor interface {
	Extract(ctx context.Context, tc TriggerContext) ([]*experience.Experience, error)
}

// Repository is the learning-repository façade: save/saveBatch delegate to
// C6's experience.Store, exposing the concrete Experience type so
// strategies can match repositories by type (spec.md §4.5 Persistence).
type Repository struct {
	store experience.Store
}

// NewRepository constructs a Repository backed by store.
func NewRepository(store experience.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Save(ctx context.Context, e *experience.Experience) error {
	return r.store.Save(ctx, e)
}

func (r *Repository) SaveBatch(ctx context.Context, es []*experience.Experience) error {
	return r.store.BatchSave(ctx, es)
}

// Search is declared for the façade's Repository-matching contract but
// always returns an empty sequence: spec.md §9 Open Questions leaves
// learning-repository search unspecified, and no component in this runtime
// exercises full-text/semantic search over experiences yet. Returning an
// empty slice (rather than an error) keeps the façade's surface usable by
// callers that probe it speculatively.
func (r *Repository) Search(context.Context, string) ([]*experience.Experience, error) {
	return nil, nil
}
