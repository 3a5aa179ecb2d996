package learning

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/agentruntime/core/experience"
	"github.com/agentruntime/core/hooks"
	"github.com/agentruntime/core/state"
)

func TestDefaultStrategyRequiresSignal(t *testing.T) {
	empty := TriggerContext{State: state.New()}
	require.False(t, DefaultStrategy.Decide(context.Background(), empty).ShouldLearn)

	withToolCalls := TriggerContext{State: state.New(), ToolCalls: []ToolCallTrace{{ToolName: "reply", Success: true}}}
	require.True(t, DefaultStrategy.Decide(context.Background(), withToolCalls).ShouldLearn)

	withConversation := TriggerContext{
		State: state.New(),
		ConversationTurns: []ConversationTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	require.True(t, DefaultStrategy.Decide(context.Background(), withConversation).ShouldLearn)
}

func TestBuildExtractionPromptTruncatesAndLimitsEntries(t *testing.T) {
	st := state.New()
	st.Set(state.KeyGeneratedCode, []string{strings.Repeat("a", 600), "short", "third-dropped"})

	tc := TriggerContext{
		State: st,
		ConversationTurns: []ConversationTurn{
			{Role: "user", Content: "turn1"},
			{Role: "assistant", Content: "turn2"},
			{Role: "user", Content: "turn3"},
			{Role: "assistant", Content: "turn4"},
			{Role: "user", Content: "turn5"},
		},
		ToolCalls: []ToolCallTrace{{ToolName: "reply", Success: true}, {ToolName: "search", Success: false}},
	}

	prompt := BuildExtractionPrompt(tc)
	require.Contains(t, prompt, "## Generated code")
	require.Contains(t, prompt, "1. ")
	require.Contains(t, prompt, "2. short")
	require.NotContains(t, prompt, "third-dropped")
	require.NotContains(t, prompt, "turn1") // oldest of 5 turns, beyond the last-4 window
	require.Contains(t, prompt, "turn2")
	require.Contains(t, prompt, "turn5")
	require.Contains(t, prompt, "reply: succeeded")
	require.Contains(t, prompt, "search: failed")
}

func TestTruncateDoesNotSplitMultiByteRune(t *testing.T) {
	s := strings.Repeat("a", 9) + "日本語" // each CJK rune is 3 bytes
	got := truncate(s, 10)
	require.True(t, strings.HasPrefix(got, strings.Repeat("a", 9)))
	require.Contains(t, got, "...")
	// every rune in the result (minus the suffix) must be valid UTF-8
	require.True(t, utf8.ValidString(strings.TrimSuffix(got, "...")))
}

func TestParseJudgeResponseAddsScopeAndTag(t *testing.T) {
	experiences, err := ParseJudgeResponse(`[{"type":"CODE","title":"t","content":"c","language":"go","tags":["x"]}]`)
	require.NoError(t, err)
	require.Len(t, experiences, 1)
	require.Equal(t, experience.ScopeGlobal, experiences[0].Scope)
	require.Contains(t, experiences[0].Tags, "llm_generated")
	require.Contains(t, experiences[0].Tags, "x")
	require.False(t, experiences[0].CreatedAt.IsZero())
}

func TestParseJudgeResponseEmptyArray(t *testing.T) {
	experiences, err := ParseJudgeResponse(`[]`)
	require.NoError(t, err)
	require.Empty(t, experiences)
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	out   []*experience.Experience
	err   error
}

func (f *fakeExtractor) Extract(context.Context, TriggerContext) ([]*experience.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.out, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestLoopSyncPersistsThroughRepository(t *testing.T) {
	store := experience.NewMemoryStore()
	repo := NewRepository(store)
	extractor := &fakeExtractor{out: []*experience.Experience{{Type: experience.TypeCommon, Scope: experience.ScopeGlobal, Title: "x"}}}
	strategy := StrategyFunc(func(context.Context, TriggerContext) Decision { return Decision{ShouldLearn: true, Async: false} })

	loop := NewLoop(strategy, extractor, repo, nil, nil)
	require.NoError(t, loop.Run(context.Background(), TriggerContext{}))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestLoopSkipsWhenStrategySaysNo(t *testing.T) {
	extractor := &fakeExtractor{}
	strategy := StrategyFunc(func(context.Context, TriggerContext) Decision { return Decision{ShouldLearn: false} })
	loop := NewLoop(strategy, extractor, nil, nil, nil)
	require.NoError(t, loop.Run(context.Background(), TriggerContext{}))
	require.Equal(t, 0, extractor.callCount())
}

func TestLoopAsyncSubmitsToPool(t *testing.T) {
	store := experience.NewMemoryStore()
	repo := NewRepository(store)
	done := make(chan struct{})
	extractor := extractorFunc(func(context.Context, TriggerContext) ([]*experience.Experience, error) {
		defer close(done)
		return []*experience.Experience{{Type: experience.TypeCommon, Scope: experience.ScopeGlobal}}, nil
	})
	pool := NewPool(extractor, repo, 1, 4, nil)
	defer pool.Close()

	strategy := StrategyFunc(func(context.Context, TriggerContext) Decision { return Decision{ShouldLearn: true, Async: true} })
	loop := NewLoop(strategy, extractor, repo, pool, nil)
	require.NoError(t, loop.Run(context.Background(), TriggerContext{}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async extraction did not run")
	}
}

type extractorFunc func(context.Context, TriggerContext) ([]*experience.Experience, error)

func (f extractorFunc) Extract(ctx context.Context, tc TriggerContext) ([]*experience.Experience, error) {
	return f(ctx, tc)
}

func TestPoolDropsOldestWhenQueueFull(t *testing.T) {
	store := experience.NewMemoryStore()
	repo := NewRepository(store)
	block := make(chan struct{})
	var processed []string
	var mu sync.Mutex

	extractor := extractorFunc(func(_ context.Context, tc TriggerContext) ([]*experience.Experience, error) {
		<-block
		mu.Lock()
		processed = append(processed, tc.FiredAt)
		mu.Unlock()
		return nil, nil
	})

	pool := NewPool(extractor, repo, 1, 1, nil)
	pool.Submit(context.Background(), TriggerContext{FiredAt: "first"})  // consumed by the single worker, which then blocks
	time.Sleep(20 * time.Millisecond)
	pool.Submit(context.Background(), TriggerContext{FiredAt: "second"}) // fills the 1-capacity queue
	pool.Submit(context.Background(), TriggerContext{FiredAt: "third"})  // evicts "second"

	close(block)
	pool.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, processed, "first")
	require.Contains(t, processed, "third")
	require.NotContains(t, processed, "second")
}

func TestPoolWithRateLimitPacesDispatch(t *testing.T) {
	store := experience.NewMemoryStore()
	repo := NewRepository(store)
	var timestamps []time.Time
	var mu sync.Mutex

	extractor := extractorFunc(func(context.Context, TriggerContext) ([]*experience.Experience, error) {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		return nil, nil
	})

	limiter := rate.NewLimiter(rate.Limit(20), 1) // ~50ms between dispatches after the first
	pool := NewPool(extractor, repo, 1, 4, nil, WithRateLimit(limiter))

	pool.Submit(context.Background(), TriggerContext{FiredAt: "a"})
	pool.Submit(context.Background(), TriggerContext{FiredAt: "b"})
	pool.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, timestamps, 2)
	require.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 30*time.Millisecond)
}

func TestLoopHandleEventRunsThroughStrategy(t *testing.T) {
	store := experience.NewMemoryStore()
	repo := NewRepository(store)
	extractor := &fakeExtractor{out: []*experience.Experience{{Type: experience.TypeCommon, Scope: experience.ScopeGlobal, Title: "x"}}}
	syncStrategy := StrategyFunc(func(context.Context, TriggerContext) Decision { return Decision{ShouldLearn: true, Async: false} })
	loop := NewLoop(syncStrategy, extractor, repo, nil, nil)

	var sub hooks.Subscriber = loop
	err := sub.HandleEvent(context.Background(), hooks.Event{
		Type:     "AFTER_AGENT",
		Position: hooks.AfterAgent,
		State:    map[string]any{state.KeyExecutionHistory: []string{"ran"}},
	})
	require.NoError(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBusRegisterLoopDrivesExtractionOnPublish(t *testing.T) {
	store := experience.NewMemoryStore()
	repo := NewRepository(store)
	extractor := &fakeExtractor{out: []*experience.Experience{{Type: experience.TypeCommon, Scope: experience.ScopeGlobal}}}
	syncStrategy := StrategyFunc(func(context.Context, TriggerContext) Decision { return Decision{ShouldLearn: true, Async: false} })
	loop := NewLoop(syncStrategy, extractor, repo, nil, nil)

	bus := hooks.NewBus()
	_, err := bus.Register(loop)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), hooks.Event{
		Type:  "AFTER_MODEL",
		State: map[string]any{state.KeyGeneratedCode: []string{"code"}},
	}))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
