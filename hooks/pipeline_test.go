package hooks

import (
	"context"
	"sync"
	"testing"

	"github.com/agentruntime/core/state"
	"github.com/stretchr/testify/require"
)

func writeHook(name string, fn func(st *state.Map) map[string]any) Hook {
	return NewHookFunc(name, []Position{BeforeAgent}, func(_ context.Context, _ Position, st *state.Map, _ map[string]any) (Result, error) {
		return Result{Updates: fn(st)}, nil
	})
}

func TestHookOrderingAndStateWriteThrough(t *testing.T) {
	p := New(nil, nil)
	h1 := writeHook("h1", func(*state.Map) map[string]any { return map[string]any{"x": 1} })
	h2 := writeHook("h2", func(st *state.Map) map[string]any {
		x, _ := st.Get("x")
		return map[string]any{"y": x.(int) + 1}
	})
	p.Register(h1)
	p.Register(h2)

	st := state.New()
	p.Run(context.Background(), BeforeAgent, st, nil)

	x, _ := st.Get("x")
	y, _ := st.Get("y")
	require.Equal(t, 1, x)
	require.Equal(t, 2, y)
}

func TestHookOrderingReversedChangesResult(t *testing.T) {
	p := New(nil, nil)
	h1 := writeHook("h1", func(*state.Map) map[string]any { return map[string]any{"x": 1} })
	h2 := writeHook("h2", func(st *state.Map) map[string]any {
		x, ok := st.Get("x")
		if !ok {
			return map[string]any{"y": -1}
		}
		return map[string]any{"y": x.(int) + 1}
	})
	// Register h2 before h1: h2 now runs first and sees no "x" yet.
	p.Register(h2)
	p.Register(h1)

	st := state.New()
	p.Run(context.Background(), BeforeAgent, st, nil)

	y, _ := st.Get("y")
	require.Equal(t, -1, y)
}

func TestHookReturningNoUpdatesIsIndistinguishableFromNoop(t *testing.T) {
	p := New(nil, nil)
	called := false
	h := NewHookFunc("noop", []Position{BeforeAgent}, func(context.Context, Position, *state.Map, map[string]any) (Result, error) {
		called = true
		return Result{}, nil
	})
	p.Register(h)
	st := state.New()
	before := st.GetAll()
	p.Run(context.Background(), BeforeAgent, st, nil)
	require.True(t, called)
	require.Equal(t, before, st.GetAll())
}

func TestHookErrorIsSkippedPipelineContinues(t *testing.T) {
	p := New(nil, nil)
	failing := NewHookFunc("failing", []Position{BeforeAgent}, func(context.Context, Position, *state.Map, map[string]any) (Result, error) {
		return Result{}, assertErr{}
	})
	ok := writeHook("ok", func(*state.Map) map[string]any { return map[string]any{"ran": true} })
	p.Register(failing)
	p.Register(ok)
	st := state.New()
	p.Run(context.Background(), BeforeAgent, st, nil)
	ran, _ := st.Get("ran")
	require.Equal(t, true, ran)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestPipelinePublishesOnAfterAgentAndAfterModelOnly(t *testing.T) {
	p := New(nil, nil)
	bus := NewBus()
	p.SetBus(bus)

	var mu sync.Mutex
	var received []Position
	_, err := bus.Register(SubscriberFunc(func(_ context.Context, e Event) error {
		mu.Lock()
		received = append(received, e.Position)
		mu.Unlock()
		return nil
	}))
	require.NoError(t, err)

	st := state.New()
	p.Run(context.Background(), BeforeAgent, st, nil)
	p.Run(context.Background(), BeforeModel, st, nil)
	p.Run(context.Background(), AfterModel, st, nil)
	p.Run(context.Background(), AfterAgent, st, nil)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Position{AfterModel, AfterAgent}, received)
}

func TestPipelinePublishedEventCarriesStateSnapshot(t *testing.T) {
	p := New(nil, nil)
	bus := NewBus()
	p.SetBus(bus)

	var got map[string]any
	_, err := bus.Register(SubscriberFunc(func(_ context.Context, e Event) error {
		got = e.State
		return nil
	}))
	require.NoError(t, err)

	p.Register(writeHook("h1", func(*state.Map) map[string]any { return map[string]any{"x": 1} }))
	st := state.New()
	p.Run(context.Background(), BeforeAgent, st, nil)
	p.Run(context.Background(), AfterAgent, st, nil)

	require.Equal(t, 1, got["x"])
}

func TestPromptContributorManagerAssemblesInPriorityOrder(t *testing.T) {
	m := NewPromptContributorManager()
	m.Register(fakeContributor{priority: 10, sys: "low-priority-last"})
	m.Register(fakeContributor{priority: 0, sys: "high-priority-first"})

	c := m.Assemble(context.Background(), state.New())
	require.Equal(t, "high-priority-first\n\nlow-priority-last", c.SystemPrepend)
}

type fakeContributor struct {
	priority int
	sys      string
}

func (f fakeContributor) Priority() int { return f.priority }
func (f fakeContributor) Name() string  { return "fake" }
func (f fakeContributor) Contribute(context.Context, *state.Map) (Contribution, error) {
	return Contribution{SystemPrepend: f.sys}, nil
}
