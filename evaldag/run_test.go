package evaldag

import (
	"context"
	"testing"
	"time"

	"github.com/agentruntime/core/state"
	"github.com/stretchr/testify/require"
)

func instantEvaluator(value any) Evaluator {
	return EvaluatorFunc(func(context.Context, *Context, map[string]Result, map[string]any) (any, string, error) {
		return value, "", nil
	})
}

func sleepingEvaluator(d time.Duration) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, _ *Context, _ map[string]Result, _ map[string]any) (any, string, error) {
		select {
		case <-time.After(d):
			return "slept", "", nil
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	})
}

func TestDAGFanOutOrderingAndOverlap(t *testing.T) {
	suite := Suite{
		ID: "fanout",
		Criteria: []Criterion{
			{Name: "A", Evaluator: instantEvaluator("a")},
			{Name: "B", DependsOn: []string{"A"}, Evaluator: sleepingEvaluator(20 * time.Millisecond)},
			{Name: "C", DependsOn: []string{"A"}, Evaluator: sleepingEvaluator(20 * time.Millisecond)},
		},
	}
	dag, err := Compile(suite)
	require.NoError(t, err)

	runner := NewRunner(NewPool(4), time.Second, nil, nil)
	st := state.New()
	result := runner.Run(context.Background(), dag, &Context{SuiteID: suite.ID}, st)

	a, b, c := result.CriteriaResults["A"], result.CriteriaResults["B"], result.CriteriaResults["C"]
	require.Equal(t, StatusSuccess, a.Status)
	require.Equal(t, StatusSuccess, b.Status)
	require.Equal(t, StatusSuccess, c.Status)

	require.False(t, a.EndTime.After(b.StartTime))
	require.False(t, a.EndTime.After(c.StartTime))
	require.True(t, result.EndTime.Equal(result.EndTime) && !result.EndTime.Before(b.EndTime) && !result.EndTime.Before(c.EndTime))

	require.Contains(t, result.CriteriaResults, "A")
	require.Contains(t, result.CriteriaResults, "B")
	require.Contains(t, result.CriteriaResults, "C")

	_, ok := st.Get("A_result")
	require.True(t, ok)
	_, ok = st.Get("B_result")
	require.True(t, ok)
	_, ok = st.Get("C_result")
	require.True(t, ok)
}

func TestDAGCriterionTimeoutIsolation(t *testing.T) {
	suite := Suite{
		ID: "timeout",
		Criteria: []Criterion{
			{Name: "A", Evaluator: instantEvaluator("fast")},
			{Name: "B", Evaluator: sleepingEvaluator(200 * time.Millisecond), Timeout: 10 * time.Millisecond},
		},
	}
	dag, err := Compile(suite)
	require.NoError(t, err)

	runner := NewRunner(NewPool(4), time.Second, nil, nil)
	result := runner.Run(context.Background(), dag, &Context{SuiteID: suite.ID}, state.New())

	require.Equal(t, StatusSuccess, result.CriteriaResults["A"].Status)
	require.Equal(t, StatusTimeout, result.CriteriaResults["B"].Status)
	require.Equal(t, 2, result.Statistics.Total)
	require.Equal(t, 1, result.Statistics.SuccessCount)
	require.Equal(t, 1, result.Statistics.TimeoutCount)
}

func TestDAGCompileRejectsCycles(t *testing.T) {
	suite := Suite{
		ID: "cyclic",
		Criteria: []Criterion{
			{Name: "A", DependsOn: []string{"B"}, Evaluator: instantEvaluator(nil)},
			{Name: "B", DependsOn: []string{"A"}, Evaluator: instantEvaluator(nil)},
		},
	}
	_, err := Compile(suite)
	require.Error(t, err)
}

func TestDAGCompileRejectsUnknownDependency(t *testing.T) {
	suite := Suite{
		ID: "dangling",
		Criteria: []Criterion{
			{Name: "A", DependsOn: []string{"missing"}, Evaluator: instantEvaluator(nil)},
		},
	}
	_, err := Compile(suite)
	require.Error(t, err)
}

func TestDAGCriterionErrorDoesNotBlockSiblingsOrDependents(t *testing.T) {
	failing := EvaluatorFunc(func(context.Context, *Context, map[string]Result, map[string]any) (any, string, error) {
		return nil, "", errBoom{}
	})
	suite := Suite{
		ID: "erroring",
		Criteria: []Criterion{
			{Name: "A", Evaluator: failing},
			{Name: "B", DependsOn: []string{"A"}, Evaluator: EvaluatorFunc(func(_ context.Context, _ *Context, preds map[string]Result, _ map[string]any) (any, string, error) {
				require.Contains(t, preds, "A")
				require.Equal(t, StatusError, preds["A"].Status)
				return "saw-error", "", nil
			})},
		},
	}
	dag, err := Compile(suite)
	require.NoError(t, err)

	runner := NewRunner(NewPool(2), time.Second, nil, nil)
	result := runner.Run(context.Background(), dag, &Context{SuiteID: suite.ID}, state.New())

	require.Equal(t, StatusError, result.CriteriaResults["A"].Status)
	require.Equal(t, StatusSuccess, result.CriteriaResults["B"].Status)
	require.Equal(t, 1, result.Statistics.ErrorCount)
	require.Equal(t, 1, result.Statistics.SuccessCount)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestStatisticsTotalsAlwaysSumToTotal(t *testing.T) {
	suite := Suite{
		ID: "stats",
		Criteria: []Criterion{
			{Name: "A", Evaluator: instantEvaluator(1)},
			{Name: "B", Evaluator: instantEvaluator(2)},
			{Name: "C", Evaluator: EvaluatorFunc(func(context.Context, *Context, map[string]Result, map[string]any) (any, string, error) {
				return nil, "", errBoom{}
			})},
		},
	}
	dag, err := Compile(suite)
	require.NoError(t, err)
	runner := NewRunner(NewPool(3), time.Second, nil, nil)
	result := runner.Run(context.Background(), dag, &Context{SuiteID: suite.ID}, state.New())

	sum := result.Statistics.SuccessCount + result.Statistics.FailedCount + result.Statistics.SkippedCount +
		result.Statistics.TimeoutCount + result.Statistics.ErrorCount
	require.Equal(t, result.Statistics.Total, sum)
	require.Equal(t, len(result.CriteriaResults), result.Statistics.Total)
}
