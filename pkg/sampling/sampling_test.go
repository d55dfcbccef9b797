// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampling

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Models
// =============================================================================

// counterModel counts its steps.
type counterModel struct {
	count int
}

func (m *counterModel) Step(Norms) error {
	m.count++
	return nil
}

func counterFactory() Factory {
	return FactoryFunc(func(int) (Model, error) { return &counterModel{}, nil })
}

var countValue = ValueFuncOf(func(m Model) (float64, error) {
	return float64(m.(*counterModel).count), nil
})

// indexedModel scores each instance by its path index, giving a
// deterministic but non-constant sample.
type indexedModel struct {
	id    int
	steps int
}

func (m *indexedModel) Step(Norms) error {
	m.steps++
	return nil
}

func indexedFactory() Factory {
	return FactoryFunc(func(path int) (Model, error) {
		return &indexedModel{id: path}, nil
	})
}

var indexedValue = ValueFuncOf(func(m Model) (float64, error) {
	im := m.(*indexedModel)
	return float64(im.id%7)*0.1 + float64(im.steps), nil
})

// failingModel fails on the failAt-th Step call made across all instances.
type failingModel struct {
	calls  *atomic.Int64
	failAt int64
}

func (m *failingModel) Step(Norms) error {
	if m.calls.Add(1) == m.failAt {
		return errors.New("boom")
	}
	return nil
}

// =============================================================================
// EvaluatePath Tests
// =============================================================================

func TestEvaluatePath_StepsExactlyPathLength(t *testing.T) {
	got, err := EvaluatePath(0, counterFactory(), Norms{}, countValue, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestEvaluatePath_ZeroLengthScoresFreshModel(t *testing.T) {
	got, err := EvaluatePath(3, counterFactory(), Norms{}, countValue, 0)
	require.NoError(t, err)

	fresh, _ := counterFactory().NewModel(0)
	want, _ := countValue.Evaluate(fresh)
	assert.Equal(t, want, got)
}

func TestEvaluatePath_ThreadsSameNormsThroughEveryStep(t *testing.T) {
	norms := Norms{"n1": {"threshold": 0.2}}
	var seen []Norms
	factory := FactoryFunc(func(int) (Model, error) {
		return stepFunc(func(n Norms) error {
			seen = append(seen, n)
			return nil
		}), nil
	})

	_, err := EvaluatePath(0, factory, norms, ValueFuncOf(func(Model) (float64, error) { return 1, nil }), 3)
	require.NoError(t, err)
	require.Len(t, seen, 3)
	for _, n := range seen {
		assert.Equal(t, norms, n)
	}
}

func TestEvaluatePath_NegativeLength(t *testing.T) {
	_, err := EvaluatePath(0, counterFactory(), Norms{}, countValue, -1)
	var paramErr *InvalidParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "path_length", paramErr.Name)
}

func TestEvaluatePath_ErrorsAreTaggedWithPathAndStage(t *testing.T) {
	cause := errors.New("cause")

	t.Run("construct", func(t *testing.T) {
		factory := FactoryFunc(func(int) (Model, error) { return nil, cause })
		_, err := EvaluatePath(4, factory, Norms{}, countValue, 1)

		var pathErr *PathEvaluationError
		require.ErrorAs(t, err, &pathErr)
		assert.Equal(t, 4, pathErr.Path)
		assert.Equal(t, StageConstruct, pathErr.Stage)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nil model", func(t *testing.T) {
		factory := FactoryFunc(func(int) (Model, error) { return nil, nil })
		_, err := EvaluatePath(0, factory, Norms{}, countValue, 1)
		assert.ErrorIs(t, err, ErrNilModel)
	})

	t.Run("step", func(t *testing.T) {
		calls := &atomic.Int64{}
		factory := FactoryFunc(func(int) (Model, error) { return &failingModel{calls: calls, failAt: 3}, nil })
		_, err := EvaluatePath(7, factory, Norms{}, ValueFuncOf(func(Model) (float64, error) { return 0, nil }), 5)

		var pathErr *PathEvaluationError
		require.ErrorAs(t, err, &pathErr)
		assert.Equal(t, 7, pathErr.Path)
		assert.Equal(t, StageStep, pathErr.Stage)
		assert.Equal(t, 2, pathErr.Step)
		assert.Contains(t, err.Error(), "path 7: step 2 failed")
	})

	t.Run("value", func(t *testing.T) {
		value := ValueFuncOf(func(Model) (float64, error) { return 0, cause })
		_, err := EvaluatePath(1, counterFactory(), Norms{}, value, 1)

		var pathErr *PathEvaluationError
		require.ErrorAs(t, err, &pathErr)
		assert.Equal(t, StageValue, pathErr.Stage)
	})

	t.Run("non-finite value", func(t *testing.T) {
		value := ValueFuncOf(func(Model) (float64, error) { return math.NaN(), nil })
		_, err := EvaluatePath(1, counterFactory(), Norms{}, value, 1)
		assert.ErrorIs(t, err, ErrNonFiniteValue)
	})
}

func TestEvaluatePath_RecoversPanics(t *testing.T) {
	factory := FactoryFunc(func(int) (Model, error) {
		return stepFunc(func(Norms) error { panic("model exploded") }), nil
	})

	_, err := EvaluatePath(2, factory, Norms{}, countValue, 3)

	var pathErr *PathEvaluationError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, 2, pathErr.Path)
	assert.Equal(t, StageStep, pathErr.Stage)
	assert.Equal(t, 0, pathErr.Step)
	assert.Contains(t, pathErr.Err.Error(), "model exploded")
}

// stepFunc is a Model whose Step is a closure.
type stepFunc func(Norms) error

func (f stepFunc) Step(n Norms) error { return f(n) }

// =============================================================================
// Alignment Tests
// =============================================================================

func TestAlignment_CounterScenario(t *testing.T) {
	got, err := Alignment(context.Background(), counterFactory(), Norms{}, countValue, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestAlignment_SingleSampleEqualsEvaluatePath(t *testing.T) {
	single, err := EvaluatePath(0, counterFactory(), Norms{}, countValue, 9)
	require.NoError(t, err)

	got, err := Alignment(context.Background(), counterFactory(), Norms{}, countValue, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, single, got)
}

func TestAlignment_InvariantToWorkerCount(t *testing.T) {
	ctx := context.Background()

	one, err := Alignment(ctx, indexedFactory(), Norms{}, indexedValue, 4, 200, WithWorkers(1))
	require.NoError(t, err)

	many, err := Alignment(ctx, indexedFactory(), Norms{}, indexedValue, 4, 200, WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, one, many)
}

func TestAlignment_InvalidParameters(t *testing.T) {
	ctx := context.Background()

	_, err := Alignment(ctx, counterFactory(), Norms{}, countValue, 3, 0)
	var paramErr *InvalidParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "path_sample", paramErr.Name)

	_, err = Alignment(ctx, counterFactory(), Norms{}, countValue, -2, 3)
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "path_length", paramErr.Name)

	_, err = Alignment(ctx, nil, Norms{}, countValue, 1, 1)
	assert.ErrorIs(t, err, ErrNilFactory)

	_, err = Alignment(ctx, counterFactory(), Norms{}, nil, 1, 1)
	assert.ErrorIs(t, err, ErrNilValue)
}

func TestAlignment_FailurePropagates(t *testing.T) {
	calls := &atomic.Int64{}
	factory := FactoryFunc(func(int) (Model, error) {
		return &failingModel{calls: calls, failAt: 17}, nil
	})
	value := ValueFuncOf(func(Model) (float64, error) { return 1, nil })

	got, err := Alignment(context.Background(), factory, Norms{}, value, 5, 20, WithWorkers(4))

	assert.Zero(t, got)
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, 20, aggErr.Total)
	assert.Less(t, aggErr.Completed, 20)
	assert.GreaterOrEqual(t, aggErr.Path, 0)

	var pathErr *PathEvaluationError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, aggErr.Path, pathErr.Path)
	assert.Equal(t, StageStep, pathErr.Stage)
}

func TestAlignment_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Alignment(ctx, counterFactory(), Norms{}, countValue, 1, 50)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, -1, aggErr.Path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAlignment_EachPathGetsFreshModelAndNormsCopy(t *testing.T) {
	var mu sync.Mutex
	instances := map[*mutatingModel]bool{}
	norms := Norms{"n1": {"threshold": 0.2}}

	factory := FactoryFunc(func(int) (Model, error) {
		m := &mutatingModel{}
		mu.Lock()
		instances[m] = true
		mu.Unlock()
		return m, nil
	})
	value := ValueFuncOf(func(m Model) (float64, error) {
		return float64(m.(*mutatingModel).steps), nil
	})

	got, err := Alignment(context.Background(), factory, norms, value, 3, 25, WithWorkers(5))
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Len(t, instances, 25)
	assert.Equal(t, 0.2, norms["n1"]["threshold"], "caller's norms must not be modified")
}

func TestAlignment_FactoryReceivesEachPathIndexOnce(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]int{}
	factory := FactoryFunc(func(path int) (Model, error) {
		mu.Lock()
		seen[path]++
		mu.Unlock()
		return &counterModel{}, nil
	})

	_, err := Alignment(context.Background(), factory, Norms{}, countValue, 1, 40, WithWorkers(6))
	require.NoError(t, err)

	require.Len(t, seen, 40)
	for path := 0; path < 40; path++ {
		assert.Equal(t, 1, seen[path], "path %d", path)
	}
}

// mutatingModel misbehaves by writing to the norms it receives. It only
// ever sees its own copy, so its first read is always the original value.
type mutatingModel struct {
	steps int
}

func (m *mutatingModel) Step(n Norms) error {
	if m.steps == 0 && n["n1"]["threshold"] != 0.2 {
		return errors.New("norms shared across paths")
	}
	n["n1"]["threshold"] = -1.0
	m.steps++
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	paths    map[int]bool
	failures int
}

func (r *recordingObserver) ObservePath(path int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = map[int]bool{}
	}
	r.paths[path] = true
	if err != nil {
		r.failures++
	}
}

func TestAlignment_ObserverSeesEveryPath(t *testing.T) {
	obs := &recordingObserver{}

	_, err := Alignment(context.Background(), counterFactory(), Norms{}, countValue, 2, 30,
		WithObserver(obs), WithWorkers(3))
	require.NoError(t, err)

	assert.Len(t, obs.paths, 30)
	assert.Zero(t, obs.failures)
}

// =============================================================================
// Pool Tests
// =============================================================================

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 3, WorkerCount(8, 3))
	assert.Equal(t, 4, WorkerCount(4, 100))
	assert.Equal(t, 1, WorkerCount(4, 0))
	assert.GreaterOrEqual(t, WorkerCount(0, 1000), 1)
}

func TestPool_NeverRunsMoreThanSizeConcurrently(t *testing.T) {
	var active, peak atomic.Int64
	p := acquirePool(context.Background(), 3, func(int) error {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return nil
	})
	for i := 0; i < 30; i++ {
		require.True(t, p.dispatch(i))
	}
	require.NoError(t, p.release())
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	p := acquirePool(context.Background(), 2, func(int) error { return errors.New("x") })
	p.dispatch(0)
	first := p.release()
	second := p.release()
	assert.Error(t, first)
	assert.Equal(t, first, second)
}

// =============================================================================
// Norms Tests
// =============================================================================

func TestNorms_CloneIsDeep(t *testing.T) {
	orig := Norms{
		"n1": {"threshold": 0.2, "nested": map[string]any{"k": []any{1, 2}}},
	}
	cp := orig.Clone()
	cp["n1"]["threshold"] = 0.9
	cp["n1"]["nested"].(map[string]any)["k"].([]any)[0] = 99

	assert.Equal(t, 0.2, orig["n1"]["threshold"])
	assert.Equal(t, 1, orig["n1"]["nested"].(map[string]any)["k"].([]any)[0])
}

func TestNorms_CloneNil(t *testing.T) {
	var n Norms
	cp := n.Clone()
	assert.NotNil(t, cp)
	assert.Empty(t, cp)
}

func TestNorms_IDsSorted(t *testing.T) {
	n := Norms{"b": {}, "a": {}, "c": {}}
	assert.Equal(t, []string{"a", "b", "c"}, n.IDs())
}
