/*
 *     Copyright 2022 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sjwhitworth/golearn/base"
	"github.com/stretchr/testify/assert"

	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/space"
)

type mockModel struct {
	name string
}

func (m *mockModel) Predict(base.FixedDataGrid) (base.FixedDataGrid, error) {
	return nil, nil
}

func higher(v float64) evaluator.Score {
	return evaluator.Score{Value: v, Order: evaluator.HigherIsBetter}
}

// assertPending checks the barrier is still open without sealing it.
func assertPending(t *testing.T, c *Collector) {
	select {
	case <-c.Done():
		t.Fatal("collector sealed before every pair completed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCollector_GridCompletion(t *testing.T) {
	assert := assert.New(t)
	pairs := space.Grid([]float64{1, 2}, []float64{1, 2})
	c := New(pairs, 1)
	assert.Equal(4, c.Expected())

	// Report out of dispatch order.
	for _, i := range []int{3, 1, 2} {
		p := pairs[i]
		assert.NoError(c.Collect(Report{Pair: p, Model: &mockModel{name: p.String()}, Score: higher(p.Cost + p.Gamma)}))
	}

	assertPending(t, c)
	assert.Equal(int64(3), c.Received())

	c = New(pairs, 1)
	for i := len(pairs) - 1; i >= 0; i-- {
		p := pairs[i]
		assert.NoError(c.Collect(Report{Pair: p, Model: &mockModel{name: p.String()}, Score: higher(p.Cost + p.Gamma)}))
	}

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.True(outcome.Found)
	assert.Equal(space.Pair{Cost: 2, Gamma: 2}, outcome.Best.Pair)
	assert.Equal(4.0, outcome.Best.Score.Value)
	assert.Equal(space.Pair{Cost: 2, Gamma: 2}.String(), outcome.Model.(*mockModel).name)
	assert.Equal(int64(4), c.Received())

	records := outcome.Table.Records()
	assert.Len(records, 4)
	for i, r := range records {
		assert.Equal(pairs[i], r.Pair)
	}
}

func TestCollector_FoldReduction(t *testing.T) {
	assert := assert.New(t)
	a, b := space.Pair{Cost: 1, Gamma: 1}, space.Pair{Cost: 2, Gamma: 2}
	c := New(space.Space{a, b}, 3)

	assert.NoError(c.Collect(Report{Pair: a, Fold: 0, Model: &mockModel{name: "a0"}, Score: higher(80)}))
	assert.NoError(c.Collect(Report{Pair: a, Fold: 2, Model: &mockModel{name: "a2"}, Score: higher(100)}))
	assert.NoError(c.Collect(Report{Pair: b, Fold: 1, Score: higher(50)}))
	assert.NoError(c.Collect(Report{Pair: a, Fold: 1, Model: &mockModel{name: "a1"}, Score: higher(90)}))

	assertPending(t, c)

	assert.NoError(c.Collect(Report{Pair: b, Fold: 0, Score: higher(50)}))
	assert.NoError(c.Collect(Report{Pair: b, Fold: 2, Score: higher(50)}))

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.Equal(a, outcome.Best.Pair)
	assert.Equal(90.0, outcome.Best.Score.Value)
	assert.Equal("a2", outcome.Model.(*mockModel).name)

	r, ok := outcome.Table.Get(b)
	assert.True(ok)
	assert.Equal(50.0, r.Score.Value)
}

func TestCollector_Ties(t *testing.T) {
	assert := assert.New(t)
	pairs := space.Space{{Cost: 1}, {Cost: 2}, {Cost: 3}}
	c := New(pairs, 1)

	assert.NoError(c.Collect(Report{Pair: pairs[2], Score: higher(1)}))
	assert.NoError(c.Collect(Report{Pair: pairs[1], Score: higher(1)}))
	assert.NoError(c.Collect(Report{Pair: pairs[0], Score: higher(0)}))

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.Equal(pairs[1], outcome.Best.Pair)
}

func TestCollector_AggregationFailure(t *testing.T) {
	assert := assert.New(t)
	pair := space.Pair{Cost: 1, Gamma: 1}
	c := New(space.Space{pair}, 2)

	assert.NoError(c.Collect(Report{Pair: pair, Fold: 0, Score: higher(1)}))
	assert.NoError(c.Collect(Report{Pair: pair, Fold: 1, Score: evaluator.Score{Value: 1, Order: evaluator.LowerIsBetter}}))

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.True(outcome.Best.Score.Sentinel)
	assert.Equal(1, outcome.Table.Sentinels())
}

func TestCollector_SentinelFold(t *testing.T) {
	assert := assert.New(t)
	a, b := space.Pair{Cost: 1}, space.Pair{Cost: 2}
	c := New(space.Space{a, b}, 2)

	assert.NoError(c.Collect(Report{Pair: a, Fold: 0, Score: higher(100)}))
	assert.NoError(c.Collect(Report{Pair: a, Fold: 1, Score: evaluator.Worst(evaluator.HigherIsBetter)}))
	assert.NoError(c.Collect(Report{Pair: b, Fold: 0, Model: &mockModel{name: "b"}, Score: higher(1)}))
	assert.NoError(c.Collect(Report{Pair: b, Fold: 1, Score: higher(3)}))

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.Equal(b, outcome.Best.Pair)
	assert.Equal(2.0, outcome.Best.Score.Value)
	assert.Equal("b", outcome.Model.(*mockModel).name)
}

func TestCollector_ProtocolErrors(t *testing.T) {
	a, b := space.Pair{Cost: 1}, space.Pair{Cost: 2}

	tests := []struct {
		name  string
		folds int
		mock  func(c *Collector) error
	}{
		{
			name:  "unexpected pair",
			folds: 1,
			mock: func(c *Collector) error {
				return c.Collect(Report{Pair: space.Pair{Cost: 9}, Score: higher(1)})
			},
		},
		{
			name:  "duplicate fold",
			folds: 2,
			mock: func(c *Collector) error {
				_ = c.Collect(Report{Pair: a, Fold: 1, Score: higher(1)})
				return c.Collect(Report{Pair: a, Fold: 1, Score: higher(1)})
			},
		},
		{
			name:  "fold out of range",
			folds: 2,
			mock: func(c *Collector) error {
				return c.Collect(Report{Pair: a, Fold: 2, Score: higher(1)})
			},
		},
		{
			name:  "pair already complete",
			folds: 1,
			mock: func(c *Collector) error {
				_ = c.Collect(Report{Pair: a, Score: higher(1)})
				return c.Collect(Report{Pair: a, Score: higher(2)})
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			c := New(space.Space{a, b}, tc.folds)
			assert.ErrorIs(tc.mock(c), ErrProtocol)

			outcome, err := c.Wait(context.Background())
			assert.ErrorIs(err, ErrProtocol)
			assert.Nil(outcome)

			assert.ErrorIs(c.Collect(Report{Pair: b, Score: higher(1)}), ErrProtocol)
		})
	}
}

func TestCollector_Sealed(t *testing.T) {
	assert := assert.New(t)
	pair := space.Pair{Cost: 1}
	c := New(space.Space{pair}, 1)
	assert.NoError(c.Collect(Report{Pair: pair, Score: higher(1)}))

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)

	assert.ErrorIs(c.Collect(Report{Pair: pair, Score: higher(5)}), ErrProtocol)
	assert.Equal(1.0, outcome.Best.Score.Value)

	again, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.Equal(1.0, again.Best.Score.Value)
}

func TestCollector_Empty(t *testing.T) {
	assert := assert.New(t)
	c := New(nil, 3)

	select {
	case <-c.Done():
	default:
		t.Fatal("empty collector must be done")
	}

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.False(outcome.Found)
	assert.Equal(0, outcome.Table.Len())
	assert.Nil(outcome.Model)
}

func TestCollector_Canceled(t *testing.T) {
	assert := assert.New(t)
	pair := space.Pair{Cost: 1}
	c := New(space.Space{pair}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := c.Wait(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.ErrorIs(c.Collect(Report{Pair: pair, Score: higher(1)}), ErrProtocol)
}

func TestCollector_Concurrent(t *testing.T) {
	assert := assert.New(t)
	costs := space.Linspace(1, 10, 10)
	pairs := space.Grid(costs, costs)
	folds := 3
	c := New(pairs, folds)

	var wg sync.WaitGroup
	for _, p := range pairs {
		for fold := 0; fold < folds; fold++ {
			wg.Add(1)
			go func(p space.Pair, fold int) {
				defer wg.Done()
				assert.NoError(c.Collect(Report{Pair: p, Fold: fold, Score: higher(p.Cost * p.Gamma)}))
			}(p, fold)
		}
	}

	outcome, err := c.Wait(context.Background())
	wg.Wait()
	assert.NoError(err)
	assert.Equal(len(pairs), outcome.Table.Len())
	assert.Equal(space.Pair{Cost: 10, Gamma: 10}, outcome.Best.Pair)
	assert.Equal(int64(len(pairs)*folds), c.Received())
}
