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

package worker_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sjwhitworth/golearn/base"
	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"

	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search/collector"
	"d7y.io/hypersearch/search/dataset"
	"d7y.io/hypersearch/search/evaluator"
	evaluatormocks "d7y.io/hypersearch/search/evaluator/mocks"
	"d7y.io/hypersearch/search/space"
	"d7y.io/hypersearch/search/trainer"
	trainermocks "d7y.io/hypersearch/search/trainer/mocks"
	"d7y.io/hypersearch/search/worker"
	"d7y.io/hypersearch/search/worker/mocks"
)

func mockData(t *testing.T) *base.DenseInstances {
	data, err := dataset.FromRows([][]float64{{0, 0}, {1, 1}}, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}

	return data
}

func TestPool_Run(t *testing.T) {
	pair := space.Pair{Cost: 1, Gamma: 2}

	tests := []struct {
		name   string
		cancel bool
		mock   func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model)
		expect func(t *testing.T, outcome *collector.Outcome, model trainer.Model)
	}{
		{
			name: "train and evaluate",
			mock: func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model) {
				gomock.InOrder(
					tr.Train(gomock.Any(), gomock.Any(), gomock.Eq(pair)).Return(model, nil).Times(1),
					ev.Evaluate(gomock.Eq(model), gomock.Any()).Return(evaluator.Score{Value: 90, Order: evaluator.HigherIsBetter}, nil).Times(1),
				)
			},
			expect: func(t *testing.T, outcome *collector.Outcome, model trainer.Model) {
				assert := assert.New(t)
				assert.Equal(90.0, outcome.Best.Score.Value)
				assert.False(outcome.Best.Score.Sentinel)
				assert.Equal(model, outcome.Model)
			},
		},
		{
			name: "training failed",
			mock: func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model) {
				gomock.InOrder(
					tr.Train(gomock.Any(), gomock.Any(), gomock.Eq(pair)).Return(nil, errors.New("foo")).Times(1),
					ev.Order().Return(evaluator.HigherIsBetter).Times(1),
				)
			},
			expect: func(t *testing.T, outcome *collector.Outcome, model trainer.Model) {
				assert := assert.New(t)
				assert.Equal(evaluator.Worst(evaluator.HigherIsBetter), outcome.Best.Score)
				assert.Nil(outcome.Model)
			},
		},
		{
			name: "training panicked",
			mock: func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model) {
				gomock.InOrder(
					tr.Train(gomock.Any(), gomock.Any(), gomock.Eq(pair)).DoAndReturn(func(context.Context, base.FixedDataGrid, space.Pair) (trainer.Model, error) {
						panic("foo")
					}).Times(1),
					ev.Order().Return(evaluator.LowerIsBetter).Times(1),
				)
			},
			expect: func(t *testing.T, outcome *collector.Outcome, model trainer.Model) {
				assert := assert.New(t)
				assert.Equal(evaluator.Worst(evaluator.LowerIsBetter), outcome.Best.Score)
			},
		},
		{
			name: "evaluation failed",
			mock: func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model) {
				gomock.InOrder(
					tr.Train(gomock.Any(), gomock.Any(), gomock.Eq(pair)).Return(model, nil).Times(1),
					ev.Evaluate(gomock.Eq(model), gomock.Any()).Return(evaluator.Score{}, errors.New("foo")).Times(1),
					ev.Order().Return(evaluator.HigherIsBetter).Times(1),
				)
			},
			expect: func(t *testing.T, outcome *collector.Outcome, model trainer.Model) {
				assert := assert.New(t)
				assert.True(outcome.Best.Score.Sentinel)
				assert.Nil(outcome.Model)
			},
		},
		{
			name: "NaN score",
			mock: func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model) {
				gomock.InOrder(
					tr.Train(gomock.Any(), gomock.Any(), gomock.Eq(pair)).Return(model, nil).Times(1),
					ev.Evaluate(gomock.Eq(model), gomock.Any()).Return(evaluator.Score{Value: math.NaN(), Order: evaluator.HigherIsBetter}, nil).Times(1),
					ev.Order().Return(evaluator.HigherIsBetter).Times(1),
				)
			},
			expect: func(t *testing.T, outcome *collector.Outcome, model trainer.Model) {
				assert := assert.New(t)
				assert.True(outcome.Best.Score.Sentinel)
			},
		},
		{
			name:   "context canceled",
			cancel: true,
			mock: func(tr *trainermocks.MockTrainerMockRecorder, ev *evaluatormocks.MockEvaluatorMockRecorder, model trainer.Model) {
				ev.Order().Return(evaluator.HigherIsBetter).Times(1)
			},
			expect: func(t *testing.T, outcome *collector.Outcome, model trainer.Model) {
				assert := assert.New(t)
				assert.True(outcome.Best.Score.Sentinel)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctl := gomock.NewController(t)
			defer ctl.Finish()
			tr := trainermocks.NewMockTrainer(ctl)
			ev := evaluatormocks.NewMockEvaluator(ctl)
			model := trainermocks.NewMockModel(ctl)
			tc.mock(tr.EXPECT(), ev.EXPECT(), model)

			p := worker.New(tr, 1)
			defer p.Stop()

			c := collector.New(space.Space{pair}, 1)
			data := mockData(t)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			assert.NoError(t, p.Submit(ctx, &worker.Job{
				Mode:      types.GridSearchMode,
				Pair:      pair,
				Train:     data,
				Test:      data,
				Evaluator: ev,
				Sink:      c,
			}))

			// Cancel while the job is queued.
			if tc.cancel {
				cancel()
			}
			p.Serve()

			outcome, err := c.Wait(context.Background())
			assert.NoError(t, err)
			tc.expect(t, outcome, model)
		})
	}
}

func TestPool_Submit(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	tr := trainermocks.NewMockTrainer(ctl)
	ev := evaluatormocks.NewMockEvaluator(ctl)
	sink := mocks.NewMockSink(ctl)
	data := mockData(t)
	assert := assert.New(t)

	p := worker.New(tr, 2, worker.WithJobQueueSize(4))
	assert.Equal(2, p.Workers())

	assert.ErrorIs(p.Submit(context.Background(), nil), worker.ErrInvalidJob)
	assert.ErrorIs(p.Submit(context.Background(), &worker.Job{Train: data, Test: data, Sink: sink}), worker.ErrInvalidJob)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(p.Submit(ctx, &worker.Job{Train: data, Test: data, Evaluator: ev, Sink: sink}), context.Canceled)

	// Stopping a pool that never served still reports queued jobs.
	pair := space.Pair{Cost: 3, Gamma: 4}
	gomock.InOrder(
		ev.EXPECT().Order().Return(evaluator.HigherIsBetter).Times(1),
		sink.EXPECT().Collect(gomock.Eq(collector.Report{Pair: pair, Fold: 1, Score: evaluator.Worst(evaluator.HigherIsBetter)})).Return(errors.New("foo")).Times(1),
	)
	assert.NoError(p.Submit(context.Background(), &worker.Job{Pair: pair, Fold: 1, Train: data, Test: data, Evaluator: ev, Sink: sink}))
	p.Stop()
	assert.Equal(int64(1), p.Processed())

	assert.ErrorIs(p.Submit(context.Background(), &worker.Job{Pair: pair, Train: data, Test: data, Evaluator: ev, Sink: sink}), worker.ErrPoolStopped)
	p.Stop()
}

func TestPool_Concurrent(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	tr := trainermocks.NewMockTrainer(ctl)
	ev := evaluatormocks.NewMockEvaluator(ctl)
	assert := assert.New(t)

	costs := space.Linspace(1, 5, 5)
	pairs := space.Grid(costs, costs)
	folds := 3

	tr.EXPECT().Train(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ base.FixedDataGrid, pair space.Pair) (trainer.Model, error) {
			return trainermocks.NewMockModel(ctl), nil
		}).Times(len(pairs) * folds)
	ev.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(evaluator.Score{Value: 1, Order: evaluator.LowerIsBetter}, nil).Times(len(pairs) * folds)

	p := worker.New(tr, 4, worker.WithJobQueueSize(8))
	p.Serve()

	c := collector.New(pairs, folds)
	data := mockData(t)
	for _, pair := range pairs {
		for fold := 0; fold < folds; fold++ {
			assert.NoError(p.Submit(context.Background(), &worker.Job{
				Mode:      types.PatternSearchMode,
				Pair:      pair,
				Fold:      fold,
				Train:     data,
				Test:      data,
				Evaluator: ev,
				Sink:      c,
			}))
		}
	}

	outcome, err := c.Wait(context.Background())
	assert.NoError(err)
	assert.Equal(len(pairs), outcome.Table.Len())
	assert.Equal(0, outcome.Table.Sentinels())
	assert.Equal(pairs[0], outcome.Best.Pair)

	p.Stop()
	assert.Equal(int64(len(pairs)*folds), p.Processed())
}

type countingSink struct {
	reports *atomic.Int64
}

func (s *countingSink) Collect(collector.Report) error {
	s.reports.Inc()
	return nil
}

func TestPool_SubmitDuringStop(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	tr := trainermocks.NewMockTrainer(ctl)
	ev := evaluatormocks.NewMockEvaluator(ctl)
	assert := assert.New(t)

	tr.EXPECT().Train(gomock.Any(), gomock.Any(), gomock.Any()).Return(trainermocks.NewMockModel(ctl), nil).AnyTimes()
	ev.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(evaluator.Score{Value: 1, Order: evaluator.LowerIsBetter}, nil).AnyTimes()
	ev.EXPECT().Order().Return(evaluator.LowerIsBetter).AnyTimes()

	for round := 0; round < 20; round++ {
		p := worker.New(tr, 2, worker.WithJobQueueSize(4))
		p.Serve()

		sink := &countingSink{reports: atomic.NewInt64(0)}
		accepted := atomic.NewInt64(0)
		data := mockData(t)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := p.Submit(context.Background(), &worker.Job{
					Pair:      space.Pair{Cost: float64(i)},
					Train:     data,
					Test:      data,
					Evaluator: ev,
					Sink:      sink,
				})
				if err == nil {
					accepted.Inc()
					return
				}
				assert.ErrorIs(err, worker.ErrPoolStopped)
			}(i)
		}

		p.Stop()
		wg.Wait()

		// Every accepted job is reported once even when Stop wins the race.
		assert.Equal(accepted.Load(), sink.reports.Load())
		assert.Equal(accepted.Load(), p.Processed())
	}
}
