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

package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sjwhitworth/golearn/base"

	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search/collector"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/search/dataset"
	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/metrics"
	"d7y.io/hypersearch/search/result"
	"d7y.io/hypersearch/search/space"
	"d7y.io/hypersearch/search/trainer"
	"d7y.io/hypersearch/search/worker"
)

var (
	// ErrInvalidArgument is returned before any dispatch for unusable options or data.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoModel is returned when every evaluated pair failed.
	ErrNoModel = errors.New("no model")
)

// Result is the outcome of a search.
type Result struct {
	// ID correlates the logs of one search.
	ID string

	// Mode is the search strategy.
	Mode types.SearchMode

	// Model is the model of the best pair, or its retrained version.
	Model trainer.Model

	// Best is the best record of the table.
	Best result.Record

	// Table holds every evaluated pair in evaluation order.
	Table *result.Table

	// Center is the last center of a pattern search.
	Center space.Pair

	// Resolution is the resolution a further round would use.
	Resolution space.Resolution

	// Iterations is the number of completed rounds.
	Iterations int
}

// GridOptions configures GridSearch.
type GridOptions struct {
	// Costs are the cost candidates, nil means 2^-2 .. 2^3.
	Costs []float64

	// Gammas are the gamma candidates, nil means 2^-2 .. 2^3.
	Gammas []float64

	// Evaluator scores the models, nil means overall accuracy.
	Evaluator evaluator.Evaluator

	// TrainWhole retrains the best pair on training and validation data.
	TrainWhole bool
}

// PatternOptions configures PatternSearch.
type PatternOptions struct {
	// Folds is the number of cross validation folds, 0 means 3.
	Folds int

	// CostMin is the lower cost bound.
	CostMin float64

	// CostMax is the upper cost bound.
	CostMax float64

	// GammaMin is the lower gamma bound.
	GammaMin float64

	// GammaMax is the upper gamma bound.
	GammaMax float64

	// Evaluator scores the models, nil means overall accuracy.
	Evaluator evaluator.Evaluator

	// MaxIterations is the number of rounds, values below 1 run one round.
	MaxIterations int

	// Splitter partitions the data, nil means contiguous folds.
	Splitter dataset.Splitter

	// RetrainWhole retrains the best pair on the undivided data.
	RetrainWhole bool
}

// DefaultPatternOptions returns the default pattern search bounds and budget.
func DefaultPatternOptions() PatternOptions {
	return PatternOptions{
		Folds:         config.DefaultPatternFolds,
		CostMin:       config.DefaultPatternCostMin,
		CostMax:       config.DefaultPatternCostMax,
		GammaMin:      config.DefaultPatternGammaMin,
		GammaMax:      config.DefaultPatternGammaMax,
		MaxIterations: config.DefaultPatternMaxIterations,
	}
}

// Searcher runs searches on a shared worker pool.
type Searcher struct {
	trainer   trainer.Trainer
	pool      worker.Pool
	workerNum int
	queueSize int
	observer  func(Round)
}

// Option is a functional option for configuring the searcher.
type Option func(s *Searcher)

// WithWorkers sets the number of concurrent jobs.
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		s.workerNum = n
	}
}

// WithJobQueueSize sets the capacity of the job queue.
func WithJobQueueSize(n int) Option {
	return func(s *Searcher) {
		s.queueSize = n
	}
}

// WithObserver receives every completed round.
func WithObserver(observer func(Round)) Option {
	return func(s *Searcher) {
		s.observer = observer
	}
}

// WithPool replaces the default worker pool.
func WithPool(pool worker.Pool) Option {
	return func(s *Searcher) {
		s.pool = pool
	}
}

// New returns a searcher with a started worker pool.
func New(t trainer.Trainer, options ...Option) *Searcher {
	s := &Searcher{
		trainer:   t,
		queueSize: config.DefaultJobQueueSize,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.pool == nil {
		s.pool = worker.New(t, s.workerNum, worker.WithJobQueueSize(s.queueSize))
	}

	s.pool.Serve()
	return s
}

// Close stops the worker pool.
func (s *Searcher) Close() {
	s.pool.Stop()
}

// run is the state of one search, owned by the calling goroutine.
type run struct {
	id        string
	mode      types.SearchMode
	evaluator evaluator.Evaluator
	log       *logger.SugaredLoggerOnWith
	machine   *fsm.FSM

	table      *result.Table
	best       result.Record
	model      trainer.Model
	found      bool
	center     space.Pair
	resolution space.Resolution
	iterations int
}

func newRun(mode types.SearchMode, ev evaluator.Evaluator) *run {
	id := uuid.New().String()
	log := logger.WithSearch(id, mode.String())
	metrics.SearchCount.WithLabelValues(mode.String()).Inc()

	return &run{
		id:        id,
		mode:      mode,
		evaluator: ev,
		log:       log,
		machine:   newRoundFSM(log),
		table:     result.New(),
	}
}

func (r *run) event(name string) {
	if err := r.machine.Event(name); err != nil {
		r.log.Errorf("round event %s failed: %s", name, err.Error())
	}
}

// fail terminates the search and returns what was accumulated so far.
func (r *run) fail(err error) (*Result, error) {
	if !r.machine.Is(RoundStateTerminated) {
		r.event(RoundEventTerminate)
	}

	metrics.SearchFailureCount.WithLabelValues(r.mode.String()).Inc()
	r.log.Errorf("search failed after %d rounds: %s", r.iterations, err.Error())
	return r.result(), err
}

// finish terminates the search and checks a model was found.
func (r *run) finish() (*Result, error) {
	if !r.machine.Is(RoundStateTerminated) {
		r.event(RoundEventTerminate)
	}

	if r.model == nil || r.best.Score.Sentinel {
		return r.fail(fmt.Errorf("%w: %d of %d pairs failed", ErrNoModel, r.table.Sentinels(), r.table.Len()))
	}

	metrics.BestScore.WithLabelValues(r.mode.String(), r.evaluator.Name()).Set(r.best.Score.Value)
	r.log.Infof("search finished after %d rounds, best %s scores %s", r.iterations, r.best.Pair, r.best.Score)
	return r.result(), nil
}

func (r *run) result() *Result {
	return &Result{
		ID:         r.id,
		Mode:       r.mode,
		Model:      r.model,
		Best:       r.best,
		Table:      r.table,
		Center:     r.center,
		Resolution: r.resolution,
		Iterations: r.iterations,
	}
}

func (r *run) visited() []space.Pair {
	records := r.table.Records()
	pairs := make([]space.Pair, 0, len(records))
	for _, record := range records {
		pairs = append(pairs, record.Pair)
	}

	return pairs
}

// merge folds a round outcome into the accumulated state.
func (r *run) merge(outcome *collector.Outcome) error {
	if err := r.table.Merge(outcome.Table); err != nil {
		return err
	}

	if outcome.Found && (!r.found || outcome.Best.Score.BetterThan(r.best.Score)) {
		r.best = outcome.Best
		r.model = outcome.Model
		r.found = true
	}

	return nil
}

// round dispatches one job per pair and fold, then waits for the barrier.
func (s *Searcher) round(ctx context.Context, r *run, pairs space.Space, folds []dataset.Fold) (*collector.Outcome, error) {
	r.event(RoundEventDispatch)
	metrics.RoundCount.WithLabelValues(r.mode.String()).Inc()

	c := collector.New(pairs, len(folds))
	for _, pair := range pairs {
		for _, fold := range folds {
			if err := s.pool.Submit(ctx, &worker.Job{
				Mode:      r.mode,
				Pair:      pair,
				Fold:      fold.Index,
				Train:     fold.Train,
				Test:      fold.Test,
				Evaluator: r.evaluator,
				Sink:      c,
			}); err != nil {
				return nil, fmt.Errorf("dispatch %s fold %d: %w", pair, fold.Index, err)
			}
		}
	}

	r.event(RoundEventAwait)
	outcome, err := c.Wait(ctx)
	if err != nil {
		return nil, err
	}

	r.event(RoundEventMerge)
	if err := r.merge(outcome); err != nil {
		return nil, err
	}

	return outcome, nil
}

// GridSearch evaluates every pair of the cost and gamma candidates on the
// validation data in a single round.
func (s *Searcher) GridSearch(ctx context.Context, training, validation base.FixedDataGrid, opts GridOptions) (*Result, error) {
	if err := validateData(training); err != nil {
		return nil, fmt.Errorf("training data: %w", err)
	}

	if err := validateData(validation); err != nil {
		return nil, fmt.Errorf("validation data: %w", err)
	}

	costs, gammas := opts.Costs, opts.Gammas
	if costs == nil {
		costs = config.DefaultGridCosts
	}

	if gammas == nil {
		gammas = config.DefaultGridGammas
	}

	if err := validateCandidates("costs", costs); err != nil {
		return nil, err
	}

	if err := validateCandidates("gammas", gammas); err != nil {
		return nil, err
	}

	ev, err := defaultEvaluator(opts.Evaluator)
	if err != nil {
		return nil, err
	}

	r := newRun(types.GridSearchMode, ev)
	pairs := space.Grid(costs, gammas).Without(r.table.Has)
	r.log.Infof("grid search over %d pairs with %s", len(pairs), ev.Name())

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	outcome, err := s.round(ctx, r, pairs, []dataset.Fold{{Train: training, Test: validation}})
	if err != nil {
		return r.fail(err)
	}
	r.iterations = 1

	if s.observer != nil {
		s.observer(Round{
			Iteration: 1,
			Pairs:     pairs,
			Best:      outcome.Best,
			Found:     outcome.Found,
		})
	}

	if opts.TrainWhole && r.model != nil && !r.best.Score.Sentinel {
		whole, err := dataset.Concat(training, validation)
		if err != nil {
			return r.fail(fmt.Errorf("concat training and validation data: %w", err))
		}

		model, err := s.RetrainWhole(ctx, whole, r.best.Pair)
		if err != nil {
			return r.fail(err)
		}
		r.model = model
	}

	return r.finish()
}

// PatternSearch runs rounds of the 13 point stencil, recentering on the
// best pair found so far and shrinking the resolution by sqrt(2) each round.
// Pairs are scored by the mean over leave-one-fold-out evaluations.
func (s *Searcher) PatternSearch(ctx context.Context, data base.FixedDataGrid, opts PatternOptions) (*Result, error) {
	if err := validateData(data); err != nil {
		return nil, err
	}

	folds := opts.Folds
	if folds == 0 {
		folds = config.DefaultPatternFolds
	}

	if folds < dataset.MinFolds {
		return nil, fmt.Errorf("%w: folds %d is below %d", ErrInvalidArgument, folds, dataset.MinFolds)
	}

	if _, rows := data.Size(); rows < folds {
		return nil, fmt.Errorf("%w: %d rows for %d folds", ErrInvalidArgument, rows, folds)
	}

	if err := validateBounds("cost", opts.CostMin, opts.CostMax); err != nil {
		return nil, err
	}

	if err := validateBounds("gamma", opts.GammaMin, opts.GammaMax); err != nil {
		return nil, err
	}

	ev, err := defaultEvaluator(opts.Evaluator)
	if err != nil {
		return nil, err
	}

	splitter := opts.Splitter
	if splitter == nil {
		splitter = dataset.NewSplitter()
	}

	parts, err := splitter.Split(data, folds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err.Error())
	}

	maxIterations := opts.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}

	r := newRun(types.PatternSearchMode, ev)
	r.center = space.Midpoint(opts.CostMin, opts.CostMax, opts.GammaMin, opts.GammaMax)
	initial := space.InitialResolution(opts.CostMin, opts.CostMax, opts.GammaMin, opts.GammaMax)
	r.resolution = initial
	r.log.Infof("pattern search from %s with resolution %s, %d folds, %d iterations with %s",
		r.center, r.resolution, folds, maxIterations, ev.Name())

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}

		pairs := space.Stencil(r.center, r.resolution).WithoutNear(r.visited(), r.resolution.Tolerance(), r.table.Has)
		logger.WithRound(r.id, iteration).Infof("dispatch %d pairs around %s with resolution %s", len(pairs), r.center, r.resolution)

		outcome, err := s.round(ctx, r, pairs, parts)
		if err != nil {
			return r.fail(err)
		}

		observation := Round{
			Iteration:  iteration,
			Center:     r.center,
			Resolution: r.resolution,
			Pairs:      pairs,
			Best:       outcome.Best,
			Found:      outcome.Found,
		}

		// The center stays put while every score is a sentinel.
		if best, ok := r.table.Best(); ok && !best.Score.Sentinel {
			r.center = best.Pair
		}

		r.event(RoundEventShrink)
		r.resolution = initial.Shrink(iteration)
		r.iterations = iteration

		observation.NextCenter = r.center
		observation.NextResolution = r.resolution
		if s.observer != nil {
			s.observer(observation)
		}

		if iteration < maxIterations {
			r.event(RoundEventNext)
		}
	}

	if opts.RetrainWhole && r.model != nil && !r.best.Score.Sentinel {
		model, err := s.RetrainWhole(ctx, data, r.best.Pair)
		if err != nil {
			return r.fail(err)
		}
		r.model = model
	}

	return r.finish()
}

// RetrainWhole trains one model with pair on the whole of data.
func (s *Searcher) RetrainWhole(ctx context.Context, data base.FixedDataGrid, pair space.Pair) (trainer.Model, error) {
	if err := validateData(data); err != nil {
		return nil, err
	}

	model, err := s.trainer.Train(ctx, data, pair)
	if err != nil {
		return nil, fmt.Errorf("retrain %s: %w", pair, err)
	}

	if model == nil {
		return nil, fmt.Errorf("retrain %s: %w", pair, ErrNoModel)
	}

	logger.WithPair(pair.Cost, pair.Gamma).Infof("retrained on the whole dataset")
	return model, nil
}

func defaultEvaluator(ev evaluator.Evaluator) (evaluator.Evaluator, error) {
	if ev != nil {
		return ev, nil
	}

	return evaluator.New(evaluator.DefaultName)
}

func validateData(data base.FixedDataGrid) error {
	if data == nil {
		return fmt.Errorf("%w: nil dataset", ErrInvalidArgument)
	}

	if _, rows := data.Size(); rows == 0 {
		return fmt.Errorf("%w: empty dataset", ErrInvalidArgument)
	}

	return nil
}

func validateCandidates(name string, values []float64) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: empty %s", ErrInvalidArgument, name)
	}

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s contains %g", ErrInvalidArgument, name, v)
		}
	}

	return nil
}

func validateBounds(name string, min, max float64) error {
	for _, v := range []float64{min, max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s bound %g", ErrInvalidArgument, name, v)
		}
	}

	if min > max {
		return fmt.Errorf("%w: %s min %g is greater than max %g", ErrInvalidArgument, name, min, max)
	}

	if math.Abs(min)+math.Abs(max) == 0 {
		return fmt.Errorf("%w: %s bounds give a zero resolution", ErrInvalidArgument, name)
	}

	return nil
}
