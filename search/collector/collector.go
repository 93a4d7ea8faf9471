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
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"

	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/result"
	"d7y.io/hypersearch/search/space"
	"d7y.io/hypersearch/search/trainer"
)

// ErrProtocol is returned for a report the round did not ask for.
var ErrProtocol = errors.New("collector protocol violation")

// Report is the outcome of one job.
type Report struct {
	// Pair is the evaluated parameter pair.
	Pair space.Pair

	// Fold is the held out fold index, 0 in grid mode.
	Fold int

	// Model is the fitted model, nil when training failed.
	Model trainer.Model

	// Score is the evaluation of Model on the held out data.
	Score evaluator.Score
}

// Outcome is what a completed round hands back to the driver.
type Outcome struct {
	// Table holds one record per pair of the round, in space order.
	Table *result.Table

	// Best is the highest ranked record of the round.
	Best result.Record

	// Model is the model kept for Best, it may be nil.
	Model trainer.Model

	// Found is false for a round without pairs.
	Found bool
}

// partial buffers the fold scores of one pair.
type partial struct {
	scores     map[int]evaluator.Score
	model      trainer.Model
	modelScore evaluator.Score
}

// Collector is the barrier of one round. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	pairs    space.Space
	seq      map[space.Pair]int
	folds    int
	partials map[space.Pair]*partial
	complete map[space.Pair]result.Record
	models   map[space.Pair]trainer.Model

	best    result.Record
	bestSeq int
	found   bool

	errs     *multierror.Error
	sealed   bool
	received *atomic.Int64
	done     chan struct{}
}

// New returns a collector expecting folds reports for every pair.
func New(pairs space.Space, folds int) *Collector {
	if folds < 1 {
		folds = 1
	}

	c := &Collector{
		pairs:    append(space.Space(nil), pairs...),
		seq:      pairs.Index(),
		folds:    folds,
		partials: make(map[space.Pair]*partial, len(pairs)),
		complete: make(map[space.Pair]result.Record, len(pairs)),
		models:   make(map[space.Pair]trainer.Model, len(pairs)),
		received: atomic.NewInt64(0),
		done:     make(chan struct{}),
	}

	if len(c.seq) == 0 {
		c.seal()
	}

	return c
}

// Expected returns the number of pairs the round waits for.
func (c *Collector) Expected() int {
	return len(c.seq)
}

// Received returns the number of reports posted so far, including rejected ones.
func (c *Collector) Received() int64 {
	return c.received.Load()
}

// Collect records one report. A protocol violation seals the collector and
// releases the barrier with the error.
func (c *Collector) Collect(r Report) error {
	c.received.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		err := fmt.Errorf("%w: report for %s fold %d after the round completed", ErrProtocol, r.Pair, r.Fold)
		logger.Warn(err)
		return err
	}

	seq, ok := c.seq[r.Pair]
	if !ok {
		return c.fail(fmt.Errorf("%w: unexpected pair %s", ErrProtocol, r.Pair))
	}

	if _, ok := c.complete[r.Pair]; ok {
		return c.fail(fmt.Errorf("%w: pair %s is already complete", ErrProtocol, r.Pair))
	}

	if r.Fold < 0 || r.Fold >= c.folds {
		return c.fail(fmt.Errorf("%w: fold %d of pair %s out of range", ErrProtocol, r.Fold, r.Pair))
	}

	p, ok := c.partials[r.Pair]
	if !ok {
		p = &partial{scores: make(map[int]evaluator.Score, c.folds)}
		c.partials[r.Pair] = p
	}

	if _, ok := p.scores[r.Fold]; ok {
		return c.fail(fmt.Errorf("%w: duplicate fold %d for pair %s", ErrProtocol, r.Fold, r.Pair))
	}

	p.scores[r.Fold] = r.Score
	if r.Model != nil && (p.model == nil || r.Score.BetterThan(p.modelScore)) {
		p.model = r.Model
		p.modelScore = r.Score
	}

	if len(p.scores) < c.folds {
		return nil
	}

	c.reduce(r.Pair, seq, p)
	delete(c.partials, r.Pair)

	if len(c.complete) == len(c.seq) {
		c.seal()
	}

	return nil
}

// reduce turns the fold scores of a pair into its record.
func (c *Collector) reduce(pair space.Pair, seq int, p *partial) {
	scores := make([]evaluator.Score, 0, c.folds)
	for fold := 0; fold < c.folds; fold++ {
		scores = append(scores, p.scores[fold])
	}

	score, err := evaluator.Mean(scores...)
	if err != nil {
		logger.WithPair(pair.Cost, pair.Gamma).Warnf("aggregate fold scores failed: %s", err.Error())
		score = evaluator.Worst(scores[0].Order)
	}

	record := result.Record{Pair: pair, Score: score}
	c.complete[pair] = record
	c.models[pair] = p.model
	logger.WithPair(pair.Cost, pair.Gamma).Debugf("result for cost = %g gamma = %g is %s", pair.Cost, pair.Gamma, score)

	if !c.found || score.BetterThan(c.best.Score) ||
		(!c.best.Score.BetterThan(score) && seq < c.bestSeq) {
		c.best = record
		c.bestSeq = seq
		c.found = true
	}
}

func (c *Collector) fail(err error) error {
	c.errs = multierror.Append(c.errs, err)
	logger.Error(err)
	c.seal()
	return err
}

func (c *Collector) seal() {
	if c.sealed {
		return
	}

	c.sealed = true
	close(c.done)
}

// Done is closed once the collector is sealed.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until every pair is complete, a protocol violation happened or
// ctx is done. A canceled wait seals the collector and discards the round.
func (c *Collector) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		c.mu.Lock()
		c.seal()
		c.mu.Unlock()
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	// Cancellation may have sealed the round first.
	if len(c.complete) != len(c.seq) {
		return nil, context.Canceled
	}

	table := result.New()
	for _, pair := range c.pairs {
		record, ok := c.complete[pair]
		if !ok || table.Has(pair) {
			continue
		}

		if err := table.Insert(record); err != nil {
			return nil, err
		}
	}

	return &Outcome{
		Table: table,
		Best:  c.best,
		Model: c.models[c.best.Pair],
		Found: c.found,
	}, nil
}
