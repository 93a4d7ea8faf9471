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

//go:generate mockgen -destination mocks/worker_mock.go -source worker.go -package mocks

package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sjwhitworth/golearn/base"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/pkg/safe"
	"d7y.io/hypersearch/pkg/types"
	"d7y.io/hypersearch/search/collector"
	"d7y.io/hypersearch/search/config"
	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/metrics"
	"d7y.io/hypersearch/search/space"
	"d7y.io/hypersearch/search/trainer"
)

var (
	// ErrPoolStopped is returned when submitting to a stopped pool.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrInvalidJob is returned for a job without data, evaluator or sink.
	ErrInvalidJob = errors.New("invalid job")
)

// Sink receives the report of every job exactly once.
type Sink interface {
	Collect(collector.Report) error
}

// Job trains one model for a pair and scores it on the held out data.
type Job struct {
	// Mode labels the job metrics.
	Mode types.SearchMode

	// Pair is the parameter pair to train with.
	Pair space.Pair

	// Fold is the held out fold index, 0 in grid mode.
	Fold int

	// Train is the training data.
	Train base.FixedDataGrid

	// Test is the held out data.
	Test base.FixedDataGrid

	// Evaluator scores the fitted model.
	Evaluator evaluator.Evaluator

	// Sink receives the report.
	Sink Sink
}

// Pool is the interface used for running jobs concurrently.
type Pool interface {
	// Serve starts the workers.
	Serve()

	// Stop stops the workers and waits for them to exit.
	Stop()

	// Submit enqueues a job. It blocks while the queue is full.
	Submit(ctx context.Context, job *Job) error

	// Workers returns the number of workers.
	Workers() int

	// Processed returns the number of jobs reported so far.
	Processed() int64
}

type task struct {
	ctx context.Context
	job *Job
}

// pool runs jobs on a fixed number of goroutines.
type pool struct {
	workerNum int
	trainer   trainer.Trainer
	jobs      chan *task
	stopCh    chan struct{}
	eg        *errgroup.Group

	// mu orders enqueues before the final drain in Stop.
	mu        sync.RWMutex
	serveOnce sync.Once
	stopOnce  sync.Once

	inflight  *atomic.Int64
	processed *atomic.Int64
}

// Option is a functional option for configuring the pool.
type Option func(p *pool)

// WithJobQueueSize sets the capacity of the job queue.
func WithJobQueueSize(size int) Option {
	return func(p *pool) {
		if size > 0 {
			p.jobs = make(chan *task, size)
		}
	}
}

// New returns a pool of workerNum workers, one per logical CPU when workerNum is not positive.
func New(t trainer.Trainer, workerNum int, options ...Option) Pool {
	if workerNum <= 0 {
		workerNum = config.DefaultWorkerNum()
	}

	p := &pool{
		workerNum: workerNum,
		trainer:   t,
		jobs:      make(chan *task, config.DefaultJobQueueSize),
		stopCh:    make(chan struct{}),
		eg:        &errgroup.Group{},
		inflight:  atomic.NewInt64(0),
		processed: atomic.NewInt64(0),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

func (p *pool) Serve() {
	p.serveOnce.Do(func() {
		for i := 0; i < p.workerNum; i++ {
			id := i
			p.eg.Go(func() error {
				return safe.Call(func() { p.work(id) })
			})
		}

		logger.Infof("start worker pool with %d workers", p.workerNum)
	})
}

func (p *pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)

		// Wait for submitters that passed the stop check to finish enqueueing.
		p.mu.Lock()
		defer p.mu.Unlock()

		if err := p.eg.Wait(); err != nil {
			logger.Errorf("worker pool exited with error: %s", err.Error())
		}

		// Queued jobs still owe their sink a report.
		for {
			select {
			case t := <-p.jobs:
				p.post(t.job, nil, evaluator.Worst(t.job.Evaluator.Order()))
			default:
				logger.Infof("stop worker pool, %d jobs processed", p.processed.Load())
				return
			}
		}
	})
}

func (p *pool) Submit(ctx context.Context, job *Job) error {
	if job == nil || job.Train == nil || job.Test == nil || job.Evaluator == nil || job.Sink == nil {
		return ErrInvalidJob
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	select {
	case <-p.stopCh:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobs <- &task{ctx: ctx, job: job}:
		return nil
	case <-p.stopCh:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pool) Workers() int {
	return p.workerNum
}

func (p *pool) Processed() int64 {
	return p.processed.Load()
}

func (p *pool) work(id int) {
	logger.Debugf("worker %d started", id)
	for {
		select {
		case <-p.stopCh:
			logger.Debugf("worker %d stopped", id)
			return
		case t := <-p.jobs:
			p.run(t)
		}
	}
}

// run executes one job. Every failure becomes a sentinel score so the
// sink always receives exactly one report.
func (p *pool) run(t *task) {
	job := t.job
	mode := job.Mode.String()
	log := logger.WithJob(job.Pair.Cost, job.Pair.Gamma, job.Fold)

	p.inflight.Inc()
	defer p.inflight.Dec()
	metrics.JobCount.WithLabelValues(mode).Inc()

	var (
		model trainer.Model
		score evaluator.Score
	)

	err := safe.CallE(func() error {
		if err := t.ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		m, err := p.trainer.Train(t.ctx, job.Train, job.Pair)
		metrics.TrainDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}

		if m == nil {
			return errors.New("train: no model returned")
		}

		s, err := job.Evaluator.Evaluate(m, job.Test)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}

		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return fmt.Errorf("evaluate: %w", evaluator.ErrInvalidScore)
		}

		model, score = m, s
		return nil
	})
	if err != nil {
		metrics.JobFailureCount.WithLabelValues(mode).Inc()
		log.Warnf("job failed, use worst score: %s", err.Error())
		model, score = nil, evaluator.Worst(job.Evaluator.Order())
	}

	log.Debugf("job finished with score %s", score)
	p.post(job, model, score)
}

func (p *pool) post(job *Job, model trainer.Model, score evaluator.Score) {
	defer p.processed.Inc()

	if err := job.Sink.Collect(collector.Report{
		Pair:  job.Pair,
		Fold:  job.Fold,
		Model: model,
		Score: score,
	}); err != nil {
		logger.WithJob(job.Pair.Cost, job.Pair.Gamma, job.Fold).Errorf("post report failed: %s", err.Error())
	}
}
