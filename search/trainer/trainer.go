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

//go:generate mockgen -destination mocks/trainer_mock.go -source trainer.go -package mocks

package trainer

import (
	"context"
	"math"

	"github.com/sjwhitworth/golearn/base"

	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/search/models"
	"d7y.io/hypersearch/search/space"
)

// Model is a fitted classifier.
type Model interface {
	// Predict returns a prediction grid aligned row by row with its input.
	Predict(base.FixedDataGrid) (base.FixedDataGrid, error)
}

// Trainer is the interface used for fitting one model per parameter pair.
type Trainer interface {
	// Train fits a model on data with the given pair.
	Train(ctx context.Context, data base.FixedDataGrid, pair space.Pair) (Model, error)
}

// kernelTrainer fits kernel perceptron models.
type kernelTrainer struct {
	// log2Scale treats pairs as base 2 exponents.
	log2Scale bool

	// epochs is the number of passes over the training data.
	epochs int
}

// Option is a functional option for configuring the trainer.
type Option func(t *kernelTrainer)

// WithLog2Scale trains with 2^cost and 2^gamma instead of the raw pair.
func WithLog2Scale() Option {
	return func(t *kernelTrainer) {
		t.log2Scale = true
	}
}

// WithEpochs sets the number of training epochs.
func WithEpochs(epochs int) Option {
	return func(t *kernelTrainer) {
		t.epochs = epochs
	}
}

// New returns the default Trainer.
func New(options ...Option) Trainer {
	t := &kernelTrainer{
		epochs: models.DefaultEpochs,
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

func (t *kernelTrainer) Train(ctx context.Context, data base.FixedDataGrid, pair space.Pair) (Model, error) {
	cost, gamma := pair.Cost, pair.Gamma
	if t.log2Scale {
		cost, gamma = math.Exp2(cost), math.Exp2(gamma)
	}

	model, err := models.NewKernelPerceptron(cost, gamma, t.epochs)
	if err != nil {
		return nil, err
	}

	if err := model.Fit(ctx, data); err != nil {
		return nil, err
	}

	logger.Debugf("fitted model for %s with %d support vectors", pair, len(model.SupportVectors))
	return model, nil
}
