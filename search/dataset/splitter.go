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

//go:generate mockgen -destination mocks/splitter_mock.go -source splitter.go -package mocks

package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sjwhitworth/golearn/base"
)

const (
	// MinFolds is the smallest fold count of a leave-one-fold-out split.
	MinFolds = 2
)

var (
	// ErrInvalidFolds is returned when k is below MinFolds.
	ErrInvalidFolds = errors.New("invalid fold count")

	// ErrTooFewRows is returned when the dataset cannot fill k folds.
	ErrTooFewRows = errors.New("too few rows for fold count")
)

// Fold is one leave-one-fold-out partition. Test holds fold Index and Train
// holds the union of the other folds. Both are read-only views.
type Fold struct {
	Index int
	Train base.FixedDataGrid
	Test  base.FixedDataGrid
}

// Splitter partitions a dataset into k disjoint folds.
type Splitter interface {
	// Split returns k folds covering every row of data exactly once.
	Split(data base.FixedDataGrid, k int) ([]Fold, error)
}

// splitter assigns contiguous row ranges to folds.
type splitter struct {
	shuffle bool
	seed    int64
}

// Option is a functional option for configuring the splitter.
type Option func(s *splitter)

// WithShuffle permutes rows with a seeded source before splitting.
func WithShuffle(seed int64) Option {
	return func(s *splitter) {
		s.shuffle = true
		s.seed = seed
	}
}

// NewSplitter returns a contiguous splitter. The remainder of an uneven
// split goes to the first folds, one row each, so no row is dropped.
func NewSplitter(options ...Option) Splitter {
	s := &splitter{}
	for _, opt := range options {
		opt(s)
	}

	return s
}

func (s *splitter) Split(data base.FixedDataGrid, k int) ([]Fold, error) {
	if k < MinFolds {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFolds, k)
	}

	if data == nil {
		return nil, ErrEmptyDataset
	}

	_, rows := data.Size()
	if rows < k {
		return nil, fmt.Errorf("%w: %d rows, %d folds", ErrTooFewRows, rows, k)
	}

	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}

	if s.shuffle {
		r := rand.New(rand.NewSource(s.seed))
		r.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	bounds := make([]int, k+1)
	size, remainder := rows/k, rows%k
	for i := 0; i < k; i++ {
		bounds[i+1] = bounds[i] + size
		if i < remainder {
			bounds[i+1]++
		}
	}

	folds := make([]Fold, k)
	attrs := data.AllAttributes()
	for i := 0; i < k; i++ {
		test := make([]int, 0, bounds[i+1]-bounds[i])
		train := make([]int, 0, rows-(bounds[i+1]-bounds[i]))
		for j := 0; j < rows; j++ {
			if j >= bounds[i] && j < bounds[i+1] {
				test = append(test, order[j])
				continue
			}

			train = append(train, order[j])
		}

		// Visible views hide every row that is not listed.
		folds[i] = Fold{
			Index: i,
			Train: base.NewInstancesViewFromVisible(data, train, attrs),
			Test:  base.NewInstancesViewFromVisible(data, test, attrs),
		}
	}

	return folds, nil
}
