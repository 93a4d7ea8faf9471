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

package evaluator

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

var (
	// ErrNoScores is returned when reducing an empty score list.
	ErrNoScores = errors.New("no scores to reduce")

	// ErrOrderMismatch is returned when scores of different orders are reduced.
	ErrOrderMismatch = errors.New("scores have different orders")
)

// Order tells which direction of a score value is better.
type Order int

const (
	// HigherIsBetter is the order of accuracy like metrics.
	HigherIsBetter Order = iota

	// LowerIsBetter is the order of error like metrics.
	LowerIsBetter
)

// String returns the order name.
func (o Order) String() string {
	switch o {
	case HigherIsBetter:
		return "higher"
	case LowerIsBetter:
		return "lower"
	}

	return fmt.Sprintf("Order(%d)", int(o))
}

// Score is the result of evaluating a model on a dataset.
type Score struct {
	Value    float64 `json:"value"`
	Order    Order   `json:"order"`
	Sentinel bool    `json:"sentinel"`
}

// Worst returns the sentinel substituted for failed jobs. Its value is
// finite and ranks below every real score of the same order.
func Worst(order Order) Score {
	value := -math.MaxFloat64
	if order == LowerIsBetter {
		value = math.MaxFloat64
	}

	return Score{Value: value, Order: order, Sentinel: true}
}

// BetterThan reports whether s strictly outranks other. A sentinel never
// outranks anything and scores of different orders are incomparable.
func (s Score) BetterThan(other Score) bool {
	if s.Sentinel {
		return false
	}

	if other.Sentinel {
		return true
	}

	if s.Order != other.Order {
		return false
	}

	if s.Order == LowerIsBetter {
		return s.Value < other.Value
	}

	return s.Value > other.Value
}

// String returns the log representation of the score.
func (s Score) String() string {
	if s.Sentinel {
		return "worst"
	}

	return fmt.Sprintf("%g", s.Value)
}

// Mean reduces per fold scores into one. Any sentinel input yields a
// sentinel.
func Mean(scores ...Score) (Score, error) {
	if len(scores) == 0 {
		return Score{}, ErrNoScores
	}

	order := scores[0].Order
	values := make(stats.Float64Data, 0, len(scores))
	sentinel := false
	for _, score := range scores {
		if score.Order != order {
			return Score{}, ErrOrderMismatch
		}

		if score.Sentinel {
			sentinel = true
			continue
		}

		values = append(values, score.Value)
	}

	if sentinel {
		return Worst(order), nil
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return Score{}, err
	}

	return Score{Value: mean, Order: order}, nil
}
