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

package config

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"

	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/space"
)

const (
	// DefaultMetricsAddr is default address for metrics server.
	DefaultMetricsAddr = ":8000"

	// DefaultJobQueueSize is default capacity of the worker job queue.
	DefaultJobQueueSize = 1024

	// DefaultEvaluator is default evaluator name.
	DefaultEvaluator = evaluator.DefaultName

	// DefaultEpochs is default number of training epochs.
	DefaultEpochs = 20
)

const (
	// DefaultGridCostExpMin is the smallest default cost exponent of grid search.
	DefaultGridCostExpMin = -2

	// DefaultGridCostExpMax is the largest default cost exponent of grid search.
	DefaultGridCostExpMax = 3

	// DefaultGridGammaExpMin is the smallest default gamma exponent of grid search.
	DefaultGridGammaExpMin = -2

	// DefaultGridGammaExpMax is the largest default gamma exponent of grid search.
	DefaultGridGammaExpMax = 3
)

const (
	// DefaultPatternFolds is default fold count of pattern search.
	DefaultPatternFolds = 3

	// DefaultPatternCostMin is default lower cost bound of pattern search.
	DefaultPatternCostMin = -5

	// DefaultPatternCostMax is default upper cost bound of pattern search.
	DefaultPatternCostMax = 15

	// DefaultPatternGammaMin is default lower gamma bound of pattern search.
	DefaultPatternGammaMin = -15

	// DefaultPatternGammaMax is default upper gamma bound of pattern search.
	DefaultPatternGammaMax = 9

	// DefaultPatternMaxIterations is default iteration budget of pattern search.
	DefaultPatternMaxIterations = 1
)

const (
	// DefaultLogRotateMaxSize is default size in megabytes of a log file before rotation.
	DefaultLogRotateMaxSize = 1024

	// DefaultLogRotateMaxAge is default number of days to retain old log files.
	DefaultLogRotateMaxAge = 7

	// DefaultLogRotateMaxBackups is default number of old log files to keep.
	DefaultLogRotateMaxBackups = 20
)

var (
	// DefaultGridCosts is default cost candidates of grid search.
	DefaultGridCosts = space.Exp2Range(DefaultGridCostExpMin, DefaultGridCostExpMax)

	// DefaultGridGammas is default gamma candidates of grid search.
	DefaultGridGammas = space.Exp2Range(DefaultGridGammaExpMin, DefaultGridGammaExpMax)
)

// DefaultWorkerNum returns the number of logical CPUs.
func DefaultWorkerNum() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}

	return n
}
