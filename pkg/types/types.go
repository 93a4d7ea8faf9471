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

package types

const (
	// HypersearchName is the name of the binary and its log directory.
	HypersearchName = "hypersearch"
)

const (
	// MetricsNamespace is the prometheus namespace of all metrics.
	MetricsNamespace = "hypersearch"

	// SearchMetricsName is the subsystem of search metrics.
	SearchMetricsName = "search"

	// WorkerMetricsName is the subsystem of worker pool metrics.
	WorkerMetricsName = "worker"
)

// SearchMode is the strategy of a search.
type SearchMode string

const (
	// GridSearchMode evaluates the full Cartesian product in one round.
	GridSearchMode SearchMode = "grid"

	// PatternSearchMode iteratively shrinks a stencil around the best point.
	PatternSearchMode SearchMode = "doe"
)

// String returns the mode name.
func (m SearchMode) String() string {
	return string(m)
}
