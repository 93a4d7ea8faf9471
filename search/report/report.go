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

package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/result"
	"d7y.io/hypersearch/search/space"
)

// ErrMissingPair is returned when a grid position has no record.
var ErrMissingPair = errors.New("missing pair")

// Row is a record of the score report.
type Row struct {
	// Cost of the pair.
	Cost float64 `csv:"cost"`

	// Gamma of the pair.
	Gamma float64 `csv:"gamma"`

	// Score is the aggregated score of the pair.
	Score float64 `csv:"score"`

	// Sentinel is set when every fold of the pair failed to produce a score.
	Sentinel bool `csv:"sentinel"`
}

// Rows returns the report rows in table order.
func Rows(table *result.Table) []*Row {
	records := table.Records()
	rows := make([]*Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, &Row{
			Cost:     r.Pair.Cost,
			Gamma:    r.Pair.Gamma,
			Score:    r.Score.Value,
			Sentinel: r.Score.Sentinel,
		})
	}

	return rows
}

// WriteCSV writes the table as csv with a header line.
func WriteCSV(w io.Writer, table *result.Table) error {
	return gocsv.Marshal(Rows(table), w)
}

// ReadCSV reads a report written by WriteCSV.
func ReadCSV(r io.Reader) ([]*Row, error) {
	var rows []*Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// Matrix returns the scores of a grid search positionally, one row per
// cost and one column per gamma.
func Matrix(table *result.Table, costs, gammas []float64) ([][]evaluator.Score, error) {
	matrix := make([][]evaluator.Score, 0, len(costs))
	for _, cost := range costs {
		row := make([]evaluator.Score, 0, len(gammas))
		for _, gamma := range gammas {
			pair := space.Pair{Cost: cost, Gamma: gamma}
			r, ok := table.Get(pair)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingPair, pair)
			}

			row = append(row, r.Score)
		}

		matrix = append(matrix, row)
	}

	return matrix, nil
}

// Summary describes the real scores of a table.
type Summary struct {
	Count     int
	Sentinels int
	Min       float64
	Max       float64
	Mean      float64
	Median    float64
	StdDev    float64
}

// Summarize computes the summary of every non sentinel score. Only the
// counts are set when the table holds no real score.
func Summarize(table *result.Table) (Summary, error) {
	summary := Summary{Count: table.Len(), Sentinels: table.Sentinels()}

	values := make(stats.Float64Data, 0, table.Len())
	for _, r := range table.Records() {
		if !r.Score.Sentinel {
			values = append(values, r.Score.Value)
		}
	}

	if len(values) == 0 {
		return summary, nil
	}

	var err error
	if summary.Min, err = values.Min(); err != nil {
		return Summary{}, err
	}

	if summary.Max, err = values.Max(); err != nil {
		return Summary{}, err
	}

	if summary.Mean, err = values.Mean(); err != nil {
		return Summary{}, err
	}

	if summary.Median, err = values.Median(); err != nil {
		return Summary{}, err
	}

	if summary.StdDev, err = values.StandardDeviation(); err != nil {
		return Summary{}, err
	}

	return summary, nil
}
