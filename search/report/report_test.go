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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/result"
	"d7y.io/hypersearch/search/space"
)

func mockTable(t *testing.T) *result.Table {
	table := result.New()
	for _, r := range []result.Record{
		{Pair: space.Pair{Cost: 1, Gamma: 1}, Score: evaluator.Score{Value: 2}},
		{Pair: space.Pair{Cost: 1, Gamma: 2}, Score: evaluator.Score{Value: 3}},
		{Pair: space.Pair{Cost: 2, Gamma: 1}, Score: evaluator.Score{Value: 3}},
		{Pair: space.Pair{Cost: 2, Gamma: 2}, Score: evaluator.Score{Value: 4}},
	} {
		if err := table.Insert(r); err != nil {
			t.Fatal(err)
		}
	}

	return table
}

func TestWriteCSV(t *testing.T) {
	assert := assert.New(t)
	table := mockTable(t)

	var buf bytes.Buffer
	assert.NoError(WriteCSV(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(lines, 5)
	assert.Equal("cost,gamma,score,sentinel", lines[0])
	assert.Equal("1,2,3,false", lines[2])

	rows, err := ReadCSV(&buf)
	assert.NoError(err)
	assert.Equal(Rows(table), rows)
}

func TestMatrix(t *testing.T) {
	tests := []struct {
		name   string
		costs  []float64
		gammas []float64
		expect func(t *testing.T, matrix [][]evaluator.Score, err error)
	}{
		{
			name:   "grid order",
			costs:  []float64{2, 1},
			gammas: []float64{1, 2},
			expect: func(t *testing.T, matrix [][]evaluator.Score, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Len(matrix, 2)
				assert.Equal(3.0, matrix[0][0].Value)
				assert.Equal(4.0, matrix[0][1].Value)
				assert.Equal(2.0, matrix[1][0].Value)
				assert.Equal(3.0, matrix[1][1].Value)
			},
		},
		{
			name:   "missing pair",
			costs:  []float64{1},
			gammas: []float64{1, 3},
			expect: func(t *testing.T, matrix [][]evaluator.Score, err error) {
				assert := assert.New(t)
				assert.ErrorIs(err, ErrMissingPair)
				assert.Nil(matrix)
			},
		},
		{
			name:   "empty candidates",
			costs:  nil,
			gammas: []float64{1},
			expect: func(t *testing.T, matrix [][]evaluator.Score, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Empty(matrix)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matrix, err := Matrix(mockTable(t), tc.costs, tc.gammas)
			tc.expect(t, matrix, err)
		})
	}
}

func TestSummarize(t *testing.T) {
	assert := assert.New(t)
	table := mockTable(t)
	assert.NoError(table.Insert(result.Record{Pair: space.Pair{Cost: 3, Gamma: 3}, Score: evaluator.Worst(evaluator.HigherIsBetter)}))

	summary, err := Summarize(table)
	assert.NoError(err)
	assert.Equal(5, summary.Count)
	assert.Equal(1, summary.Sentinels)
	assert.Equal(2.0, summary.Min)
	assert.Equal(4.0, summary.Max)
	assert.Equal(3.0, summary.Mean)
	assert.Equal(3.0, summary.Median)
	assert.InDelta(0.7071, summary.StdDev, 1e-4)

	summary, err = Summarize(result.New())
	assert.NoError(err)
	assert.Equal(Summary{}, summary)
}
