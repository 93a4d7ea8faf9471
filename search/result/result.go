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

package result

import (
	"errors"
	"fmt"

	"d7y.io/hypersearch/search/evaluator"
	"d7y.io/hypersearch/search/space"
)

// ErrDuplicateKey is returned when a pair is inserted twice.
var ErrDuplicateKey = errors.New("duplicate pair")

// Record is the aggregated score of one pair.
type Record struct {
	Pair  space.Pair
	Score evaluator.Score
}

// Table maps pairs to records. It is insertion-only and iterates in
// insertion order. A Table is not safe for concurrent use.
type Table struct {
	records []Record
	index   map[space.Pair]int
}

// New returns an empty table.
func New() *Table {
	return &Table{
		index: make(map[space.Pair]int),
	}
}

// Insert adds a record, failing if its pair is already present.
func (t *Table) Insert(r Record) error {
	if _, ok := t.index[r.Pair]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, r.Pair)
	}

	t.index[r.Pair] = len(t.records)
	t.records = append(t.records, r)
	return nil
}

// Has reports whether pair has a record.
func (t *Table) Has(pair space.Pair) bool {
	_, ok := t.index[pair]
	return ok
}

// Get returns the record of pair.
func (t *Table) Get(pair space.Pair) (Record, bool) {
	i, ok := t.index[pair]
	if !ok {
		return Record{}, false
	}

	return t.records[i], true
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of the records in insertion order.
func (t *Table) Records() []Record {
	records := make([]Record, len(t.records))
	copy(records, t.records)
	return records
}

// Merge inserts every record of other, in other's order. Nothing is
// inserted when any pair is already present.
func (t *Table) Merge(other *Table) error {
	for _, r := range other.records {
		if t.Has(r.Pair) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, r.Pair)
		}
	}

	for _, r := range other.records {
		if err := t.Insert(r); err != nil {
			return err
		}
	}

	return nil
}

// Best returns the highest ranked record. Ties go to the record inserted
// first. When every score is a sentinel the first record is returned.
func (t *Table) Best() (Record, bool) {
	if len(t.records) == 0 {
		return Record{}, false
	}

	best := t.records[0]
	for _, r := range t.records[1:] {
		if r.Score.BetterThan(best.Score) {
			best = r
		}
	}

	return best, true
}

// Sentinels returns the number of records holding a sentinel score.
func (t *Table) Sentinels() int {
	n := 0
	for _, r := range t.records {
		if r.Score.Sentinel {
			n++
		}
	}

	return n
}
