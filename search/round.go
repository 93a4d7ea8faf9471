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

package search

import (
	"github.com/looplab/fsm"

	logger "d7y.io/hypersearch/internal/dflog"
	"d7y.io/hypersearch/search/result"
	"d7y.io/hypersearch/search/space"
)

const (
	// Round is building and filtering its parameter space.
	RoundStateBuildingSpace = "BuildingSpace"

	// Round is submitting jobs to the worker pool.
	RoundStateDispatching = "Dispatching"

	// Round is waiting for the collector barrier.
	RoundStateAwaitingCollection = "AwaitingCollection"

	// Round table is merged into the accumulated table.
	RoundStateMerging = "Merging"

	// Resolution is shrunk for the next round.
	RoundStateShrinking = "Shrinking"

	// Search is over.
	RoundStateTerminated = "Terminated"
)

const (
	// Round starts dispatching jobs.
	RoundEventDispatch = "Dispatch"

	// Every job of the round is submitted.
	RoundEventAwait = "Await"

	// Collector released the barrier.
	RoundEventMerge = "Merge"

	// Round table is merged.
	RoundEventShrink = "Shrink"

	// Next round starts.
	RoundEventNext = "Next"

	// Search ends, successfully or not.
	RoundEventTerminate = "Terminate"
)

// Round is the observation of one completed round.
type Round struct {
	// Iteration starts at 1.
	Iteration int

	// Center of the round's stencil.
	Center space.Pair

	// Resolution of the round's stencil.
	Resolution space.Resolution

	// Pairs are the dispatched pairs after filtering.
	Pairs space.Space

	// Best is the best record of this round, valid when Found is set.
	Best result.Record

	// Found is false for a round without pairs.
	Found bool

	// NextCenter is the center of the following round.
	NextCenter space.Pair

	// NextResolution is the resolution of the following round.
	NextResolution space.Resolution
}

// newRoundFSM returns the round state machine of a search.
func newRoundFSM(log *logger.SugaredLoggerOnWith) *fsm.FSM {
	return fsm.NewFSM(
		RoundStateBuildingSpace,
		fsm.Events{
			{Name: RoundEventDispatch, Src: []string{RoundStateBuildingSpace}, Dst: RoundStateDispatching},
			{Name: RoundEventAwait, Src: []string{RoundStateDispatching}, Dst: RoundStateAwaitingCollection},
			{Name: RoundEventMerge, Src: []string{RoundStateAwaitingCollection}, Dst: RoundStateMerging},
			{Name: RoundEventShrink, Src: []string{RoundStateMerging}, Dst: RoundStateShrinking},
			{Name: RoundEventNext, Src: []string{RoundStateShrinking}, Dst: RoundStateBuildingSpace},
			{Name: RoundEventTerminate, Src: []string{
				RoundStateBuildingSpace, RoundStateDispatching, RoundStateAwaitingCollection,
				RoundStateMerging, RoundStateShrinking,
			}, Dst: RoundStateTerminated},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				log.Debugf("round state is %s", e.Dst)
			},
		},
	)
}
