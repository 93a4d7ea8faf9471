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

// Package space generates the candidate (cost, gamma) pairs of a search round.
package space

import (
	"fmt"
	"math"

	pkgmath "d7y.io/hypersearch/pkg/math"
	"d7y.io/hypersearch/pkg/slices"
)

// Pair is a candidate hyperparameter combination. It is comparable and
// used as the identity key of a score.
type Pair struct {
	Cost  float64 `csv:"cost" json:"cost" mapstructure:"cost"`
	Gamma float64 `csv:"gamma" json:"gamma" mapstructure:"gamma"`
}

// String returns the log representation of the pair.
func (p Pair) String() string {
	return fmt.Sprintf("(cost=%g, gamma=%g)", p.Cost, p.Gamma)
}

// Near reports whether p and q are closer than tol in both dimensions.
func (p Pair) Near(q Pair, tol Resolution) bool {
	return math.Abs(p.Cost-q.Cost) <= tol.Cost && math.Abs(p.Gamma-q.Gamma) <= tol.Gamma
}

// Resolution is the stencil step of each dimension.
type Resolution struct {
	Cost  float64 `json:"cost" mapstructure:"cost"`
	Gamma float64 `json:"gamma" mapstructure:"gamma"`
}

// nearFraction is the share of the resolution under which two pairs
// are the same point.
const nearFraction = 1e-9

// Shrink returns r divided by sqrt(2) rounds times. Even rounds halve r
// exactly so stencil points of round i and i+2 line up.
func (r Resolution) Shrink(rounds int) Resolution {
	return Resolution{
		Cost:  shrink(r.Cost, rounds),
		Gamma: shrink(r.Gamma, rounds),
	}
}

func shrink(v float64, rounds int) float64 {
	if rounds <= 0 {
		return v
	}

	if rounds%2 == 1 {
		v /= math.Sqrt2
	}

	return math.Ldexp(v, -rounds/2)
}

// Tolerance returns the distance under which pairs stenciled at r collapse.
func (r Resolution) Tolerance() Resolution {
	return Resolution{
		Cost:  r.Cost * nearFraction,
		Gamma: r.Gamma * nearFraction,
	}
}

// String returns the log representation of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("(cost=%g, gamma=%g)", r.Cost, r.Gamma)
}

// InitialResolution returns the starting resolution of a bound box.
func InitialResolution(costMin, costMax, gammaMin, gammaMax float64) Resolution {
	return Resolution{
		Cost:  (pkgmath.Abs(costMax) + pkgmath.Abs(costMin)) / 2,
		Gamma: (pkgmath.Abs(gammaMax) + pkgmath.Abs(gammaMin)) / 2,
	}
}

// Midpoint returns the center of a bound box.
func Midpoint(costMin, costMax, gammaMin, gammaMax float64) Pair {
	return Pair{
		Cost:  (costMin + costMax) / 2,
		Gamma: (gammaMin + gammaMax) / 2,
	}
}

// Space is the ordered set of pairs evaluated in one round.
type Space []Pair

// Grid returns the Cartesian product of costs and gammas, cost outer.
func Grid(costs, gammas []float64) Space {
	s := make(Space, 0, len(costs)*len(gammas))
	for _, cost := range costs {
		for _, gamma := range gammas {
			s = append(s, Pair{Cost: cost, Gamma: gamma})
		}
	}

	return s
}

var (
	fullSteps = []float64{-1, 0, 1}
	halfSteps = []float64{-0.5, 0.5}
)

// Stencil returns the 13 point pattern around center: the 3x3 grid at
// {-1, 0, +1} resolution followed by the 2x2 grid at {-0.5, +0.5}
// resolution, cost outer in both.
func Stencil(center Pair, res Resolution) Space {
	s := make(Space, 0, len(fullSteps)*len(fullSteps)+len(halfSteps)*len(halfSteps))
	for _, steps := range [][]float64{fullSteps, halfSteps} {
		for _, dc := range steps {
			for _, dg := range steps {
				s = append(s, Pair{
					Cost:  center.Cost + dc*res.Cost,
					Gamma: center.Gamma + dg*res.Gamma,
				})
			}
		}
	}

	return s
}

// Without drops pairs for which seen returns true and duplicates within
// the space, keeping the generation order.
func (s Space) Without(seen func(Pair) bool) Space {
	unique := slices.RemoveDuplicates(s)
	if seen == nil {
		return Space(unique)
	}

	return slices.Filter(Space(unique), func(p Pair) bool {
		return !seen(p)
	})
}

// WithoutNear drops pairs within tol of a visited pair, then applies Without.
func (s Space) WithoutNear(visited []Pair, tol Resolution, seen func(Pair) bool) Space {
	near := slices.Filter(s, func(p Pair) bool {
		for _, v := range visited {
			if p.Near(v, tol) {
				return false
			}
		}

		return true
	})

	return near.Without(seen)
}

// Contains reports whether p is part of the space.
func (s Space) Contains(p Pair) bool {
	return slices.Contains(s, p)
}

// Index returns the position of every pair, used as dispatch sequence.
func (s Space) Index() map[Pair]int {
	index := make(map[Pair]int, len(s))
	for i, p := range s {
		if _, ok := index[p]; !ok {
			index[p] = i
		}
	}

	return index
}

// Bounds returns the componentwise minimum and maximum of the space.
func (s Space) Bounds() (Pair, Pair, bool) {
	if len(s) == 0 {
		return Pair{}, Pair{}, false
	}

	costs := make([]float64, len(s))
	gammas := make([]float64, len(s))
	for i, p := range s {
		costs[i] = p.Cost
		gammas[i] = p.Gamma
	}

	return Pair{Cost: pkgmath.Min(costs...), Gamma: pkgmath.Min(gammas...)},
		Pair{Cost: pkgmath.Max(costs...), Gamma: pkgmath.Max(gammas...)},
		true
}

// Exp2Range returns 2^from, 2^(from+1), ..., 2^to.
func Exp2Range(from, to int) []float64 {
	if to < from {
		return nil
	}

	values := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		values = append(values, math.Ldexp(1, i))
	}

	return values
}

// Linspace returns steps evenly spaced values over [min, max].
func Linspace(min, max float64, steps int) []float64 {
	switch {
	case steps <= 0:
		return nil
	case steps == 1:
		return []float64{min}
	}

	values := make([]float64, steps)
	delta := (max - min) / float64(steps-1)
	for i := range values {
		values[i] = min + float64(i)*delta
	}
	values[steps-1] = max

	return values
}
