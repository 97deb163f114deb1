// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stats

import (
	"math"

	"github.com/mlnoga/nightstats/internal/par"
	"github.com/mlnoga/nightstats/internal/pool"
	"github.com/mlnoga/nightstats/internal/qsort"
)

// Constants of the iterative k-sigma estimator
const (
	ikssZeroScale   = 2e-23 // scales below this are numerically zero
	ikssConvergence = 1e-5  // relative change in scale at which iteration stops
	ikssBias        = 0.991 // bias correction for the converged scale
	ikssClip        = 4     // window is clipped to location +/- ikssClip*scale
)

// Calculate the median absolute deviation of the data from the given center.
// Does not modify the data
func MAD[T qsort.Ordered](data []T, center float64, threads int) (float64, error) {
	n := len(data)
	if n == 0 {
		return 0, nil
	}
	if err := Preflight(uint64(n)*4, 0); err != nil {
		return 0, err
	}
	devs := pool.Float32.Get(n)
	defer pool.Float32.Put(devs)
	return madInto(data, center, threads, devs)
}

// Calculate the median absolute deviation of the data from the given center,
// using devs (same length as data) as scratch buffer
func madInto[T qsort.Ordered](data []T, center float64, threads int, devs []float32) (float64, error) {
	devs = devs[:len(data)]
	par.For(len(data), threads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			devs[i] = float32(math.Abs(float64(data[i]) - center))
		}
	})
	return MedianInPlace(devs, threads)
}

// Calculate Tukey's biweight midvariance of the data around the given center,
// typically the median, with a precomputed MAD. Returns 0 if mad is 0,
// or if the denominator vanishes
func BiweightMidvariance[T qsort.Ordered](data []T, mad, center float64) float64 {
	if mad == 0 || len(data) == 0 {
		return 0
	}
	up, down := float64(0), float64(0)
	for _, x := range data {
		xMinusM := float64(x) - center
		y := xMinusM / (9 * mad)
		if y <= -1 || y >= 1 {
			continue
		}
		ySquared := y * y
		oneMinusYSquared := 1 - ySquared
		oneMinusYSquaredSquared := oneMinusYSquared * oneMinusYSquared
		up += xMinusM * xMinusM * oneMinusYSquaredSquared * oneMinusYSquaredSquared
		down += oneMinusYSquared * (1 - 5*ySquared)
	}
	if down == 0 {
		return 0
	}
	return float64(len(data)) * up / (down * down)
}

// Median of sorted data
func sortedMedian[T qsort.Ordered](xs []T) float64 {
	n := len(xs)
	if n&1 != 0 {
		return float64(xs[n>>1])
	}
	return 0.5 * (float64(xs[n>>1-1]) + float64(xs[n>>1]))
}

// Returns the iterative k-sigma estimators of location and scale. Sorts the data in place.
// Expects data normalized to [0,1], as the first iteration compares against a scale of 1.
// Returns 0, 0 for empty data, and a scale of 0 for (numerically) constant data
func IKSS[T qsort.Ordered](data []T, threads int) (location, scale float64, err error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	if err := Preflight(uint64(len(data))*4, 0); err != nil {
		return 0, 0, err
	}
	qsort.Sort(data)
	devs := pool.Float32.Get(len(data))
	defer pool.Float32.Put(devs)

	i, j := 0, len(data)
	s0 := float64(1)
	for {
		if j-i < 1 {
			return 0, 0, nil
		}
		xs := data[i:j]
		m := sortedMedian(xs) // median is easy as xs are sorted
		mad, err := madInto(xs, m, threads, devs)
		if err != nil {
			return 0, 0, err
		}
		s := math.Sqrt(BiweightMidvariance(xs, mad, m))
		if s < ikssZeroScale {
			return m, 0, nil
		}
		if (s0-s)/s < ikssConvergence {
			return m, ikssBias * s, nil
		}
		s0 = s

		xlow, xhigh := m-ikssClip*s, m+ikssClip*s
		for i < j && float64(data[i]) < xlow {
			i++
		}
		for j > i && float64(data[j-1]) > xhigh {
			j--
		}
	}
}
