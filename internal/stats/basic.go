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
	"github.com/mlnoga/nightstats/internal/qsort"
)

// Calculate minimum and maximum of given data in parallel. Returns 0, 0 for empty data
func MinMax[T qsort.Ordered](data []T, threads int) (min, max float64) {
	if len(data) == 0 {
		return 0, 0
	}
	if threads < 1 {
		threads = 1
	}
	mins, maxs := make([]T, threads), make([]T, threads)
	workers := par.ForWorkers(len(data), threads, func(worker, lower, upper int) {
		mmin, mmax := data[lower], data[lower]
		for _, v := range data[lower+1 : upper] {
			if v < mmin {
				mmin = v
			} else if v > mmax {
				mmax = v
			}
		}
		mins[worker], maxs[worker] = mmin, mmax
	})

	mmin, mmax := mins[0], maxs[0]
	for w := 1; w < workers; w++ {
		if mins[w] < mmin {
			mmin = mins[w]
		}
		if maxs[w] > mmax {
			mmax = maxs[w]
		}
	}
	return float64(mmin), float64(mmax)
}

// Calculate mean and sample standard deviation (n-1 normalization) of given data in parallel,
// with float64 accumulation. Sigma is 0 for fewer than two samples
func MeanSigma[T qsort.Ordered](data []T, threads int) (mean, sigma float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	if threads < 1 {
		threads = 1
	}
	sums := make([]float64, threads)
	workers := par.ForWorkers(n, threads, func(worker, lower, upper int) {
		sum := float64(0)
		for _, v := range data[lower:upper] {
			sum += float64(v)
		}
		sums[worker] = sum
	})
	sum := float64(0)
	for _, s := range sums[:workers] {
		sum += s
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}

	workers = par.ForWorkers(n, threads, func(worker, lower, upper int) {
		sumSq := float64(0)
		for _, v := range data[lower:upper] {
			diff := float64(v) - mean
			sumSq += diff * diff
		}
		sums[worker] = sumSq
	})
	sumSq := float64(0)
	for _, s := range sums[:workers] {
		sumSq += s
	}
	return mean, math.Sqrt(sumSq / float64(n-1))
}

// Calculate the mean absolute deviation of the data from the given center, typically the median
func AvgDev[T qsort.Ordered](data []T, center float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := float64(0)
	for _, v := range data {
		sum += math.Abs(float64(v) - center)
	}
	return sum / float64(len(data))
}

// Returns a compact copy of the data with all zero (null) samples removed
func Compact[T qsort.Ordered](data []T) []T {
	good := 0
	for _, v := range data {
		if v != 0 {
			good++
		}
	}
	res := make([]T, 0, good)
	for _, v := range data {
		if v != 0 {
			res = append(res, v)
		}
	}
	return res
}
