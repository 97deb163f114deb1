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

package qsort

import (
	"golang.org/x/exp/constraints"
)

// Numeric element types which can be sorted and selected on.
// Floating point arrays must not contain IEEE NaN
type Ordered interface {
	constraints.Integer | constraints.Float
}

// Partitions at or below this size are finished with insertion sort
const insertionCutoff = 32

// Sort an array in ascending order. Quicksort with middle pivot and
// Hoare partitioning, insertion sort for small partitions. Not stable.
// Array must not contain IEEE NaN
func Sort[T Ordered](a []T) {
	for len(a) > insertionCutoff {
		index := Partition(a)
		// recurse into the smaller half, iterate on the larger one
		if index+1 < len(a)-(index+1) {
			Sort(a[:index+1])
			a = a[index+1:]
		} else {
			Sort(a[index+1:])
			a = a[:index+1]
		}
	}
	InsertionSort(a)
}

// Sort a (small) array in ascending order with insertion sort
func InsertionSort[T Ordered](a []T) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for ; j >= 0 && a[j] > v; j-- {
			a[j+1] = a[j]
		}
		a[j+1] = v
	}
}

// Partitions an array with the middle pivot element, and returns the partition index r.
// Afterwards all of a[:r+1] are less or equal all of a[r+1:]. Requires len(a)>=2.
// Array must not contain IEEE NaN
func Partition[T Ordered](a []T) int {
	left, right := 0, len(a)-1
	mid := (left + right) >> 1
	pivot := a[mid]
	l := left - 1
	r := right + 1
	for {
		for {
			l++
			if a[l] >= pivot {
				break
			}
		}
		for {
			r--
			if a[r] <= pivot {
				break
			}
		}
		if l >= r {
			return r
		}
		a[l], a[r] = a[r], a[l]
	}
}

// Select the k-th lowest element (0-based) from an array. Partially reorders the array so that
// a[:k] <= a[k] <= a[k+1:] on return. Array must not contain IEEE NaN
func Select[T Ordered](a []T, k int) T {
	left, right := 0, len(a)-1
	for left < right {
		index := left + Partition(a[left:right+1])
		if k <= index {
			right = index
		} else {
			left = index + 1
		}
	}
	return a[k]
}

// Select median of an array. For even lengths, returns the mean of the two central
// order statistics. Partially reorders the array. Returns 0 for an empty array.
// Array must not contain IEEE NaN
func QuickSelectMedian[T Ordered](a []T) float64 {
	n := len(a)
	switch {
	case n == 0:
		return 0
	case n < 9:
		SortingNetwork(a)
		if n&1 != 0 {
			return float64(a[n>>1])
		}
		return 0.5 * (float64(a[n>>1-1]) + float64(a[n>>1]))
	case n == 9:
		// the median network overwrites elements, so work on a copy
		var tmp [9]T
		copy(tmp[:], a)
		return float64(MedianNetwork9(tmp[:]))
	}

	k := n >> 1
	upper := Select(a, k)
	if n&1 != 0 {
		return float64(upper)
	}
	// a[:k] holds the k lowest values now, so the lower middle is their maximum
	lower := a[0]
	for _, v := range a[1:k] {
		if v > lower {
			lower = v
		}
	}
	return 0.5 * (float64(lower) + float64(upper))
}
