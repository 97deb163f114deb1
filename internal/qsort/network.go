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
	"fmt"
)

// A comparator of a sorting network: after applying it, a[I]<=a[J]
type Comparator struct {
	I, J int
}

// Optimal sorting networks for 1..9 elements, indexed by length. Comparator order matters.
// See http://ndevilla.free.fr/median/median/src/optmed.c and
// https://bertdobbelaere.github.io/sorting_networks.html
var networks = [10][]Comparator{
	0: nil,
	1: nil,
	2: {{0, 1}},
	3: {{0, 2}, {0, 1}, {1, 2}},
	4: {{0, 2}, {1, 3}, {0, 1}, {2, 3}, {1, 2}},
	5: {{0, 3}, {1, 4}, {0, 2}, {1, 3}, {0, 1}, {2, 4}, {1, 2}, {3, 4}, {2, 3}},
	6: {{0, 5}, {1, 3}, {2, 4}, {1, 2}, {3, 4}, {0, 3}, {2, 5}, {0, 1}, {2, 3}, {4, 5},
		{1, 2}, {3, 4}},
	7: {{0, 6}, {2, 3}, {4, 5}, {0, 2}, {1, 4}, {3, 6}, {0, 1}, {2, 5}, {3, 4}, {1, 2},
		{4, 6}, {2, 3}, {4, 5}, {1, 2}, {3, 4}, {5, 6}},
	8: {{0, 2}, {1, 3}, {4, 6}, {5, 7}, {0, 4}, {1, 5}, {2, 6}, {3, 7}, {0, 1}, {2, 3},
		{4, 5}, {6, 7}, {2, 4}, {3, 5}, {1, 4}, {3, 6}, {1, 2}, {3, 4}, {5, 6}},
	9: {{0, 3}, {1, 7}, {2, 5}, {4, 8}, {0, 7}, {2, 4}, {3, 8}, {5, 6}, {0, 2}, {1, 3},
		{4, 5}, {7, 8}, {1, 4}, {3, 6}, {5, 7}, {0, 1}, {2, 4}, {3, 5}, {6, 8}, {2, 3},
		{4, 5}, {6, 7}, {1, 2}, {3, 4}, {5, 6}},
}

// Maximum array length supported by SortingNetwork
const MaxNetworkSize = 9

// Returns the comparator sequence of the sorting network for n elements, n in [1,9].
// The returned slice must not be modified
func Network(n int) []Comparator {
	if n < 1 || n > MaxNetworkSize {
		panic(fmt.Sprintf("qsort: no sorting network for %d elements", n))
	}
	return networks[n]
}

// Sorts an array of 1..9 elements in place with a fixed compare-and-swap sequence.
// Array must not contain IEEE NaN
func SortingNetwork[T Ordered](a []T) {
	for _, c := range Network(len(a)) {
		if a[c.I] > a[c.J] {
			a[c.I], a[c.J] = a[c.J], a[c.I]
		}
	}
}

// Calculates the median of a slice of length nine with a partial network of 19 min/max
// operations. Overwrites elements in place, the result is not a permutation of the input.
// From https://stackoverflow.com/questions/45453537/optimal-9-element-sorting-network-that-reduces-to-an-optimal-median-of-9-network
// Array must not contain IEEE NaN
func MedianNetwork9[T Ordered](a []T) T {
	_ = a[8] // bounds check hint

	if a[0] > a[1] {
		a[0], a[1] = a[1], a[0]
	} // swap(a,0,1)
	if a[3] > a[4] {
		a[3], a[4] = a[4], a[3]
	} // swap(a,3,4)
	if a[6] > a[7] {
		a[6], a[7] = a[7], a[6]
	} // swap(a,6,7)
	if a[1] > a[2] {
		a[1], a[2] = a[2], a[1]
	} // swap(a,1,2)
	if a[4] > a[5] {
		a[4], a[5] = a[5], a[4]
	} // swap(a,4,5)
	if a[7] > a[8] {
		a[7], a[8] = a[8], a[7]
	} // swap(a,7,8)
	if a[0] > a[1] {
		a[0], a[1] = a[1], a[0]
	} // swap(a,0,1)
	if a[3] > a[4] {
		a[3], a[4] = a[4], a[3]
	} // swap(a,3,4)
	if a[6] > a[7] {
		a[6], a[7] = a[7], a[6]
	} // swap(a,6,7)
	if a[0] > a[3] {
		a[3] = a[0]
	} // max (a,0,3)
	if a[3] > a[6] {
		a[6] = a[3]
	} // max (a,3,6)
	if a[1] > a[4] {
		a[1], a[4] = a[4], a[1]
	} // swap(a,1,4)
	if a[4] > a[7] {
		a[4] = a[7]
	} // min (a,4,7)
	if a[1] > a[4] {
		a[4] = a[1]
	} // max (a,1,4)
	if a[5] > a[8] {
		a[5] = a[8]
	} // min (a,5,8)
	if a[2] > a[5] {
		a[2] = a[5]
	} // min (a,2,5)
	if a[2] > a[4] {
		a[2], a[4] = a[4], a[2]
	} // swap(a,2,4)
	if a[4] > a[6] {
		a[4] = a[6]
	} // min (a,4,6)
	if a[2] > a[4] {
		a[4] = a[2]
	} // max (a,2,4)
	return a[4]
}
