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

package ops

import "github.com/mlnoga/nightstats/internal/frame"

// A frame inclusion predicate
type Filter func(seq *frame.Sequence, index int) bool

// Selects every frame
func FilterAll(seq *frame.Sequence, index int) bool { return true }

// Selects frames flagged as included in the sequence
func FilterIncluded(seq *frame.Sequence, index int) bool {
	return seq.Included[index]
}

// Selects the frames with the given indices
func FilterIndices(indices ...int) Filter {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return func(seq *frame.Sequence, index int) bool { return set[index] }
}

// Selects frames which all given filters select
func FilterAnd(filters ...Filter) Filter {
	return func(seq *frame.Sequence, index int) bool {
		for _, f := range filters {
			if !f(seq, index) {
				return false
			}
		}
		return true
	}
}

// Negates a filter
func FilterNot(f Filter) Filter {
	return func(seq *frame.Sequence, index int) bool { return !f(seq, index) }
}

// Returns the indices of the frames selected by the filter, in ascending order.
// A nil filter selects all frames
func SelectFrames(seq *frame.Sequence, f Filter) []int {
	if f == nil {
		f = FilterAll
	}
	res := []int{}
	for i := 0; i < seq.Len(); i++ {
		if f(seq, i) {
			res = append(res, i)
		}
	}
	return res
}
