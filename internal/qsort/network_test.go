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
	"sort"
	"testing"

	"github.com/valyala/fastrand"
)

func TestNetworkComparatorCounts(t *testing.T) {
	want := []int{0, 0, 1, 3, 5, 9, 12, 16, 19, 25}
	for n := 1; n <= MaxNetworkSize; n++ {
		if got := len(Network(n)); got != want[n] {
			t.Errorf("network(%d) has %d comparators; want %d", n, got, want[n])
		}
		for _, c := range Network(n) {
			if c.I < 0 || c.J >= n || c.I >= c.J {
				t.Errorf("network(%d) has invalid comparator %v", n, c)
			}
		}
	}
}

// By the 0-1 principle, a network sorts all inputs iff it sorts all binary inputs
func TestSortingNetworkZeroOne(t *testing.T) {
	for n := 1; n <= MaxNetworkSize; n++ {
		a := make([]uint8, n)
		for bits := 0; bits < 1<<n; bits++ {
			ones := 0
			for i := 0; i < n; i++ {
				a[i] = uint8((bits >> i) & 1)
				ones += int(a[i])
			}
			SortingNetwork(a)
			for i := 0; i < n; i++ {
				want := uint8(0)
				if i >= n-ones {
					want = 1
				}
				if a[i] != want {
					t.Fatalf("n=%d input %b: a[%d]=%d; want %d", n, bits, i, a[i], want)
				}
			}
		}
	}
}

func TestSortingNetworkMatchesStableSort(t *testing.T) {
	rng := fastrand.RNG{}
	for n := 1; n <= MaxNetworkSize; n++ {
		for iter := 0; iter < 1000; iter++ {
			a := make([]float64, n)
			for i := range a {
				a[i] = float64(rng.Uint32n(10)) - 4.5
			}
			expect := append([]float64(nil), a...)
			sort.SliceStable(expect, func(i, j int) bool { return expect[i] < expect[j] })

			SortingNetwork(a)
			for i := range a {
				if a[i] != expect[i] {
					t.Fatalf("n=%d a=%v; want %v", n, a, expect)
				}
			}
		}
	}
}

func TestSortingNetworkRejectsBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for 10 element network")
		}
	}()
	SortingNetwork(make([]int, 10))
}

func TestMedianNetwork9(t *testing.T) {
	rng := fastrand.RNG{}
	for iter := 0; iter < 20000; iter++ {
		a := make([]int16, 9)
		for i := range a {
			a[i] = int16(rng.Uint32n(5))
		}
		sorted := append([]int16(nil), a...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		if m := MedianNetwork9(a); m != sorted[4] {
			t.Fatalf("median9(%v)=%d; want %d", sorted, m, sorted[4])
		}
	}
}
