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

func TestMedian(t *testing.T) {
	rng := fastrand.RNG{}
	for i := 1; i < 1000; i++ {
		// prepare array of given length with a random permutation of 1..n
		arr := make([]float32, i)
		for j := 0; j < len(arr); j++ {
			arr[j] = float32(j + 1)
		}
		for j := 0; j < len(arr); j++ {
			k := rng.Uint32n(uint32(len(arr)))
			arr[j], arr[k] = arr[k], arr[j]
		}

		// calculate expected result
		var expect float64
		if (i & 1) != 0 {
			expect = float64((i + 1) / 2)
		} else {
			expect = 0.5 * (float64(i/2) + float64(i/2+1))
		}

		// calculate actual result and compare
		res := QuickSelectMedian(arr)
		if res != expect {
			t.Errorf("median(1..%d) got %f expect %f", i, res, expect)
		}
	}
}

func TestMedianEmpty(t *testing.T) {
	if res := QuickSelectMedian([]uint16{}); res != 0 {
		t.Errorf("median of empty array got %f; want 0", res)
	}
}

// sortedMedian is the reference median computed on a fully sorted copy
func sortedMedian(a []uint16) float64 {
	c := append([]uint16(nil), a...)
	sort.Slice(c, func(i, j int) bool { return c[i] < c[j] })
	n := len(c)
	if n&1 != 0 {
		return float64(c[n/2])
	}
	return 0.5 * (float64(c[n/2-1]) + float64(c[n/2]))
}

func TestQuickSelectMedianWithTies(t *testing.T) {
	rng := fastrand.RNG{}
	for n := 1; n < 300; n++ {
		for _, valueRange := range []uint32{2, 7, 65536} {
			arr := make([]uint16, n)
			for j := range arr {
				arr[j] = uint16(rng.Uint32n(valueRange))
			}
			expect := sortedMedian(arr)
			if res := QuickSelectMedian(arr); res != expect {
				t.Errorf("n=%d range=%d median got %f; want %f", n, valueRange, res, expect)
			}
		}
	}
}

func TestQuickSelectMedianNineKeepsElements(t *testing.T) {
	arr := []uint16{9, 1, 8, 2, 7, 3, 6, 4, 5}
	orig := append([]uint16(nil), arr...)
	if res := QuickSelectMedian(arr); res != 5 {
		t.Errorf("median got %f; want 5", res)
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i] < arr[j] })
	sort.Slice(orig, func(i, j int) bool { return orig[i] < orig[j] })
	for i := range arr {
		if arr[i] != orig[i] {
			t.Fatalf("median of 9 changed the multiset of elements: %v vs %v", arr, orig)
		}
	}
}

func TestSort(t *testing.T) {
	rng := fastrand.RNG{}
	lengths := []int{0, 1, 2, 3, 31, 32, 33, 64, 100, 1000, 4097}
	for _, n := range lengths {
		for _, valueRange := range []uint32{3, 1 << 20} {
			arr := make([]float32, n)
			for j := range arr {
				arr[j] = float32(rng.Uint32n(valueRange)) * 0.25
			}
			expect := append([]float32(nil), arr...)
			sort.Slice(expect, func(i, j int) bool { return expect[i] < expect[j] })

			Sort(arr)
			for j := range arr {
				if arr[j] != expect[j] {
					t.Fatalf("n=%d range=%d a[%d]=%f; want %f", n, valueRange, j, arr[j], expect[j])
				}
			}
		}
	}
}

func TestSortPresorted(t *testing.T) {
	n := 10000
	asc, desc := make([]int32, n), make([]int32, n)
	for i := 0; i < n; i++ {
		asc[i], desc[i] = int32(i), int32(n-i)
	}
	Sort(asc)
	Sort(desc)
	for i := 1; i < n; i++ {
		if asc[i-1] > asc[i] || desc[i-1] > desc[i] {
			t.Fatalf("not sorted at index %d", i)
		}
	}
}

func TestSelect(t *testing.T) {
	rng := fastrand.RNG{}
	n := 257
	orig := make([]uint16, n)
	for j := range orig {
		orig[j] = uint16(rng.Uint32n(50))
	}
	sorted := append([]uint16(nil), orig...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for k := 0; k < n; k++ {
		arr := append([]uint16(nil), orig...)
		v := Select(arr, k)
		if v != sorted[k] {
			t.Fatalf("select k=%d got %d; want %d", k, v, sorted[k])
		}
		for j := 0; j < k; j++ {
			if arr[j] > v {
				t.Fatalf("select k=%d left element a[%d]=%d > %d", k, j, arr[j], v)
			}
		}
		for j := k + 1; j < n; j++ {
			if arr[j] < v {
				t.Fatalf("select k=%d right element a[%d]=%d < %d", k, j, arr[j], v)
			}
		}
	}
}

func BenchmarkQuickSelectMedian(b *testing.B) {
	rng := fastrand.RNG{}
	orig := make([]float32, 1<<20)
	for j := range orig {
		orig[j] = float32(rng.Uint32n(65536)) / 65535
	}
	arr := make([]float32, len(orig))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(arr, orig)
		QuickSelectMedian(arr)
	}
}
