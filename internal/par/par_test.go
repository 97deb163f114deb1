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

package par

import (
	"sync/atomic"
	"testing"

	"github.com/valyala/fastrand"
)

func TestForCoversRangeOnce(t *testing.T) {
	for _, n := range []int{0, 1, 7, 64, 1000, 12345} {
		for _, threads := range []int{0, 1, 3, 16} {
			hits := make([]int32, n)
			For(n, threads, func(lower, upper int) {
				for i := lower; i < upper; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("n=%d threads=%d index %d visited %d times", n, threads, i, h)
				}
			}
		}
	}
}

func TestForWorkersPrivateSlots(t *testing.T) {
	n, threads := 10000, 6
	sums := make([]int, threads)
	workers := ForWorkers(n, threads, func(worker, lower, upper int) {
		for i := lower; i < upper; i++ {
			sums[worker] += i
		}
	})
	if workers < 1 || workers > threads {
		t.Fatalf("got %d workers for %d threads", workers, threads)
	}
	total := 0
	for _, s := range sums {
		total += s
	}
	if want := n * (n - 1) / 2; total != want {
		t.Errorf("sum got %d; want %d", total, want)
	}
}

func TestMax(t *testing.T) {
	rng := fastrand.RNG{}
	data := make([]uint64, 100003)
	want := uint64(0)
	for i := range data {
		data[i] = uint64(rng.Uint32())
		if data[i] > want {
			want = data[i]
		}
	}
	got := Max(len(data), 4, func(lower, upper int) uint64 {
		m := uint64(0)
		for _, d := range data[lower:upper] {
			if d > m {
				m = d
			}
		}
		return m
	})
	if got != want {
		t.Errorf("max got %d; want %d", got, want)
	}

	if got := Max(0, 4, func(lower, upper int) uint64 { return 1 }); got != 0 {
		t.Errorf("max of empty range got %d; want 0", got)
	}
}

func TestDefaultThreads(t *testing.T) {
	if n := DefaultThreads(); n < 1 {
		t.Errorf("default threads %d < 1", n)
	}
	if n := L2CacheBytes(); n <= 0 {
		t.Errorf("L2 cache size %d <= 0", n)
	}
}
