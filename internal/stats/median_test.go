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
	"errors"
	"testing"

	"github.com/valyala/fastrand"
)

func TestMedianDispatch(t *testing.T) {
	rng := fastrand.RNG{}
	for _, n := range []int{0, 1, 8, 9, 10, HistogramThreshold - 1, HistogramThreshold, HistogramThreshold + 1} {
		data := make([]uint16, n)
		for i := range data {
			data[i] = uint16(rng.Uint32n(65536))
		}
		orig := append([]uint16(nil), data...)
		want := float64(0)
		if n > 0 {
			want = quickSelectMedianOfCopy(data)
		}

		got, err := Median(data, 4)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("n=%d: median %f; want %f", n, got, want)
		}
		for i := range data {
			if data[i] != orig[i] {
				t.Fatalf("n=%d: median modified data at index %d", n, i)
			}
		}

		got, err = MedianInPlace(data, 4)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("n=%d: in-place median %f; want %f", n, got, want)
		}
	}
}

func TestMedianOtherTypes(t *testing.T) {
	data := make([]float64, HistogramThreshold+1)
	for i := range data {
		data[i] = float64(len(data) - i)
	}
	got, err := Median(data, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := float64(HistogramThreshold/2 + 1); got != want {
		t.Errorf("median %f; want %f", got, want)
	}
}

func TestPreflight(t *testing.T) {
	if err := Preflight(10*1024*1024, 100); err != nil {
		t.Errorf("10 MB in 100 MB budget: %v", err)
	}
	if err := Preflight(200*1024*1024, 100); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("200 MB in 100 MB budget: got %v; want ErrOutOfMemory", err)
	}
}
