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
	"github.com/mlnoga/nightstats/internal/qsort"
)

// Arrays of at least this many 16-bit or float32 samples use histogram medians
// instead of quickselect
const HistogramThreshold = 20000

// Calculate the median of the data. For even lengths, returns the mean of the two
// central order statistics. Does not modify the data. Returns 0 for empty data.
// Large uint16 and float32 arrays use histogram medians, everything else
// quickselect on a copy
func Median[T qsort.Ordered](data []T, threads int) (float64, error) {
	if m, ok, err := histogramMedian(data, threads); ok {
		return m, err
	}
	tmp := make([]T, len(data))
	copy(tmp, data)
	return qsort.QuickSelectMedian(tmp), nil
}

// Calculate the median of the data like Median, but reorders the data
// instead of copying it where quickselect is used
func MedianInPlace[T qsort.Ordered](data []T, threads int) (float64, error) {
	if m, ok, err := histogramMedian(data, threads); ok {
		return m, err
	}
	return qsort.QuickSelectMedian(data), nil
}

// Dispatches large uint16 and float32 arrays to the histogram medians. Returns ok=false
// if the data is too small or of another type
func histogramMedian[T qsort.Ordered](data []T, threads int) (median float64, ok bool, err error) {
	if len(data) < HistogramThreshold {
		return 0, false, nil
	}
	switch d := any(data).(type) {
	case []uint16:
		median, err = HistogramMedianUint16(d, threads)
		return median, true, err
	case []float32:
		median, err = HistogramMedianFloat32(d, threads)
		return median, true, err
	}
	return 0, false, nil
}
