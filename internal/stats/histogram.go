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
	"github.com/mlnoga/nightstats/internal/par"
	"github.com/mlnoga/nightstats/internal/pool"
	"github.com/mlnoga/nightstats/internal/qsort"
)

// Number of buckets for histogram medians. Covers the full 16-bit sample domain
const HistogramBins = 65536

// Calculates a histogram of the data with one bucket per 16-bit value.
// Each worker fills a private pooled histogram over its partition, which are then
// summed in a single merge step. Returned histogram must be put back into pool.Uint32
func histogramUint16(data []uint16, threads int) ([]uint32, error) {
	threads = histogramWorkers(len(data), threads)
	if err := Preflight(uint64(threads)*HistogramBins*4, 0); err != nil {
		return nil, err
	}
	hists := make([][]uint32, threads)
	workers := par.ForWorkers(len(data), threads, func(worker, lower, upper int) {
		hist := pool.Uint32.GetCleared(HistogramBins)
		for _, d := range data[lower:upper] {
			hist[d]++
		}
		hists[worker] = hist
	})
	return mergeHistograms(hists[:workers]), nil
}

// Calculates a histogram of the data with HistogramBins buckets spanning [min,max].
// Bucket indices are monotone in the sample value. Returned histogram must be put back into pool.Uint32
func histogramFloat32(data []float32, min, max float32, threads int) ([]uint32, error) {
	threads = histogramWorkers(len(data), threads)
	if err := Preflight(uint64(threads)*HistogramBins*4, 0); err != nil {
		return nil, err
	}
	hists := make([][]uint32, threads)
	workers := par.ForWorkers(len(data), threads, func(worker, lower, upper int) {
		hist := pool.Uint32.GetCleared(HistogramBins)
		for _, d := range data[lower:upper] {
			hist[floatBin(d, min, max)]++
		}
		hists[worker] = hist
	})
	return mergeHistograms(hists[:workers]), nil
}

// Number of private histograms for n samples. Each worker partition holds at least
// as many samples as an L2 cache holds 32-bit counters, so that clearing and merging
// a private histogram stays small against filling it
func histogramWorkers(n, threads int) int {
	minPerWorker := par.L2CacheBytes() / 4
	if minPerWorker < 1 {
		minPerWorker = 1
	}
	workers := n / minPerWorker
	if workers > threads {
		workers = threads
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Sums all histograms into the first one and returns the others to the pool
func mergeHistograms(hists [][]uint32) []uint32 {
	res := hists[0]
	for _, h := range hists[1:] {
		for i, v := range h {
			res[i] += v
		}
		pool.Uint32.Put(h)
	}
	return res
}

// Returns the histogram bucket for value d in [min,max]. Monotone in d
func floatBin(d, min, max float32) int {
	bin := int((float64(d) - float64(min)) * (float64(HistogramBins-1) / (float64(max) - float64(min))))
	if bin < 0 {
		return 0
	} else if bin >= HistogramBins {
		return HistogramBins - 1
	}
	return bin
}

// Locates the buckets containing the order statistics of rank k and k+1 (0-based) in a histogram
// over n samples, plus their ranks within the respective bucket. Verifies that the bucket
// counts add up to n
func locateRanks(hist []uint32, n int, k int) (binLow, rankLow, binHigh, rankHigh int, err error) {
	binLow, binHigh = -1, -1
	cum := 0
	for bin, count := range hist {
		next := cum + int(count)
		if binLow < 0 && k < next {
			binLow, rankLow = bin, k-cum
		}
		if binHigh < 0 && k+1 < next {
			binHigh, rankHigh = bin, k+1-cum
		}
		cum = next
	}
	if cum != n || binLow < 0 {
		return 0, 0, 0, 0, invariantViolated(ErrHistogramMismatch, "buckets sum to %d, expected %d", cum, n)
	}
	return binLow, rankLow, binHigh, rankHigh, nil
}

// Calculates the median of 16-bit data with a 65536 bucket histogram in O(n+65536).
// For even lengths, returns the mean of the two central order statistics.
// Does not modify the data. Returns 0 for empty data
func HistogramMedianUint16(data []uint16, threads int) (float64, error) {
	n := len(data)
	if n == 0 {
		return 0, nil
	}
	if threads < 1 {
		threads = 1
	}
	hist, err := histogramUint16(data, threads)
	if err != nil {
		return 0, err
	}
	defer pool.Uint32.Put(hist)

	if n&1 != 0 {
		bin, _, _, _, err := locateRanks(hist, n, n>>1)
		return float64(bin), err
	}
	binLow, _, binHigh, _, err := locateRanks(hist, n, n>>1-1)
	if err != nil {
		return 0, err
	}
	return 0.5 * (float64(binLow) + float64(binHigh)), nil
}

// Calculates the exact median of float data. Bins the data into a histogram over [min,max],
// locates the buckets holding the central order statistics, and runs quickselect
// only on the samples within those buckets. For even lengths, returns the mean of the
// two central order statistics. Does not modify the data. Returns 0 for empty data.
// Data must not contain IEEE NaN
func HistogramMedianFloat32(data []float32, threads int) (float64, error) {
	n := len(data)
	if n == 0 {
		return 0, nil
	}
	if threads < 1 {
		threads = 1
	}
	min, max := MinMax(data, threads)
	if min == max {
		return min, nil
	}
	hist, err := histogramFloat32(data, float32(min), float32(max), threads)
	if err != nil {
		return 0, err
	}
	defer pool.Uint32.Put(hist)

	k := n >> 1
	if n&1 == 0 {
		k--
	}
	binLow, rankLow, binHigh, rankHigh, err := locateRanks(hist, n, k)
	if err != nil {
		return 0, err
	}
	if n&1 != 0 {
		return float64(selectInBin(data, int(hist[binLow]), binLow, rankLow, float32(min), float32(max))), nil
	}
	if binHigh != binLow {
		low := selectInBin(data, int(hist[binLow]), binLow, rankLow, float32(min), float32(max))
		high := selectInBin(data, int(hist[binHigh]), binHigh, rankHigh, float32(min), float32(max))
		return 0.5 * (float64(low) + float64(high)), nil
	}

	// both central order statistics share a bucket: select the upper one,
	// the lower one is the maximum of the elements left of it
	scratch := gatherBin(data, int(hist[binHigh]), binHigh, float32(min), float32(max))
	high := qsort.Select(scratch, rankHigh)
	low := scratch[0]
	for _, v := range scratch[1:rankHigh] {
		if v > low {
			low = v
		}
	}
	return 0.5 * (float64(low) + float64(high)), nil
}

// Gathers all samples falling into the given bucket into a new scratch buffer
func gatherBin(data []float32, count, bin int, min, max float32) []float32 {
	scratch := make([]float32, 0, count)
	for _, d := range data {
		if floatBin(d, min, max) == bin {
			scratch = append(scratch, d)
		}
	}
	return scratch
}

// Selects the element of the given rank among the samples falling into the given bucket
func selectInBin(data []float32, count, bin, rank int, min, max float32) float32 {
	return qsort.Select(gatherBin(data, count, bin, min, max), rank)
}
