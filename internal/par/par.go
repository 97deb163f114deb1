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
	"runtime"

	"github.com/klauspost/cpuid"
	"golang.org/x/exp/constraints"
)

// Number of batches per thread for data-parallel loops
const BatchesPerThread = 8

// Returns the default degree of parallelism: the number of logical cores as
// reported by the CPU, or GOMAXPROCS if detection failed
func DefaultThreads() int {
	threads := cpuid.CPU.LogicalCores
	if max := runtime.GOMAXPROCS(0); threads <= 0 || threads > max {
		threads = max
	}
	if threads < 1 {
		threads = 1
	}
	return threads
}

// Returns the size of the L2 cache in bytes, or 256 KB if unknown
func L2CacheBytes() int {
	if l2 := cpuid.CPU.Cache.L2; l2 > 0 {
		return l2
	}
	return 256 * 1024
}

// Number of batches For splits n elements into, given the number of threads
func NumBatches(n, threads int) int {
	if threads < 1 {
		threads = 1
	}
	numBatches := BatchesPerThread * threads
	if numBatches > n {
		numBatches = n
	}
	return numBatches
}

// Runs fn over [0,n) split into contiguous batches [lower,upper),
// with at most threads batches in flight. Returns once all batches have finished.
// With threads<=1 or a single batch, fn runs on the calling goroutine
func For(n, threads int, fn func(lower, upper int)) {
	if n <= 0 {
		return
	}
	numBatches := NumBatches(n, threads)
	if threads <= 1 || numBatches <= 1 {
		fn(0, n)
		return
	}
	batchSize := (n + numBatches - 1) / numBatches

	sem := make(chan bool, threads) // limit parallelism
	for lower := 0; lower < n; lower += batchSize {
		upper := lower + batchSize
		if upper > n {
			upper = n
		}
		sem <- true
		go func(lower, upper int) {
			defer func() { <-sem }()
			fn(lower, upper)
		}(lower, upper)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}

// Runs fn over [0,n) like For, with one call per worker slot. Worker indices
// are in [0,workers) and each slot is used by exactly one goroutine, so
// callers can keep private per-worker state indexed by it. Returns the number of workers
func ForWorkers(n, threads int, fn func(worker, lower, upper int)) (workers int) {
	if n <= 0 {
		return 0
	}
	if threads < 1 {
		threads = 1
	}
	if threads > n {
		threads = n
	}
	if threads == 1 {
		fn(0, 0, n)
		return 1
	}
	batchSize := (n + threads - 1) / threads
	workers = (n + batchSize - 1) / batchSize

	done := make(chan bool, workers)
	for w := 0; w < workers; w++ {
		lower := w * batchSize
		upper := lower + batchSize
		if upper > n {
			upper = n
		}
		go func(w, lower, upper int) {
			defer func() { done <- true }()
			fn(w, lower, upper)
		}(w, lower, upper)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return workers
}

// Calculates the maximum of fn(lower, upper) over all batches of [0,n) in parallel.
// Returns zero for n<=0
func Max[T constraints.Ordered](n, threads int, fn func(lower, upper int) T) T {
	var zero T
	if n <= 0 {
		return zero
	}
	numBatches := NumBatches(n, threads)
	batchSize := (n + numBatches - 1) / numBatches
	numBatches = (n + batchSize - 1) / batchSize
	partial := make([]T, numBatches)

	For(numBatches, threads, func(lowerBatch, upperBatch int) {
		for b := lowerBatch; b < upperBatch; b++ {
			lower := b * batchSize
			upper := lower + batchSize
			if upper > n {
				upper = n
			}
			partial[b] = fn(lower, upper)
		}
	})

	res := partial[0]
	for _, p := range partial[1:] {
		if p > res {
			res = p
		}
	}
	return res
}
