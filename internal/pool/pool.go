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

package pool

import (
	"runtime"
	"sync"
)

// Pool of constant sized arrays of a given element type, keyed by array size,
// to reduce memory allocation overhead for scratch buffers
type Sized[T any] struct {
	mutex sync.RWMutex
	m     map[int]*sync.Pool
}

// Returns a new, empty sized pool
func NewSized[T any]() *Sized[T] {
	return &Sized[T]{m: make(map[int]*sync.Pool)}
}

// Returns the pool for arrays of the given size, creating it on demand
func (p *Sized[T]) sizedPool(size int) *sync.Pool {
	p.mutex.RLock()
	pool := p.m[size]
	p.mutex.RUnlock()
	if pool != nil {
		return pool
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if pool = p.m[size]; pool == nil {
		pool = &sync.Pool{
			New: func() interface{} {
				arr := make([]T, size)
				return &arr
			},
		}
		p.m[size] = pool
	}
	return pool
}

// Retrieves an array of the given size from the pool. Contents are undefined
func (p *Sized[T]) Get(size int) []T {
	return *(p.sizedPool(size).Get().(*[]T))
}

// Retrieves an array of the given size from the pool, with all elements set to zero
func (p *Sized[T]) GetCleared(size int) []T {
	arr := p.Get(size)
	var zero T
	for i := range arr {
		arr[i] = zero
	}
	return arr
}

// Returns an array to the pool. The caller must not use it afterwards
func (p *Sized[T]) Put(arr []T) {
	if cap(arr) == 0 {
		return
	}
	arr = arr[:cap(arr)]
	p.sizedPool(cap(arr)).Put(&arr)
}

// Drops all pooled arrays
func (p *Sized[T]) Clear() {
	p.mutex.Lock()
	p.m = make(map[int]*sync.Pool)
	p.mutex.Unlock()
}

// Shared pools for the element types used by the statistics code
var (
	Uint32  = NewSized[uint32]()
	Float32 = NewSized[float32]()
)

// Clears all shared memory pools and triggers garbage collection
func ClearPools() {
	Uint32.Clear()
	Float32.Clear()
	runtime.GC()
}
