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
	"fmt"

	"github.com/pbnjay/memory"
)

var (
	// Returned when a scratch buffer or accumulator does not fit into the memory budget
	ErrOutOfMemory = errors.New("out of memory")

	// Internal invariant violation: histogram bucket counts do not add up to the sample count
	ErrHistogramMismatch = errors.New("histogram bucket sum does not match sample count")
)

// Checks whether an allocation of the given number of bytes fits into a budget of budgetMB megabytes.
// A budget <=0 defaults to the total physical memory. Returns an error wrapping ErrOutOfMemory if not
func Preflight(bytes uint64, budgetMB int) error {
	budget := uint64(budgetMB) * 1024 * 1024
	if budgetMB <= 0 {
		budget = memory.TotalMemory()
	}
	if budget == 0 || bytes <= budget {
		return nil
	}
	return fmt.Errorf("%w: need %d MB, budget %d MB", ErrOutOfMemory, bytes/1024/1024, budget/1024/1024)
}

// Reports an internal invariant violation. Panics in debug builds, returns an error otherwise
func invariantViolated(err error, format string, args ...interface{}) error {
	err = fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...)
	if debugAssertions {
		panic(err)
	}
	return err
}
