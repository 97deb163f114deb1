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

import (
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"

	"github.com/mlnoga/nightstats/internal/par"
)

// An execution context for operators
type Context struct {
	Log           zerolog.Logger `json:"-"`
	MemoryMB      int            `json:"memoryMB"`      // memory.TotalMemory()/1024/1024
	StackMemoryMB int            `json:"stackMemoryMB"` // MemoryMB*7/10
	MaxThreads    int            `json:"maxThreads"`
}

func NewContext(log zerolog.Logger) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	return &Context{
		Log:           log,
		MemoryMB:      memoryMB,
		StackMemoryMB: memoryMB * 7 / 10,
		MaxThreads:    par.DefaultThreads(),
	}
}

// Overrides the memory budget with the given value in MB, if positive
func (c *Context) SetMemoryMB(memoryMB int) {
	if memoryMB <= 0 {
		return
	}
	c.MemoryMB = memoryMB
	c.StackMemoryMB = memoryMB * 7 / 10
}

// Overrides the maximum degree of parallelism, if positive
func (c *Context) SetMaxThreads(threads int) {
	if threads > 0 {
		c.MaxThreads = threads
	}
}
