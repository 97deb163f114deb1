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

package sum

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mlnoga/nightstats/internal/frame"
	"github.com/mlnoga/nightstats/internal/ops"
	"github.com/mlnoga/nightstats/internal/par"
	"github.com/mlnoga/nightstats/internal/stats"
)

// Parameters for summing a sequence
type OpSum struct {
	Reference   int   `json:"reference"`   // Index of the reference frame for metadata, -1 to keep the sequence's
	StopOnError bool  `json:"stopOnError"` // Abort on the first unreadable frame instead of skipping it
	Parallel    bool  `json:"parallel"`    // Accumulate several frames concurrently
	Exclude     []int `json:"exclude"`     // Indices of frames to leave out
}

func NewOpSumDefault() *OpSum { return NewOpSum(-1, false, true, nil) }

func NewOpSum(reference int, stopOnError, parallel bool, exclude []int) *OpSum {
	return &OpSum{
		Reference:   reference,
		StopOnError: stopOnError,
		Parallel:    parallel,
		Exclude:     exclude,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSum) UnmarshalJSON(data []byte) error {
	type defaults OpSum
	def := defaults(*NewOpSumDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpSum(def)
	return nil
}

// Sums the included, non-excluded frames of the sequence. Returns the summed image
// and the run outcome
func (op *OpSum) Apply(ctx context.Context, c *ops.Context, seq *frame.Sequence, reader ops.FrameReader) (*frame.Image, ops.Result, error) {
	if op.Reference >= 0 {
		if op.Reference >= seq.Len() {
			return nil, ops.Result{}, fmt.Errorf("%w: reference %d", frame.ErrFrameIndex, op.Reference)
		}
		seq.Reference = op.Reference
	}
	filter := ops.Filter(ops.FilterIncluded)
	if len(op.Exclude) > 0 {
		filter = ops.FilterAnd(filter, ops.FilterNot(ops.FilterIndices(op.Exclude...)))
	}
	w := NewWorker()
	res, err := ops.RunSequence(ctx, c, seq, reader, w, ops.Args{Filter: filter, StopOnError: op.StopOnError, Parallel: op.Parallel})
	if err != nil {
		return nil, res, err
	}
	return w.Result, res, nil
}

// Sums frames of a sequence into wide accumulators, applying the per-frame shift
// of the sequence. Implements ops.SeqWorker
type Worker struct {
	Result *frame.Image // Summed image, set by Finalize

	acc      []uint64 // Per channel accumulators as consecutive planes. Float sums are stored as float64 bits
	float    bool     // True if frames hold float data
	exposure uint64   // Summed exposure as float64 bits
	frames   int64    // Number of accumulated frames

	mutex     sync.Mutex
	refHeader *frame.Header // Header of the reference frame, once accumulated
}

func NewWorker() *Worker { return &Worker{} }

// Allocates zeroed accumulators for the sequence geometry, after checking them against the memory budget
func (w *Worker) Prepare(ctx context.Context, c *ops.Context, seq *frame.Sequence, frames []int) error {
	if seq.Width <= 0 || seq.Height <= 0 || seq.Channels <= 0 {
		return fmt.Errorf("%w: sequence geometry %dx%dx%d unknown", frame.ErrGeometry, seq.Width, seq.Height, seq.Channels)
	}
	n := seq.Pixels() * seq.Channels
	if err := stats.Preflight(uint64(n)*8, c.StackMemoryMB); err != nil {
		return fmt.Errorf("summing %d frames: %w", len(frames), err)
	}
	c.Log.Info().Int("frames", len(frames)).Int("width", seq.Width).Int("height", seq.Height).
		Int("channels", seq.Channels).Msg("summing frames")

	w.Result = nil
	w.acc = make([]uint64, n)
	w.float = seq.Bitpix < 0
	w.exposure, w.frames = 0, 0
	w.refHeader = nil
	return nil
}

// Adds the shifted frame into the accumulators. Pixels whose shifted source lies outside
// the frame are skipped. Safe for concurrent use with other frames
func (w *Worker) Accumulate(ctx context.Context, c *ops.Context, seq *frame.Sequence, index int, img *frame.Image) error {
	if err := seq.CheckGeometry(img); err != nil {
		return err
	}
	shift := seq.Shifts[index]
	width, height, pixels := seq.Width, seq.Height, seq.Pixels()

	for layer := 0; layer < seq.Channels; layer++ {
		acc := w.acc[layer*pixels : (layer+1)*pixels]
		if w.float {
			accumulateRows(img.PlaneF32(layer), acc, width, height, shift, c.MaxThreads, addFloat)
		} else {
			accumulateRows(img.PlaneU16(layer), acc, width, height, shift, c.MaxThreads, addUint16)
		}
	}
	addFloat64(&w.exposure, float64(img.Exposure))
	atomic.AddInt64(&w.frames, 1)

	if index == seq.Reference {
		h := img.Header.Clone()
		w.mutex.Lock()
		w.refHeader = &h
		w.mutex.Unlock()
	}
	c.Log.Debug().Int("frame", index).Int("shiftX", shift.X).Int("shiftY", shift.Y).Msg("accumulated")
	return nil
}

func accumulateRows[T uint16 | float32](src []T, acc []uint64, width, height int, shift frame.Shift, threads int, add func(*uint64, T)) {
	par.For(height, threads, func(lower, upper int) {
		for y := lower; y < upper; y++ {
			sy := y - shift.Y
			if sy < 0 || sy >= height {
				continue
			}
			row, srcRow := acc[y*width:(y+1)*width], src[sy*width:(sy+1)*width]
			for x := range row {
				sx := x - shift.X
				if sx < 0 || sx >= width {
					continue
				}
				add(&row[x], srcRow[sx])
			}
		}
	})
}

func addUint16(addr *uint64, v uint16) {
	atomic.AddUint64(addr, uint64(v))
}

func addFloat(addr *uint64, v float32) {
	addFloat64(addr, float64(v))
}

// Atomically adds a float64 value stored as bits
func addFloat64(addr *uint64, v float64) {
	for {
		old := atomic.LoadUint64(addr)
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

// Rescales the accumulators into the output image. Integer sums above 65535 are scaled
// so the maximum maps to 65535, float sums above 1 so the maximum maps to 1.
// Integer output is always 16-bit, also for 8-bit frames
func (w *Worker) Finalize(ctx context.Context, c *ops.Context, seq *frame.Sequence, reader ops.FrameReader) error {
	naxisn := []int32{int32(seq.Width), int32(seq.Height)}
	if seq.Channels > 1 {
		naxisn = append(naxisn, int32(seq.Channels))
	}

	var out *frame.Image
	var err error
	if w.float {
		if out, err = frame.NewImageFloat32(naxisn, nil); err != nil {
			return err
		}
		max := par.Max(len(w.acc), c.MaxThreads, func(lower, upper int) float64 {
			m := math.Inf(-1)
			for _, v := range w.acc[lower:upper] {
				m = math.Max(m, math.Float64frombits(v))
			}
			return m
		})
		ratio := float64(1)
		if max > 1 {
			ratio = 1 / max
		}
		c.Log.Info().Float64("max", max).Float64("ratio", ratio).Msg("rescaling float sum")
		par.For(len(w.acc), c.MaxThreads, func(lower, upper int) {
			for i, v := range w.acc[lower:upper] {
				out.F32[lower+i] = float32(math.Float64frombits(v) * ratio)
			}
		})
	} else {
		if out, err = frame.NewImageUint16(naxisn, 16, nil); err != nil {
			return err
		}
		max := par.Max(len(w.acc), c.MaxThreads, func(lower, upper int) uint64 {
			m := uint64(0)
			for _, v := range w.acc[lower:upper] {
				if v > m {
					m = v
				}
			}
			return m
		})
		ratio := float64(1)
		if max > math.MaxUint16 {
			ratio = math.MaxUint16 / float64(max)
		}
		c.Log.Info().Uint64("max", max).Float64("ratio", ratio).Msg("rescaling integer sum")
		par.For(len(w.acc), c.MaxThreads, func(lower, upper int) {
			for i, v := range w.acc[lower:upper] {
				out.U16[lower+i] = uint16(math.Round(float64(v) * ratio))
			}
		})
	}

	header, err := w.referenceHeader(ctx, seq, reader)
	if err != nil {
		return err
	}
	exposure := math.Float64frombits(w.exposure)
	header.Ints["STACKCNT"] = int32(w.frames)
	header.Floats["EXPTIME"] = float32(exposure)
	header.History = append(header.History,
		fmt.Sprintf("Summed %d frames", w.frames),
		fmt.Sprintf("Total exposure %g s", exposure))
	out.Header = header
	out.Exposure = float32(exposure)
	out.FileName = "sum"

	w.Result = out
	w.acc = nil
	return nil
}

// Returns a copy of the reference frame header. Reads the reference frame if it
// was not accumulated, and falls back to an empty header if that fails
func (w *Worker) referenceHeader(ctx context.Context, seq *frame.Sequence, reader ops.FrameReader) (frame.Header, error) {
	w.mutex.Lock()
	ref := w.refHeader
	w.mutex.Unlock()
	if ref != nil {
		return ref.Clone(), nil
	}
	if reader == nil || seq.Reference < 0 || seq.Reference >= seq.Len() {
		return frame.NewHeader(), nil
	}
	img, err := reader.ReadFrame(ctx, seq.Reference)
	if err != nil {
		if ctx.Err() != nil {
			return frame.Header{}, ctx.Err()
		}
		return frame.NewHeader(), nil
	}
	return img.Header.Clone(), nil
}
