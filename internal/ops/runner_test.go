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
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mlnoga/nightstats/internal/frame"
)

var errUnreadable = errors.New("unreadable frame")

// Serves 2x2 frames whose pixels hold the frame index, failing for the given indices
type fakeReader struct {
	mutex sync.Mutex
	fail  map[int]bool
	reads []int
}

func (r *fakeReader) ReadFrame(ctx context.Context, index int) (*frame.Image, error) {
	r.mutex.Lock()
	r.reads = append(r.reads, index)
	r.mutex.Unlock()
	if r.fail[index] {
		return nil, errUnreadable
	}
	v := uint16(index)
	return frame.NewImageUint16([]int32{2, 2}, 16, []uint16{v, v, v, v})
}

// Records stage calls
type fakeWorker struct {
	mutex       sync.Mutex
	prepareErr  error
	prepared    []int
	accumulated map[int]bool
	finalized   bool
}

func (w *fakeWorker) Prepare(ctx context.Context, c *Context, seq *frame.Sequence, frames []int) error {
	w.prepared = frames
	w.accumulated = map[int]bool{}
	return w.prepareErr
}

func (w *fakeWorker) Accumulate(ctx context.Context, c *Context, seq *frame.Sequence, index int, img *frame.Image) error {
	if w.finalized {
		panic("accumulate after finalize")
	}
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.accumulated[index] = true
	return nil
}

func (w *fakeWorker) Finalize(ctx context.Context, c *Context, seq *frame.Sequence, reader FrameReader) error {
	w.finalized = true
	return nil
}

func testContext(threads int) *Context {
	return &Context{Log: zerolog.Nop(), MaxThreads: threads, StackMemoryMB: 64, MemoryMB: 100}
}

func TestFilters(t *testing.T) {
	seq := frame.NewSequence(6, 1)
	seq.Included[1], seq.Included[4] = false, false

	if got := SelectFrames(seq, nil); len(got) != 6 {
		t.Errorf("nil filter selected %v", got)
	}
	if got := SelectFrames(seq, FilterIncluded); !equalInts(got, []int{0, 2, 3, 5}) {
		t.Errorf("included selected %v", got)
	}
	f := FilterAnd(FilterIncluded, FilterNot(FilterIndices(2, 4)))
	if got := SelectFrames(seq, f); !equalInts(got, []int{0, 3, 5}) {
		t.Errorf("combined filter selected %v", got)
	}
	if got := SelectFrames(seq, FilterIndices()); len(got) != 0 {
		t.Errorf("empty index filter selected %v", got)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunSequence(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		seq := frame.NewSequence(5, 1)
		seq.Included[3] = false
		r, w := &fakeReader{}, &fakeWorker{}
		res, err := RunSequence(context.Background(), testContext(4), seq, r, w, Args{Filter: FilterIncluded, Parallel: parallel})
		if err != nil {
			t.Fatal(err)
		}
		if res.Selected != 4 || res.Processed != 4 || res.Failed != 0 {
			t.Errorf("parallel %v: result %+v", parallel, res)
		}
		if !equalInts(w.prepared, []int{0, 1, 2, 4}) || len(w.accumulated) != 4 || w.accumulated[3] {
			t.Errorf("parallel %v: prepared %v accumulated %v", parallel, w.prepared, w.accumulated)
		}
		if !w.finalized {
			t.Errorf("parallel %v: not finalized", parallel)
		}
	}
}

func TestRunSequenceSkipsFailedFrames(t *testing.T) {
	seq := frame.NewSequence(4, 1)
	r, w := &fakeReader{fail: map[int]bool{1: true}}, &fakeWorker{}
	res, err := RunSequence(context.Background(), testContext(2), seq, r, w, Args{Parallel: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 3 || res.Failed != 1 || !w.finalized || w.accumulated[1] {
		t.Errorf("result %+v finalized %v accumulated %v", res, w.finalized, w.accumulated)
	}
}

func TestRunSequenceStopOnError(t *testing.T) {
	seq := frame.NewSequence(4, 1)
	r, w := &fakeReader{fail: map[int]bool{1: true}}, &fakeWorker{}
	res, err := RunSequence(context.Background(), testContext(1), seq, r, w, Args{StopOnError: true})
	if !errors.Is(err, ErrAborted) || !errors.Is(err, errUnreadable) {
		t.Errorf("got %v; want aborted with unreadable frame", err)
	}
	if w.finalized {
		t.Errorf("aborted run was finalized")
	}
	// sequential processing stops right after the failing frame
	if res.Processed != 1 || res.Failed != 1 || len(r.reads) != 2 {
		t.Errorf("result %+v reads %v", res, r.reads)
	}
}

func TestRunSequencePrepareFailure(t *testing.T) {
	seq := frame.NewSequence(3, 1)
	prepErr := errors.New("no memory")
	r, w := &fakeReader{}, &fakeWorker{prepareErr: prepErr}
	_, err := RunSequence(context.Background(), testContext(2), seq, r, w, Args{})
	if !errors.Is(err, prepErr) {
		t.Errorf("got %v; want prepare error", err)
	}
	if len(r.reads) != 0 || w.finalized {
		t.Errorf("frames read after failed prepare: %v", r.reads)
	}
}

func TestRunSequenceNoFrames(t *testing.T) {
	seq := frame.NewSequence(2, 1)
	r, w := &fakeReader{}, &fakeWorker{}
	if _, err := RunSequence(context.Background(), testContext(2), seq, r, w, Args{Filter: FilterIndices()}); !errors.Is(err, ErrNoFrames) {
		t.Errorf("empty selection: got %v; want ErrNoFrames", err)
	}
	if w.prepared != nil {
		t.Errorf("prepared without frames")
	}

	r = &fakeReader{fail: map[int]bool{0: true, 1: true}}
	res, err := RunSequence(context.Background(), testContext(2), seq, r, w, Args{})
	if !errors.Is(err, ErrNoFrames) || res.Failed != 2 || w.finalized {
		t.Errorf("all frames failed: got %v, %+v, finalized %v", err, res, w.finalized)
	}
}

func TestRunSequenceCancelled(t *testing.T) {
	seq := frame.NewSequence(3, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, w := &fakeReader{}, &fakeWorker{}
	_, err := RunSequence(ctx, testContext(2), seq, r, w, Args{})
	if !errors.Is(err, context.Canceled) || w.finalized {
		t.Errorf("cancelled run: got %v, finalized %v", err, w.finalized)
	}
}

func TestMaterializeAll(t *testing.T) {
	r := &fakeReader{fail: map[int]bool{2: true}}
	var ins []Promise
	for i := 0; i < 5; i++ {
		i := i
		ins = append(ins, func() (*frame.Image, error) { return r.ReadFrame(context.Background(), i) })
	}
	outs, err := MaterializeAll(ins, 3, false)
	if !errors.Is(err, errUnreadable) {
		t.Errorf("got %v; want unreadable frame", err)
	}
	if len(outs) != 4 || outs[2].U16[0] != 3 {
		t.Errorf("materialized %d images", len(outs))
	}
	if outs, err := MaterializeAll(ins[:2], 3, true); err != nil || len(outs) != 0 {
		t.Errorf("forgetful materialize got %d images, %v", len(outs), err)
	}
}

func TestIsPathAllowed(t *testing.T) {
	for p, want := range map[string]bool{"a/b.fits": true, "/etc/passwd": false, "../x.fits": false, "x*.fits": true} {
		if got := IsPathAllowed(p); got != want {
			t.Errorf("%s: got %v; want %v", p, got, want)
		}
	}
}
