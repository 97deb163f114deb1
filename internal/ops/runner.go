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
	"fmt"
	"sync"

	"github.com/mlnoga/nightstats/internal/frame"
)

var (
	ErrNoFrames = errors.New("no frames to process")
	ErrAborted  = errors.New("sequence processing aborted")
)

// Reads frames of a sequence on demand
type FrameReader interface {
	ReadFrame(ctx context.Context, index int) (*frame.Image, error)
}

// A three-stage worker over a sequence. Prepare runs once before any frame is read,
// Accumulate once per selected frame, possibly concurrently for several frames,
// and Finalize once after all Accumulate calls have returned, unless the run was aborted
type SeqWorker interface {
	Prepare(ctx context.Context, c *Context, seq *frame.Sequence, frames []int) error
	Accumulate(ctx context.Context, c *Context, seq *frame.Sequence, index int, img *frame.Image) error
	Finalize(ctx context.Context, c *Context, seq *frame.Sequence, reader FrameReader) error
}

// Arguments for running a worker over a sequence
type Args struct {
	Filter      Filter // selects the frames to process, nil for all
	StopOnError bool   // abort on the first frame failure instead of skipping the frame
	Parallel    bool   // process up to Context.MaxThreads frames concurrently
}

// Outcome of running a worker over a sequence
type Result struct {
	Selected  int `json:"selected"`  // number of frames selected by the filter
	Processed int `json:"processed"` // number of frames accumulated successfully
	Failed    int `json:"failed"`    // number of frames which failed to read or accumulate
}

// Runs a worker over the frames of a sequence selected by the filter. Frame failures
// are logged, and either skip the frame or abort the run, depending on args.StopOnError.
// Aborted runs skip Finalize. Cancelling ctx aborts the run as well
func RunSequence(ctx context.Context, c *Context, seq *frame.Sequence, reader FrameReader, worker SeqWorker, args Args) (res Result, err error) {
	frames := SelectFrames(seq, args.Filter)
	res.Selected = len(frames)
	if len(frames) == 0 {
		return res, ErrNoFrames
	}
	if err := worker.Prepare(ctx, c, seq, frames); err != nil {
		return res, err
	}

	threads := 1
	if args.Parallel && c.MaxThreads > 1 {
		threads = c.MaxThreads
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mutex := sync.Mutex{}
	var firstErr error
	limiter := make(chan bool, threads)
	for _, index := range frames {
		if runCtx.Err() != nil {
			break
		}
		limiter <- true
		go func(index int) {
			defer func() { <-limiter }()
			if runCtx.Err() != nil {
				return
			}
			err := processFrame(runCtx, c, seq, reader, worker, index)

			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				res.Failed++
				c.Log.Warn().Err(err).Int("frame", index).Msg("frame failed")
				if args.StopOnError && firstErr == nil {
					firstErr = fmt.Errorf("frame %d: %w", index, err)
					cancel()
				}
				return
			}
			res.Processed++
		}(index)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}

	if firstErr != nil {
		return res, fmt.Errorf("%w: %w", ErrAborted, firstErr)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if res.Processed == 0 {
		return res, fmt.Errorf("%w: all %d selected frames failed", ErrNoFrames, res.Selected)
	}
	c.Log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("finalizing")
	if err := worker.Finalize(ctx, c, seq, reader); err != nil {
		return res, err
	}
	return res, nil
}

func processFrame(ctx context.Context, c *Context, seq *frame.Sequence, reader FrameReader, worker SeqWorker, index int) error {
	img, err := reader.ReadFrame(ctx, index)
	if err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("reader returned no image")
	}
	return worker.Accumulate(ctx, c, seq, index, img)
}
