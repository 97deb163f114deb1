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

package frame

import (
	"errors"
	"sync"
	"testing"

	"github.com/mlnoga/nightstats/internal/stats"
)

func TestNewSequence(t *testing.T) {
	seq := NewFileSequence([]string{"a.fits", "b.fits", "c.fits"}, 2)
	if seq.Len() != 3 || seq.IncludedCount() != 3 || seq.Reference != 0 {
		t.Errorf("sequence len %d included %d reference %d", seq.Len(), seq.IncludedCount(), seq.Reference)
	}
	seq.Included[1] = false
	if seq.IncludedCount() != 2 {
		t.Errorf("included count %d; want 2", seq.IncludedCount())
	}
	if seq.StatsFor(0, 1) != nil || seq.StatsFor(5, 0) != nil {
		t.Errorf("fresh sequence has statistics")
	}
}

func TestAdoptStatsMoves(t *testing.T) {
	img := newTestImage(t)
	computeFakeStats(img)
	rec0, rec1 := img.Stats[0], img.Stats[1]

	seq := NewSequence(4, 2)
	if err := seq.AdoptStats(2, img); err != nil {
		t.Fatal(err)
	}
	if seq.StatsFor(0, 2) != rec0 || seq.StatsFor(1, 2) != rec1 {
		t.Errorf("records were not moved into the sequence slot")
	}
	if rec0.Origin != stats.OriginSequence || !rec0.Interior() {
		t.Errorf("adopted record origin %v", rec0.Origin)
	}
	if img.Stats[0] != nil || img.Stats[1] != nil {
		t.Errorf("image still references adopted records")
	}
	if !rec0.Has(stats.FieldMedian) || rec0.Median != 42 {
		t.Errorf("adopted record lost its values")
	}

	// new records on the image are independent of the persisted ones
	img.EnsureStats(0).Reset()
	if !rec0.Has(stats.FieldMedian) {
		t.Errorf("image record aliases sequence record")
	}

	if err := seq.AdoptStats(4, img); !errors.Is(err, ErrFrameIndex) {
		t.Errorf("adopt out of range: got %v; want ErrFrameIndex", err)
	}
	mono, _ := NewImageUint16([]int32{3, 2}, 16, nil)
	if err := seq.AdoptStats(0, mono); !errors.Is(err, ErrGeometry) {
		t.Errorf("adopt channel mismatch: got %v; want ErrGeometry", err)
	}
}

func TestInvalidateFrame(t *testing.T) {
	seq := NewSequence(2, 1)
	rec, err := seq.EnsureStats(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Origin != stats.OriginSequence {
		t.Errorf("ensured record origin %v", rec.Origin)
	}
	rec.Median = 7
	rec.MarkPresent(stats.FieldMedian)
	if again, _ := seq.EnsureStats(0, 1); again != rec {
		t.Errorf("ensure created a second record")
	}

	if err := seq.InvalidateFrame(1); err != nil {
		t.Fatal(err)
	}
	if rec.Has(stats.FieldMedian) || rec.Median != stats.NotComputed {
		t.Errorf("frame statistics not invalidated")
	}
	if err := seq.InvalidateFrame(0); err != nil {
		t.Errorf("invalidating frame without records: %v", err)
	}
	if err := seq.InvalidateFrame(-1); !errors.Is(err, ErrFrameIndex) {
		t.Errorf("invalidate out of range: got %v; want ErrFrameIndex", err)
	}
	if _, err := seq.EnsureStats(1, 0); !errors.Is(err, ErrLayer) {
		t.Errorf("ensure bad layer: got %v; want ErrLayer", err)
	}
}

func TestSequenceGeometry(t *testing.T) {
	img := newTestImage(t)
	seq := NewSequence(2, 2)
	if err := seq.SetGeometry(img); err != nil {
		t.Fatal(err)
	}
	if seq.Width != 3 || seq.Height != 2 || seq.Pixels() != 6 || seq.Bitpix != 16 {
		t.Errorf("geometry %dx%d bitpix %d", seq.Width, seq.Height, seq.Bitpix)
	}
	if err := seq.CheckGeometry(img); err != nil {
		t.Errorf("matching frame rejected: %v", err)
	}
	f, _ := NewImageFloat32([]int32{3, 2, 2}, nil)
	if err := seq.CheckGeometry(f); !errors.Is(err, ErrGeometry) {
		t.Errorf("float frame in integer sequence: got %v; want ErrGeometry", err)
	}
	small, _ := NewImageUint16([]int32{2, 2, 2}, 16, nil)
	if err := seq.CheckGeometry(small); !errors.Is(err, ErrGeometry) {
		t.Errorf("smaller frame: got %v; want ErrGeometry", err)
	}
	if err := NewSequence(1, 1).SetGeometry(img); !errors.Is(err, ErrGeometry) {
		t.Errorf("channel mismatch: got %v; want ErrGeometry", err)
	}
}

func TestEnsureStatsConcurrent(t *testing.T) {
	seq := NewSequence(2, 1)
	img := newTestImage(t)
	const callers = 8
	seqRecs := make([]*stats.ImageStatistics, callers)
	imgRecs := make([]*stats.ImageStatistics, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seqRecs[i], _ = seq.EnsureStats(0, 1)
			imgRecs[i] = img.EnsureStats(0)
		}(i)
	}
	wg.Wait()
	for i := 1; i < callers; i++ {
		if seqRecs[i] != seqRecs[0] || imgRecs[i] != imgRecs[0] {
			t.Fatalf("caller %d got a different record", i)
		}
	}
	if seqRecs[0] == nil || seqRecs[0] != seq.StatsFor(0, 1) || imgRecs[0] != img.Stats[0] {
		t.Errorf("records not stored in their slots")
	}
}
