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
	"fmt"
	"sync"

	"github.com/mlnoga/nightstats/internal/stats"
)

var ErrFrameIndex = errors.New("frame index out of range")

// Integer pixel displacement of a frame relative to the reference frame
type Shift struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// A sequence of frames with per-frame inclusion flags, shifts and persisted statistics.
// Frame data itself is read on demand by the caller
type Sequence struct {
	FileNames []string `json:"fileNames,omitempty"` // Source of each frame, if file-backed
	Width     int      `json:"width"`               // Frame width in pixels, 0 if unknown
	Height    int      `json:"height"`              // Frame height in pixels, 0 if unknown
	Channels  int      `json:"channels"`            // Number of channels per frame
	Bitpix    int32    `json:"bitpix"`              // Bits per sample of the frames, as on Image
	Included  []bool   `json:"included"`            // Inclusion flag per frame
	Shifts    []Shift  `json:"shifts"`              // Shift per frame
	Reference int      `json:"reference"`           // Index of the reference frame

	// Persisted statistics, indexed by channel then frame. Records are owned by the sequence
	Stats      [][]*stats.ImageStatistics `json:"-"`
	statsMutex sync.Mutex
}

// Creates a sequence of n frames with the given number of channels. All frames are
// included with zero shift, the first frame is the reference
func NewSequence(n, channels int) *Sequence {
	s := &Sequence{
		Channels: channels,
		Included: make([]bool, n),
		Shifts:   make([]Shift, n),
		Stats:    make([][]*stats.ImageStatistics, channels),
	}
	for i := range s.Included {
		s.Included[i] = true
	}
	for c := range s.Stats {
		s.Stats[c] = make([]*stats.ImageStatistics, n)
	}
	return s
}

// Creates a sequence of frames backed by the given files
func NewFileSequence(fileNames []string, channels int) *Sequence {
	s := NewSequence(len(fileNames), channels)
	s.FileNames = append([]string(nil), fileNames...)
	return s
}

// Sets the frame geometry of the sequence from a sample frame, typically the reference frame
func (s *Sequence) SetGeometry(img *Image) error {
	if img.Channels() != s.Channels {
		return fmt.Errorf("%w: image has %d channels, sequence %d", ErrGeometry, img.Channels(), s.Channels)
	}
	s.Width, s.Height, s.Bitpix = img.Width(), img.Height(), img.Bitpix
	return nil
}

// Checks that a frame matches the geometry and sample type of the sequence
func (s *Sequence) CheckGeometry(img *Image) error {
	if img.Width() != s.Width || img.Height() != s.Height || img.Channels() != s.Channels {
		return fmt.Errorf("%w: frame %s, sequence %dx%dx%d", ErrGeometry, img.DimensionsToString(), s.Width, s.Height, s.Channels)
	}
	if img.IsFloat() != (s.Bitpix < 0) {
		return fmt.Errorf("%w: frame bitpix %d, sequence %d", ErrGeometry, img.Bitpix, s.Bitpix)
	}
	return nil
}

// Number of pixels per channel of a frame
func (s *Sequence) Pixels() int { return s.Width * s.Height }

// Number of frames in the sequence
func (s *Sequence) Len() int { return len(s.Included) }

// Number of included frames
func (s *Sequence) IncludedCount() int {
	n := 0
	for _, inc := range s.Included {
		if inc {
			n++
		}
	}
	return n
}

func (s *Sequence) checkIndex(index int) error {
	if index < 0 || index >= s.Len() {
		return fmt.Errorf("%w: %d of %d frames", ErrFrameIndex, index, s.Len())
	}
	return nil
}

// Returns the persisted statistics record of the given channel and frame, or nil if none exists
func (s *Sequence) StatsFor(layer, index int) *stats.ImageStatistics {
	if layer < 0 || layer >= len(s.Stats) || index < 0 || index >= len(s.Stats[layer]) {
		return nil
	}
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	return s.Stats[layer][index]
}

// Returns the persisted statistics record of the given channel and frame,
// creating an all-sentinel sequence-owned record if none exists
func (s *Sequence) EnsureStats(layer, index int) (*stats.ImageStatistics, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	if layer < 0 || layer >= s.Channels {
		return nil, fmt.Errorf("%w: %d of %d channels", ErrLayer, layer, s.Channels)
	}
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	if s.Stats[layer][index] == nil {
		s.Stats[layer][index] = stats.NewImageStatistics(stats.OriginSequence)
	}
	return s.Stats[layer][index], nil
}

// Moves the statistics records of a loaded image into the slot of the given frame.
// Records change origin to the sequence and are detached from the image.
// Channels without a record on the image keep their persisted record
func (s *Sequence) AdoptStats(index int, img *Image) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if img.Channels() != s.Channels {
		return fmt.Errorf("%w: image has %d channels, sequence %d", ErrGeometry, img.Channels(), s.Channels)
	}
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	for layer, rec := range img.DetachStats() {
		if rec == nil {
			continue
		}
		rec.Lock()
		rec.Origin = stats.OriginSequence
		rec.Unlock()
		s.Stats[layer][index] = rec
	}
	return nil
}

// Resets the persisted statistics of all channels of the given frame to the all-sentinel state.
// Called when the frame's pixel data changes
func (s *Sequence) InvalidateFrame(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	for layer := range s.Stats {
		if rec := s.Stats[layer][index]; rec != nil {
			rec.Reset()
		}
	}
	return nil
}
