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
	"strings"
	"sync"

	"github.com/mlnoga/nightstats/internal/stats"
)

var (
	ErrGeometry = errors.New("invalid image geometry")
	ErrLayer    = errors.New("channel index out of range")
	ErrBounds   = errors.New("pixel coordinates out of bounds")
)

// An image with one or more channels of 16-bit unsigned or 32-bit float samples.
// Channels are stored as consecutive planes, each plane row-major.
// Exactly one of U16 and F32 is non-nil
type Image struct {
	ID       int    // Sequential ID number, for log output. Counted upwards from 0 for frames of a sequence
	FileName string // Original file name, if any, for log output

	Header Header  // Descriptive metadata
	Bitpix int32   // Bits per sample. 8 or 16 for integer data held in U16, -32 for float data held in F32
	Naxisn []int32 // Axis dimensions, most quickly varying first (i.e. width, height, channels)
	Pixels int32   // Number of pixels per channel

	U16 []uint16  // Integer sample data, range 0..65535
	F32 []float32 // Float sample data, nominal range 0..1

	Exposure float32 // Exposure in seconds

	Stats      []*stats.ImageStatistics // Per channel statistics, nil until requested
	statsMutex sync.Mutex               // Guards the Stats slots, not the records
}

// Creates an image with 16-bit samples from given naxisn. Data is not copied, allocated if nil.
// Bitpix must be 8 or 16, naxisn is deep copied
func NewImageUint16(naxisn []int32, bitpix int32, data []uint16) (*Image, error) {
	if bitpix != 8 && bitpix != 16 {
		return nil, fmt.Errorf("%w: bitpix %d for integer data", ErrGeometry, bitpix)
	}
	img, total, err := newImage(naxisn, bitpix)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = make([]uint16, total)
	} else if len(data) != total {
		return nil, fmt.Errorf("%w: %d samples for %s", ErrGeometry, len(data), img.DimensionsToString())
	}
	img.U16 = data
	return img, nil
}

// Creates an image with float samples from given naxisn. Data is not copied, allocated if nil.
// Naxisn is deep copied
func NewImageFloat32(naxisn []int32, data []float32) (*Image, error) {
	img, total, err := newImage(naxisn, -32)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = make([]float32, total)
	} else if len(data) != total {
		return nil, fmt.Errorf("%w: %d samples for %s", ErrGeometry, len(data), img.DimensionsToString())
	}
	img.F32 = data
	return img, nil
}

func newImage(naxisn []int32, bitpix int32) (img *Image, total int, err error) {
	if len(naxisn) < 2 || len(naxisn) > 3 {
		return nil, 0, fmt.Errorf("%w: %d axes", ErrGeometry, len(naxisn))
	}
	for _, n := range naxisn {
		if n <= 0 {
			return nil, 0, fmt.Errorf("%w: axis length %d", ErrGeometry, n)
		}
	}
	img = &Image{
		Header: NewHeader(),
		Bitpix: bitpix,
		Naxisn: append([]int32(nil), naxisn...), // clone slice
		Pixels: naxisn[0] * naxisn[1],
	}
	img.Stats = make([]*stats.ImageStatistics, img.Channels())
	return img, int(img.Pixels) * img.Channels(), nil
}

// Creates a new image with the same geometry, sample type, metadata and exposure,
// and freshly allocated zero data. Statistics are not copied
func NewImageFromImage(src *Image) *Image {
	img := &Image{
		ID:       src.ID,
		FileName: src.FileName,
		Header:   src.Header.Clone(),
		Bitpix:   src.Bitpix,
		Naxisn:   append([]int32(nil), src.Naxisn...),
		Pixels:   src.Pixels,
		Exposure: src.Exposure,
		Stats:    make([]*stats.ImageStatistics, src.Channels()),
	}
	if src.IsFloat() {
		img.F32 = make([]float32, len(src.F32))
	} else {
		img.U16 = make([]uint16, len(src.U16))
	}
	return img
}

// Width of the image in pixels
func (f *Image) Width() int { return int(f.Naxisn[0]) }

// Height of the image in pixels
func (f *Image) Height() int { return int(f.Naxisn[1]) }

// Number of channels, 1 for mono images
func (f *Image) Channels() int {
	if len(f.Naxisn) < 3 {
		return 1
	}
	return int(f.Naxisn[2])
}

// Returns true if the image holds float samples
func (f *Image) IsFloat() bool { return f.Bitpix < 0 }

// Returns the normalization divisor of the sample type: 255 for 8-bit,
// 65535 for 16-bit integer data, 1 for float data
func (f *Image) NormValue() float64 {
	switch {
	case f.IsFloat():
		return 1
	case f.Bitpix == 8:
		return 255
	}
	return 65535
}

// Returns true if both images have the same width, height and number of channels
func (f *Image) SameGeometry(o *Image) bool {
	return f.Width() == o.Width() && f.Height() == o.Height() && f.Channels() == o.Channels()
}

// Returns the 16-bit plane of the given channel. Panics for float images
func (f *Image) PlaneU16(layer int) []uint16 {
	return f.U16[layer*int(f.Pixels) : (layer+1)*int(f.Pixels)]
}

// Returns the float plane of the given channel. Panics for integer images
func (f *Image) PlaneF32(layer int) []float32 {
	return f.F32[layer*int(f.Pixels) : (layer+1)*int(f.Pixels)]
}

// Checks the channel index
func (f *Image) CheckLayer(layer int) error {
	if layer < 0 || layer >= f.Channels() {
		return fmt.Errorf("%w: %d of %d channels", ErrLayer, layer, f.Channels())
	}
	return nil
}

// Returns the statistics record for the given channel, creating an all-sentinel
// image-owned record if none exists
func (f *Image) EnsureStats(layer int) *stats.ImageStatistics {
	f.statsMutex.Lock()
	defer f.statsMutex.Unlock()
	if len(f.Stats) != f.Channels() {
		grown := make([]*stats.ImageStatistics, f.Channels())
		copy(grown, f.Stats)
		f.Stats = grown
	}
	if f.Stats[layer] == nil {
		f.Stats[layer] = stats.NewImageStatistics(stats.OriginImage)
	}
	return f.Stats[layer]
}

// Resets every channel's statistics record to the all-sentinel state.
// Called by all operations which change pixel data
func (f *Image) InvalidateStats() {
	f.statsMutex.Lock()
	defer f.statsMutex.Unlock()
	for _, s := range f.Stats {
		if s != nil {
			s.Reset()
		}
	}
}

// Detaches the per-channel statistics records from the image and returns them
func (f *Image) DetachStats() []*stats.ImageStatistics {
	f.statsMutex.Lock()
	defer f.statsMutex.Unlock()
	res := f.Stats
	f.Stats = make([]*stats.ImageStatistics, f.Channels())
	return res
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}
