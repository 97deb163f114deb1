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
	"fmt"
	"math"
)

// Pixel operations. Every operation which changes pixel data resets the
// statistics of all channels before returning.

// Applies fn to every channel plane of the data
func eachPlane[T any](data []T, pixels int, fn func(plane []T)) {
	for lower := 0; lower < len(data); lower += pixels {
		fn(data[lower : lower+pixels])
	}
}

// Crops the image to the given region, which must lie within the image
func (f *Image) Crop(r Rect) error {
	bounds := Rect{Width: f.Width(), Height: f.Height()}
	if r.Empty() || r.Intersect(bounds) != r {
		return fmt.Errorf("%w: crop %v of %s image", ErrBounds, r, f.DimensionsToString())
	}
	width := f.Width()
	if f.IsFloat() {
		f.F32 = cropData(f.F32, int(f.Pixels), width, r)
	} else {
		f.U16 = cropData(f.U16, int(f.Pixels), width, r)
	}
	f.Naxisn[0], f.Naxisn[1] = int32(r.Width), int32(r.Height)
	f.Pixels = int32(r.Width * r.Height)
	f.InvalidateStats()
	return nil
}

func cropData[T any](data []T, pixels, width int, r Rect) []T {
	res := make([]T, 0, (len(data)/pixels)*r.Width*r.Height)
	eachPlane(data, pixels, func(plane []T) {
		for y := r.Y; y < r.Y+r.Height; y++ {
			res = append(res, plane[y*width+r.X:y*width+r.X+r.Width]...)
		}
	})
	return res
}

// Mirrors the image around the horizontal axis, exchanging top and bottom rows
func (f *Image) MirrorX() {
	if f.IsFloat() {
		eachPlane(f.F32, int(f.Pixels), func(p []float32) { mirrorRows(p, f.Width()) })
	} else {
		eachPlane(f.U16, int(f.Pixels), func(p []uint16) { mirrorRows(p, f.Width()) })
	}
	f.InvalidateStats()
}

func mirrorRows[T any](plane []T, width int) {
	height := len(plane) / width
	for y := 0; y < height/2; y++ {
		top, bottom := plane[y*width:(y+1)*width], plane[(height-1-y)*width:(height-y)*width]
		for x := range top {
			top[x], bottom[x] = bottom[x], top[x]
		}
	}
}

// Mirrors the image around the vertical axis, exchanging left and right columns
func (f *Image) MirrorY() {
	if f.IsFloat() {
		eachPlane(f.F32, int(f.Pixels), func(p []float32) { mirrorColumns(p, f.Width()) })
	} else {
		eachPlane(f.U16, int(f.Pixels), func(p []uint16) { mirrorColumns(p, f.Width()) })
	}
	f.InvalidateStats()
}

func mirrorColumns[T any](plane []T, width int) {
	for lower := 0; lower < len(plane); lower += width {
		reverse(plane[lower : lower+width])
	}
}

func reverse[T any](a []T) {
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
}

// Rotates the image by 180 degrees
func (f *Image) Rotate180() {
	if f.IsFloat() {
		eachPlane(f.F32, int(f.Pixels), reverse[float32])
	} else {
		eachPlane(f.U16, int(f.Pixels), reverse[uint16])
	}
	f.InvalidateStats()
}

// Rotates the image by 90 degrees clockwise. Exchanges width and height
func (f *Image) Rotate90() {
	width, height := f.Width(), f.Height()
	if f.IsFloat() {
		f.F32 = rotate90Data(f.F32, width, height)
	} else {
		f.U16 = rotate90Data(f.U16, width, height)
	}
	f.Naxisn[0], f.Naxisn[1] = int32(height), int32(width)
	f.InvalidateStats()
}

func rotate90Data[T any](data []T, width, height int) []T {
	pixels := width * height
	res := make([]T, len(data))
	for lower := 0; lower < len(data); lower += pixels {
		src, dst := data[lower:lower+pixels], res[lower:lower+pixels]
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dst[x*height+(height-1-y)] = src[y*width+x]
			}
		}
	}
	return res
}

// Returns the sample index of pixel (x,y) in the given channel, or an error if out of bounds
func (f *Image) index(layer, x, y int) (int, error) {
	if err := f.CheckLayer(layer); err != nil {
		return 0, err
	}
	if x < 0 || y < 0 || x >= f.Width() || y >= f.Height() {
		return 0, fmt.Errorf("%w: (%d,%d) in %s image", ErrBounds, x, y, f.DimensionsToString())
	}
	return layer*int(f.Pixels) + y*f.Width() + x, nil
}

// Sets a single pixel of an integer image
func (f *Image) SetPixel16(layer, x, y int, v uint16) error {
	if f.IsFloat() {
		return fmt.Errorf("%w: integer pixel write to float image", ErrGeometry)
	}
	i, err := f.index(layer, x, y)
	if err != nil {
		return err
	}
	f.U16[i] = v
	f.InvalidateStats()
	return nil
}

// Sets a single pixel of a float image
func (f *Image) SetPixelF(layer, x, y int, v float32) error {
	if !f.IsFloat() {
		return fmt.Errorf("%w: float pixel write to integer image", ErrGeometry)
	}
	i, err := f.index(layer, x, y)
	if err != nil {
		return err
	}
	f.F32[i] = v
	f.InvalidateStats()
	return nil
}

// Applies v*scale+offset to all samples. Integer results are rounded to nearest
// and clamped to the sample range
func (f *Image) ScaleOffset(scale, offset float32) {
	if f.IsFloat() {
		for i, v := range f.F32 {
			f.F32[i] = v*scale + offset
		}
	} else {
		max := float32(f.NormValue())
		for i, v := range f.U16 {
			r := float32(v)*scale + offset
			if r < 0 {
				r = 0
			} else if r > max {
				r = max
			}
			f.U16[i] = uint16(math.Round(float64(r)))
		}
	}
	f.InvalidateStats()
}
