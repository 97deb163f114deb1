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

package frameio

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"

	"github.com/mlnoga/nightstats/internal/frame"
)

// Read a color or grayscale TIFF image. Grayscale images yield one channel, all others three.
// Samples are widened to 16 bits
func ReadTIFF(r io.Reader) (*frame.Image, error) {
	t, err := tiff.Decode(r)
	if err != nil {
		return nil, err
	}
	width, height := t.Bounds().Dx(), t.Bounds().Dy()
	min := t.Bounds().Min
	channels := 3
	if t.ColorModel() == color.GrayModel || t.ColorModel() == color.Gray16Model {
		channels = 1
	}
	naxisn := []int32{int32(width), int32(height)}
	if channels > 1 {
		naxisn = append(naxisn, int32(channels))
	}
	img, err := frame.NewImageUint16(naxisn, 16, nil)
	if err != nil {
		return nil, err
	}

	size := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := t.At(min.X+x, min.Y+y)
			if channels == 1 {
				img.U16[y*width+x] = color.Gray16Model.Convert(c).(color.Gray16).Y
				continue
			}
			r, g, b, _ := c.RGBA()
			img.U16[y*width+x] = uint16(r)
			img.U16[y*width+x+size] = uint16(g)
			img.U16[y*width+x+size*2] = uint16(b)
		}
	}
	return img, nil
}

// Write an image with one or three channels as 16-bit TIFF. 8-bit data is scaled to
// the full 16-bit range, float data is clamped to [0,1] and scaled
func WriteTIFF16(w io.Writer, img *frame.Image) error {
	channels := img.Channels()
	if channels != 1 && channels != 3 {
		return fmt.Errorf("%w: cannot write %d channels as TIFF", ErrFormat, channels)
	}
	width, height, size := img.Width(), img.Height(), int(img.Pixels)
	scale := 65535 / img.NormValue()
	sample := func(i int) uint16 {
		var v float64
		if img.IsFloat() {
			v = float64(img.F32[i])
		} else {
			v = float64(img.U16[i])
		}
		v *= scale
		// replace NaNs with zeros for export, else TIFF output breaks
		if math.IsNaN(v) || v < 0 {
			return 0
		} else if v > 65535 {
			return 65535
		}
		return uint16(math.Round(v))
	}

	var out image.Image
	rect := image.Rect(0, 0, width, height)
	if channels == 1 {
		gray := image.NewGray16(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gray.SetGray16(x, y, color.Gray16{Y: sample(y*width + x)})
			}
		}
		out = gray
	} else {
		rgb := image.NewRGBA64(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				rgb.SetRGBA64(x, y, color.RGBA64{R: sample(i), G: sample(i + size), B: sample(i + size*2), A: 65535})
			}
		}
		out = rgb
	}
	return tiff.Encode(w, out, &tiff.Options{Compression: tiff.Uncompressed, Predictor: false})
}
