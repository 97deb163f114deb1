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
	"io"
	"math"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/mlnoga/nightstats/internal/frame"
)

// Header keys describing the data layout, which are not copied into the image header
var structuralKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true, "NAXIS3": true,
	"EXTEND": true, "BZERO": true, "BSCALE": true, "END": true,
}

// Reads the primary image of a FITS stream. Supports 8- and 16-bit integer data,
// and 32- and 64-bit float data, with two or three axes
func ReadFITS(r io.Reader) (*frame.Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if len(f.HDUs()) == 0 {
		return nil, fmt.Errorf("%w: no HDUs", ErrFormat)
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: primary HDU is not an image", ErrFormat)
	}
	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) < 2 || len(axes) > 3 {
		return nil, fmt.Errorf("%w: %d axes", ErrFormat, len(axes))
	}
	naxisn := make([]int32, len(axes))
	n := 1
	for i, a := range axes {
		naxisn[i] = int32(a)
		n *= a
	}
	bzero, bscale := cardFloat(hdr.Get("BZERO"), 0), cardFloat(hdr.Get("BSCALE"), 1)

	var img *frame.Image
	switch hdr.Bitpix() {
	case 8:
		raw := make([]byte, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, err
		}
		if img, err = frame.NewImageUint16(naxisn, 8, nil); err != nil {
			return nil, err
		}
		for i, v := range raw {
			img.U16[i] = clampUint16(float64(v)*bscale+bzero, 255)
		}
	case 16:
		raw := make([]int16, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, err
		}
		if img, err = frame.NewImageUint16(naxisn, 16, nil); err != nil {
			return nil, err
		}
		for i, v := range raw {
			img.U16[i] = clampUint16(float64(v)*bscale+bzero, math.MaxUint16)
		}
	case -32:
		raw := make([]float32, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, err
		}
		if bscale != 1 || bzero != 0 {
			for i, v := range raw {
				raw[i] = float32(float64(v)*bscale + bzero)
			}
		}
		if img, err = frame.NewImageFloat32(naxisn, raw); err != nil {
			return nil, err
		}
	case -64:
		raw := make([]float64, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, err
		}
		if img, err = frame.NewImageFloat32(naxisn, nil); err != nil {
			return nil, err
		}
		for i, v := range raw {
			img.F32[i] = float32(v*bscale + bzero)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported bitpix %d", ErrFormat, hdr.Bitpix())
	}

	readHeader(hdr, &img.Header)
	if v, ok := img.Header.Floats["EXPTIME"]; ok {
		img.Exposure = v
	} else if v, ok := img.Header.Floats["EXPOSURE"]; ok {
		img.Exposure = v
	} else if v, ok := img.Header.Ints["EXPTIME"]; ok {
		img.Exposure = float32(v)
	}
	return img, nil
}

// Copies descriptive header cards into the image header
func readHeader(hdr *fitsio.Header, h *frame.Header) {
	for i, key := range hdr.Keys() {
		if structuralKeys[key] {
			continue
		}
		card := hdr.Card(i)
		switch key {
		case "COMMENT":
			h.Comments = append(h.Comments, cardText(card))
			continue
		case "HISTORY":
			h.History = append(h.History, cardText(card))
			continue
		}
		switch v := card.Value.(type) {
		case bool:
			h.Bools[key] = v
		case int:
			h.Ints[key] = int32(v)
		case int64:
			h.Ints[key] = int32(v)
		case int32:
			h.Ints[key] = v
		case float64:
			h.Floats[key] = float32(v)
		case float32:
			h.Floats[key] = v
		case string:
			if strings.HasPrefix(key, "DATE") {
				h.Dates[key] = v
			} else {
				h.Strings[key] = v
			}
		}
	}
}

func cardText(c *fitsio.Card) string {
	if s, ok := c.Value.(string); ok && s != "" {
		return s
	}
	return c.Comment
}

// Returns the numeric value of a card, or def if the card is missing or not numeric
func cardFloat(c *fitsio.Card, def float64) float64 {
	if c == nil {
		return def
	}
	switch v := c.Value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	}
	return def
}

func clampUint16(v, max float64) uint16 {
	if v < 0 {
		return 0
	} else if v > max {
		return uint16(max)
	}
	return uint16(math.Round(v))
}

// Writes the image as FITS. Integer data is stored as 16-bit with BZERO 32768, float data as 32-bit float
func WriteFITS(w io.Writer, img *frame.Image) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	axes := make([]int, len(img.Naxisn))
	for i, a := range img.Naxisn {
		axes[i] = int(a)
	}

	var hdu fitsio.Image
	if img.IsFloat() {
		hdu = fitsio.NewImage(-32, axes)
		defer hdu.Close()
		if err := appendHeader(hdu.Header(), img); err != nil {
			return err
		}
		data := img.F32
		if err := hdu.Write(&data); err != nil {
			return err
		}
	} else {
		hdu = fitsio.NewImage(16, axes)
		defer hdu.Close()
		if err := hdu.Header().Append(
			fitsio.Card{Name: "BZERO", Value: 32768, Comment: "unsigned 16-bit data"},
			fitsio.Card{Name: "BSCALE", Value: 1},
		); err != nil {
			return err
		}
		if err := appendHeader(hdu.Header(), img); err != nil {
			return err
		}
		data := make([]int16, len(img.U16))
		for i, v := range img.U16 {
			data[i] = int16(int32(v) - 32768)
		}
		if err := hdu.Write(&data); err != nil {
			return err
		}
	}
	return f.Write(hdu)
}

// Appends the descriptive image header as cards, in sorted key order. Keys longer
// than eight characters cannot be represented and are skipped
func appendHeader(hdr *fitsio.Header, img *frame.Image) error {
	h := img.Header
	seen := map[string]bool{}
	var cards []fitsio.Card
	add := func(key string, value interface{}) {
		if len(key) > 8 || structuralKeys[key] || seen[key] {
			return
		}
		seen[key] = true
		cards = append(cards, fitsio.Card{Name: key, Value: value})
	}
	for _, k := range sortedKeys(h.Bools) {
		add(k, h.Bools[k])
	}
	for _, k := range sortedKeys(h.Ints) {
		add(k, int(h.Ints[k]))
	}
	for _, k := range sortedKeys(h.Floats) {
		add(k, float64(h.Floats[k]))
	}
	for _, k := range sortedKeys(h.Strings) {
		add(k, h.Strings[k])
	}
	for _, k := range sortedKeys(h.Dates) {
		add(k, h.Dates[k])
	}
	if img.Exposure != 0 {
		add("EXPTIME", float64(img.Exposure))
	}
	for _, c := range h.Comments {
		cards = append(cards, fitsio.Card{Name: "COMMENT", Comment: c})
	}
	for _, c := range h.History {
		cards = append(cards, fitsio.Card{Name: "HISTORY", Comment: c})
	}
	return hdr.Append(cards...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
