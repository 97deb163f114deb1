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
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mlnoga/nightstats/internal/frame"
)

var ErrFormat = errors.New("unsupported image format")

// Image file formats
type Format int

const (
	FormatUnknown Format = iota
	FormatFITS
	FormatFITSGzip
	FormatTIFF
)

// Determines the file format from the file name suffix
func FormatOf(fileName string) Format {
	fnLower := strings.ToLower(fileName)
	for _, suffix := range []string{".fits", ".fit", ".fts"} {
		if strings.HasSuffix(fnLower, suffix) {
			return FormatFITS
		}
		if strings.HasSuffix(fnLower, suffix+".gz") || strings.HasSuffix(fnLower, suffix+".gzip") {
			return FormatFITSGzip
		}
	}
	if strings.HasSuffix(fnLower, ".tif") || strings.HasSuffix(fnLower, ".tiff") {
		return FormatTIFF
	}
	return FormatUnknown
}

// Reads an image from a FITS, gzipped FITS or TIFF file, and assigns it the given ID
func ReadFile(fileName string, id int) (*frame.Image, error) {
	format := FormatOf(fileName)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrFormat, fileName)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = bufio.NewReader(file)
	var img *frame.Image
	switch format {
	case FormatFITSGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		img, err = ReadFITS(gz)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
	case FormatFITS:
		if img, err = ReadFITS(r); err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
	case FormatTIFF:
		if img, err = ReadTIFF(r); err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
	}
	img.ID, img.FileName = id, fileName
	return img, nil
}

// Writes an image to a FITS, gzipped FITS or 16-bit TIFF file, depending on the suffix
func WriteFile(img *frame.Image, fileName string) (err error) {
	format := FormatOf(fileName)
	if format == FormatUnknown {
		return fmt.Errorf("%w: %s", ErrFormat, fileName)
	}
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	writer := bufio.NewWriter(file)
	defer func() {
		if ferr := writer.Flush(); err == nil {
			err = ferr
		}
	}()

	switch format {
	case FormatFITSGzip:
		gz := gzip.NewWriter(writer)
		if err := WriteFITS(gz, img); err != nil {
			return err
		}
		return gz.Close()
	case FormatFITS:
		return WriteFITS(writer, img)
	default:
		return WriteTIFF16(writer, img)
	}
}

// Reads the frames of a file-backed sequence on demand. Implements ops.FrameReader
type FileReader struct {
	Seq *frame.Sequence
	Log zerolog.Logger
}

func NewFileReader(seq *frame.Sequence, log zerolog.Logger) *FileReader {
	return &FileReader{Seq: seq, Log: log}
}

func (r *FileReader) ReadFrame(ctx context.Context, index int) (*frame.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(r.Seq.FileNames) {
		return nil, fmt.Errorf("%w: %d of %d files", frame.ErrFrameIndex, index, len(r.Seq.FileNames))
	}
	img, err := ReadFile(r.Seq.FileNames[index], index)
	if err != nil {
		return nil, err
	}
	r.Log.Debug().Int("frame", index).Str("file", img.FileName).Str("dims", img.DimensionsToString()).Msg("loaded")
	return img, nil
}

// Creates a file-backed sequence. Reads the reference frame to determine the frame geometry
func OpenSequence(fileNames []string, reference int, log zerolog.Logger) (*frame.Sequence, *FileReader, error) {
	if len(fileNames) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file list", frame.ErrFrameIndex)
	}
	if reference < 0 || reference >= len(fileNames) {
		return nil, nil, fmt.Errorf("%w: reference %d of %d files", frame.ErrFrameIndex, reference, len(fileNames))
	}
	ref, err := ReadFile(fileNames[reference], reference)
	if err != nil {
		return nil, nil, err
	}
	seq := frame.NewFileSequence(fileNames, ref.Channels())
	seq.Reference = reference
	if err := seq.SetGeometry(ref); err != nil {
		return nil, nil, err
	}
	log.Info().Int("frames", seq.Len()).Str("reference", ref.FileName).Str("dims", ref.DimensionsToString()).Msg("opened sequence")
	return seq, NewFileReader(seq, log), nil
}

// Loads per-frame shifts from a JSON file holding an array of {"x":..,"y":..} objects,
// one per frame of the sequence
func LoadShifts(seq *frame.Sequence, fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	var shifts []frame.Shift
	if err := json.Unmarshal(data, &shifts); err != nil {
		return fmt.Errorf("%s: %w", fileName, err)
	}
	if len(shifts) != seq.Len() {
		return fmt.Errorf("%w: %d shifts for %d frames", frame.ErrFrameIndex, len(shifts), seq.Len())
	}
	copy(seq.Shifts, shifts)
	return nil
}
