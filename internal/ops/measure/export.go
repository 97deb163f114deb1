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

package measure

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mlnoga/nightstats/internal/stats"
)

var exportColumns = []string{
	"ID", "File", "Channel", "Exposure", "Total", "NGoodPix",
	"Min", "Max", "Mean", "Sigma", "BgNoise", "Median",
	"AvgDev", "MAD", "SqrtBWMV", "Location", "Scale",
}

// Writes the statistics as CSV with one row per file and channel. Fields
// which were not computed are written as empty cells
func WriteCSV(w io.Writer, files []*FileStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return err
	}
	for _, fs := range files {
		for layer, s := range fs.Channels {
			row := []string{
				strconv.Itoa(fs.ID),
				fs.FileName,
				strconv.Itoa(layer),
				strconv.FormatFloat(float64(fs.Exposure), 'g', -1, 32),
			}
			row = append(row, exportFields(s)...)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportFields(s *stats.ImageStatistics) []string {
	cell := func(f stats.Field, v float64) string {
		if !s.Has(f) {
			return ""
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	count := func(f stats.Field, v int64) string {
		if !s.Has(f) {
			return ""
		}
		return strconv.FormatInt(v, 10)
	}
	return []string{
		count(stats.FieldTotal, s.Total),
		count(stats.FieldNGoodPix, s.NGoodPix),
		cell(stats.FieldMin, s.Min),
		cell(stats.FieldMax, s.Max),
		cell(stats.FieldMean, s.Mean),
		cell(stats.FieldSigma, s.Sigma),
		cell(stats.FieldBgNoise, s.BgNoise),
		cell(stats.FieldMedian, s.Median),
		cell(stats.FieldAvgDev, s.AvgDev),
		cell(stats.FieldMAD, s.MAD),
		cell(stats.FieldSqrtBWMV, s.SqrtBWMV),
		cell(stats.FieldLocation, s.Location),
		cell(stats.FieldScale, s.Scale),
	}
}

// Writes the statistics as CSV to the given file, truncating it
func ExportCSV(fileName string, files []*FileStats, log zerolog.Logger) (err error) {
	log.Info().Str("file", fileName).Int("files", len(files)).Msg("writing statistics")
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("error creating file %s: %w", fileName, err)
	}
	defer func() {
		if errClose := f.Close(); err == nil {
			err = errClose
		}
	}()
	w := bufio.NewWriter(f)
	if err := WriteCSV(w, files); err != nil {
		return err
	}
	return w.Flush()
}
