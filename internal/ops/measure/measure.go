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
	"encoding/json"
	"fmt"

	"github.com/mlnoga/nightstats/internal/frame"
	"github.com/mlnoga/nightstats/internal/frameio"
	"github.com/mlnoga/nightstats/internal/imgstats"
	"github.com/mlnoga/nightstats/internal/ops"
	"github.com/mlnoga/nightstats/internal/pool"
	"github.com/mlnoga/nightstats/internal/stats"
)

// Parameters for measuring image statistics
type OpStats struct {
	Request   string      `json:"request"`   // Statistics groups, see imgstats.ParseRequest
	NullCheck bool        `json:"nullCheck"` // Exclude zero samples
	Selection *frame.Rect `json:"selection"` // Optional region to restrict statistics to
}

func NewOpStatsDefault() *OpStats { return NewOpStats("main", false) }

func NewOpStats(request string, nullCheck bool) *OpStats {
	return &OpStats{Request: request, NullCheck: nullCheck}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpStats(def)
	return nil
}

// Statistics of all channels of one file
type FileStats struct {
	ID       int                      `json:"id"`
	FileName string                   `json:"fileName"`
	Dims     string                   `json:"dims"`
	Exposure float32                  `json:"exposure"`
	Channels []*stats.ImageStatistics `json:"channels"`
}

// Measures the statistics of the given image, for every channel
func (op *OpStats) Apply(img *frame.Image, c *ops.Context, threads int) (*FileStats, error) {
	req, err := imgstats.ParseRequest(op.Request)
	if err != nil {
		return nil, err
	}
	opts := imgstats.Options{NullCheck: op.NullCheck, Threads: threads, Log: c.Log}
	fs := &FileStats{ID: img.ID, FileName: img.FileName, Dims: img.DimensionsToString(), Exposure: img.Exposure}
	for layer := 0; layer < img.Channels(); layer++ {
		s, err := imgstats.Compute(img, layer, op.Selection, req, nil, opts)
		if err != nil {
			return nil, fmt.Errorf("%s channel %d: %w", img.FileName, layer, err)
		}
		fs.Channels = append(fs.Channels, s)
	}
	return fs, nil
}

// Loads the given files concurrently and measures their statistics. Returns the statistics
// of all readable files in input order, and the joined errors of the others
func (op *OpStats) ApplyToFiles(fileNames []string, c *ops.Context) ([]*FileStats, error) {
	if _, err := imgstats.ParseRequest(op.Request); err != nil {
		return nil, err
	}
	if len(fileNames) == 0 {
		return nil, ops.ErrNoFiles
	}
	threads := 1
	if len(fileNames) < c.MaxThreads {
		threads = c.MaxThreads / len(fileNames)
	}

	results := make([]*FileStats, len(fileNames))
	promises := make([]ops.Promise, len(fileNames))
	for i, fileName := range fileNames {
		i, fileName := i, fileName
		promises[i] = func() (*frame.Image, error) {
			img, err := frameio.ReadFile(fileName, i)
			if err != nil {
				c.Log.Warn().Err(err).Str("file", fileName).Msg("cannot load")
				return nil, err
			}
			fs, err := op.Apply(img, c, threads)
			if err != nil {
				return nil, err
			}
			for layer, s := range fs.Channels {
				c.Log.Info().Int("id", i).Str("file", fileName).Int("channel", layer).Msg(s.String())
			}
			results[i] = fs
			return img, nil
		}
	}
	_, err := ops.MaterializeAll(promises, c.MaxThreads, true)
	pool.ClearPools()

	o := 0
	for _, r := range results {
		if r != nil {
			results[o] = r
			o++
		}
	}
	return results[:o], err
}
