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

package imgstats

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mlnoga/nightstats/internal/frame"
	"github.com/mlnoga/nightstats/internal/qsort"
	"github.com/mlnoga/nightstats/internal/stats"
)

// Bit set of statistics groups to compute
type Request uint8

const (
	MinMax Request = 1 << iota // pixel counts, minimum, maximum, normalization value
	Basic                      // MinMax plus mean, sigma, background noise, median
	AvgDev                     // mean absolute deviation from the median
	MAD                        // median absolute deviation
	BWMV                       // square root of the biweight midvariance
	IKSS                       // iterative k-sigma location and scale

	Main = Basic | AvgDev | MAD | BWMV
	Norm = Basic | MAD | IKSS
	All  = MinMax | Basic | AvgDev | MAD | BWMV | IKSS
)

var ErrEmptySelection = errors.New("selection does not overlap the image")

// Fields produced by each group
var groupFields = []struct {
	group  Request
	fields stats.Field
}{
	{MinMax, stats.FieldTotal | stats.FieldNGoodPix | stats.FieldMin | stats.FieldMax | stats.FieldNormValue},
	{Basic, stats.FieldMean | stats.FieldSigma | stats.FieldBgNoise | stats.FieldMedian},
	{AvgDev, stats.FieldAvgDev},
	{MAD, stats.FieldMAD},
	{BWMV, stats.FieldSqrtBWMV},
	{IKSS, stats.FieldLocation | stats.FieldScale},
}

// Adds the groups a request depends on
func (r Request) withDependencies() Request {
	if r&BWMV != 0 {
		r |= MAD
	}
	if r&(AvgDev|MAD|BWMV|IKSS) != 0 {
		r |= Basic
	}
	if r != 0 {
		r |= MinMax
	}
	return r
}

// Returns the groups of the request which are not fully present in the record
func (r Request) missing(s *stats.ImageStatistics) Request {
	var res Request
	for _, g := range groupFields {
		if r&g.group != 0 && !s.Has(g.fields) {
			res |= g.group
		}
	}
	return res
}

func (r Request) String() string {
	names := []string{"minmax", "basic", "avgdev", "mad", "bwmv", "ikss"}
	parts := []string{}
	for i, name := range names {
		if r&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Parses a request from a name: minmax, basic, avgdev, mad, bwmv, ikss, main, norm or all.
// Names can be combined with |
func ParseRequest(s string) (Request, error) {
	var r Request
	for _, part := range strings.Split(s, "|") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "minmax":
			r |= MinMax
		case "basic":
			r |= Basic
		case "avgdev":
			r |= AvgDev
		case "mad":
			r |= MAD
		case "bwmv":
			r |= BWMV
		case "ikss":
			r |= IKSS
		case "main":
			r |= Main
		case "norm":
			r |= Norm
		case "all":
			r |= All
		default:
			return 0, fmt.Errorf("unknown statistics request '%s'", part)
		}
	}
	return r, nil
}

// Options for statistics computation
type Options struct {
	NullCheck bool           // treat zero samples as invalid and exclude them
	Threads   int            // degree of parallelism, at least 1
	OnCompute func(Request)  // called once for each group actually computed
	Log       zerolog.Logger // debug output
}

// Computes the requested statistics groups for one channel of an image.
//
// With a non-empty selection, statistics cover only that region, and go into a fresh
// transient record which is never cached. Otherwise they cover the full channel and
// go into cached if given (a sequence-owned record), else into the image's own record
// for the channel, which is created on demand. Only groups not yet present in the
// record are computed. Groups a request depends on are computed as well.
// Channels without good pixels yield zero for all requested values
func Compute(img *frame.Image, layer int, sel *frame.Rect, req Request, cached *stats.ImageStatistics, opts Options) (*stats.ImageStatistics, error) {
	if err := img.CheckLayer(layer); err != nil {
		return nil, err
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	req = req.withDependencies()

	region := frame.Rect{Width: img.Width(), Height: img.Height()}
	var rec *stats.ImageStatistics
	switch {
	case sel != nil && !sel.Empty():
		region = sel.Intersect(region)
		if region.Empty() {
			return nil, fmt.Errorf("%w: %v of %s image", ErrEmptySelection, *sel, img.DimensionsToString())
		}
		rec = stats.NewImageStatistics(stats.OriginTransient)
	case cached != nil:
		rec = cached
	default:
		rec = img.EnsureStats(layer)
	}

	rec.Lock()
	defer rec.Unlock()
	missing := req.missing(rec)
	if missing == 0 {
		return rec, nil
	}
	opts.Log.Debug().Int("id", img.ID).Int("layer", layer).Stringer("groups", missing).Msg("computing statistics")

	full := region.Width == img.Width() && region.Height == img.Height()
	var err error
	if img.IsFloat() {
		err = computeGroups(extractRegion(img.PlaneF32(layer), img.Width(), region), !full,
			region.Width, img.NormValue(), missing, rec, opts)
	} else {
		err = computeGroups(extractRegion(img.PlaneU16(layer), img.Width(), region), !full,
			region.Width, img.NormValue(), missing, rec, opts)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Returns the samples of the given region of a plane. Returns the plane itself for the full region
func extractRegion[T qsort.Ordered](plane []T, width int, r frame.Rect) []T {
	if r.X == 0 && r.Y == 0 && r.Width == width && r.Width*r.Height == len(plane) {
		return plane
	}
	res := make([]T, 0, r.Width*r.Height)
	for y := r.Y; y < r.Y+r.Height; y++ {
		res = append(res, plane[y*width+r.X:y*width+r.X+r.Width]...)
	}
	return res
}

// Computes the missing groups over the samples of a region in dependency order,
// and marks them present in the record. Owned is true if the samples are a private copy
// which may be reordered. Caller holds the record lock
func computeGroups[T qsort.Ordered](samples []T, owned bool, width int, normValue float64, missing Request, rec *stats.ImageStatistics, opts Options) error {
	threads := opts.Threads
	computed := func(group Request) {
		for _, g := range groupFields {
			if g.group == group {
				rec.MarkPresent(g.fields)
			}
		}
		if opts.OnCompute != nil {
			opts.OnCompute(group)
		}
	}

	// Noise is estimated on the 2-D region before null samples are removed
	noise := float64(0)
	if missing&Basic != 0 {
		noise = stats.Noise(samples, width, threads)
	}

	good := samples
	if opts.NullCheck {
		good, owned = stats.Compact(samples), true
	}
	n := len(good)

	if missing&MinMax != 0 {
		rec.Total, rec.NGoodPix, rec.NormValue = int64(len(samples)), int64(n), normValue
		rec.Min, rec.Max = stats.MinMax(good, threads)
		computed(MinMax)
	}

	if missing&Basic != 0 {
		median, err := stats.Median(good, threads)
		if err != nil {
			return err
		}
		rec.Mean, rec.Sigma = stats.MeanSigma(good, threads)
		rec.Median = median
		rec.BgNoise = noise
		if n == 0 {
			rec.BgNoise = 0
		}
		computed(Basic)
	}

	if missing&AvgDev != 0 {
		rec.AvgDev = stats.AvgDev(good, rec.Median)
		computed(AvgDev)
	}

	if missing&MAD != 0 {
		mad, err := stats.MAD(good, rec.Median, threads)
		if err != nil {
			return err
		}
		rec.MAD = mad
		computed(MAD)
	}

	if missing&BWMV != 0 {
		rec.SqrtBWMV = math.Sqrt(stats.BiweightMidvariance(good, rec.MAD, rec.Median))
		computed(BWMV)
	}

	if missing&IKSS != 0 {
		location, scale, err := ikss(good, owned, normValue, threads)
		if err != nil {
			return err
		}
		rec.Location, rec.Scale = location, scale
		computed(IKSS)
	}
	return nil
}

// Runs IKSS on the good samples normalized by normValue, and rescales the results to
// sample units. Integer data is converted into a float scratch copy, float data with
// unit normalization is sorted in place if owned
func ikss[T qsort.Ordered](good []T, owned bool, normValue float64, threads int) (location, scale float64, err error) {
	if f32, ok := any(good).([]float32); ok && normValue == 1 {
		if !owned {
			f32 = append([]float32(nil), f32...)
		}
		return stats.IKSS(f32, threads)
	}

	normalized := make([]float32, len(good))
	inv := 1 / normValue
	for i, v := range good {
		normalized[i] = float32(float64(v) * inv)
	}
	location, scale, err = stats.IKSS(normalized, threads)
	return location * normValue, scale * normValue, err
}
