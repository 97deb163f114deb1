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

package stats

import (
	"fmt"
	"sync"
)

// Value of a statistics field which has not been computed yet
const NotComputed = -1

// Owner of a statistics record
type Origin int

const (
	OriginTransient Origin = iota // computed for a selection or a one-off request, owned by the caller
	OriginImage                   // attached to a loaded image
	OriginSequence                // persisted in a sequence slot
)

func (o Origin) String() string {
	switch o {
	case OriginTransient:
		return "transient"
	case OriginImage:
		return "image"
	case OriginSequence:
		return "sequence"
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Bit set of statistics fields
type Field uint16

const (
	FieldTotal Field = 1 << iota
	FieldNGoodPix
	FieldMean
	FieldSigma
	FieldBgNoise
	FieldMin
	FieldMax
	FieldMedian
	FieldAvgDev
	FieldMAD
	FieldSqrtBWMV
	FieldLocation
	FieldScale
	FieldNormValue

	FieldsAll = FieldNormValue<<1 - 1
)

// Statistics of one channel of one image. Every field starts at NotComputed,
// and a presence bit set mirrors which fields have been computed, so legitimately
// negative values on processed float data are not mistaken for missing ones.
// Computation on a record is serialized with Lock and Unlock
type ImageStatistics struct {
	Total     int64   `json:"total"`     // Number of pixels
	NGoodPix  int64   `json:"nGoodPix"`  // Number of valid pixels, after null check
	Mean      float64 `json:"mean"`      // Mean of good pixels
	Sigma     float64 `json:"sigma"`     // Sample standard deviation of good pixels
	BgNoise   float64 `json:"bgNoise"`   // Background noise estimate
	Min       float64 `json:"min"`       // Minimum
	Max       float64 `json:"max"`       // Maximum
	Median    float64 `json:"median"`    // Median
	AvgDev    float64 `json:"avgDev"`    // Mean absolute deviation from the median
	MAD       float64 `json:"mad"`       // Median absolute deviation from the median
	SqrtBWMV  float64 `json:"sqrtBWMV"`  // Square root of the biweight midvariance
	Location  float64 `json:"location"`  // IKSS location
	Scale     float64 `json:"scale"`     // IKSS scale
	NormValue float64 `json:"normValue"` // Normalization divisor, 255 or 65535 for integer data, 1 for float data

	Origin Origin `json:"origin"`

	present Field
	mutex   sync.Mutex
}

// Creates a new all-sentinel statistics record with the given origin
func NewImageStatistics(origin Origin) *ImageStatistics {
	s := &ImageStatistics{Origin: origin}
	s.reset()
	return s
}

// Resets all fields to NotComputed. Used to invalidate a record when pixel data changes
func (s *ImageStatistics) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.reset()
}

func (s *ImageStatistics) reset() {
	s.Total, s.NGoodPix = NotComputed, NotComputed
	s.Mean, s.Sigma, s.BgNoise = NotComputed, NotComputed, NotComputed
	s.Min, s.Max, s.Median = NotComputed, NotComputed, NotComputed
	s.AvgDev, s.MAD, s.SqrtBWMV = NotComputed, NotComputed, NotComputed
	s.Location, s.Scale, s.NormValue = NotComputed, NotComputed, NotComputed
	s.present = 0
}

// Serializes computation on the record. Pair with Unlock
func (s *ImageStatistics) Lock() { s.mutex.Lock() }

// Releases the record after computation
func (s *ImageStatistics) Unlock() { s.mutex.Unlock() }

// Returns true if all given fields have been computed. Caller must hold the lock
// if the record can be updated concurrently
func (s *ImageStatistics) Has(fields Field) bool {
	return s.present&fields == fields
}

// Returns the subset of given fields which have not been computed yet
func (s *ImageStatistics) Missing(fields Field) Field {
	return fields &^ s.present
}

// Marks the given fields as computed. Values must have been assigned before
func (s *ImageStatistics) MarkPresent(fields Field) {
	s.present |= fields
}

// Returns true if the record is attached to an image or a sequence slot.
// Interior records are owned by their container and must not be released by callers
func (s *ImageStatistics) Interior() bool {
	return s.Origin != OriginTransient
}

// Returns a copy of the record with the same values and presence bits, and the given origin
func (s *ImageStatistics) Clone(origin Origin) *ImageStatistics {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return &ImageStatistics{
		Total: s.Total, NGoodPix: s.NGoodPix,
		Mean: s.Mean, Sigma: s.Sigma, BgNoise: s.BgNoise,
		Min: s.Min, Max: s.Max, Median: s.Median,
		AvgDev: s.AvgDev, MAD: s.MAD, SqrtBWMV: s.SqrtBWMV,
		Location: s.Location, Scale: s.Scale, NormValue: s.NormValue,
		Origin:  origin,
		present: s.present,
	}
}

// Returns true if both records hold bit-identical values and presence bits
func (s *ImageStatistics) Equal(o *ImageStatistics) bool {
	return s.Total == o.Total && s.NGoodPix == o.NGoodPix &&
		s.Mean == o.Mean && s.Sigma == o.Sigma && s.BgNoise == o.BgNoise &&
		s.Min == o.Min && s.Max == o.Max && s.Median == o.Median &&
		s.AvgDev == o.AvgDev && s.MAD == o.MAD && s.SqrtBWMV == o.SqrtBWMV &&
		s.Location == o.Location && s.Scale == o.Scale && s.NormValue == o.NormValue &&
		s.present == o.present
}

// Pretty print statistics to string
func (s *ImageStatistics) String() string {
	return fmt.Sprintf("Total %d Good %d Min %.6g Max %.6g Mean %.6g Sigma %.6g Noise %.4g Median %.6g AvgDev %.6g MAD %.6g SqrtBWMV %.6g Location %.6g Scale %.6g Norm %g",
		s.Total, s.NGoodPix, s.Min, s.Max, s.Mean, s.Sigma, s.BgNoise, s.Median,
		s.AvgDev, s.MAD, s.SqrtBWMV, s.Location, s.Scale, s.NormValue)
}
