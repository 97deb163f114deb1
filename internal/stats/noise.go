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
	"math"

	"github.com/mlnoga/nightstats/internal/par"
	"github.com/mlnoga/nightstats/internal/qsort"
)

// Estimate the level of gaussian noise on a natural image, in data units.
// Plane is row-major with the given width. Returns 0 for planes narrower or lower than 3 pixels.
// From J. Immerkær, “Fast Noise Variance Estimation”, Computer Vision and Image Understanding, Vol. 64, No. 2, pp. 300-302, Sep. 1996
func Noise[T qsort.Ordered](plane []T, width int, threads int) float64 {
	if width < 3 || len(plane)%width != 0 {
		return 0
	}
	height := len(plane) / width
	if height < 3 {
		return 0
	}
	if threads < 1 {
		threads = 1
	}

	// 3x3 Laplacian difference kernel
	//  1 -2  1
	// -2  4 -2
	//  1 -2  1
	sums := make([]float64, threads)
	workers := par.ForWorkers(height-2, threads, func(worker, lower, upper int) {
		sum := float64(0)
		for y := lower + 1; y < upper+1; y++ {
			above, row, below := plane[(y-1)*width:y*width], plane[y*width:(y+1)*width], plane[(y+1)*width:(y+2)*width]
			for x := 1; x < width-1; x++ {
				conv := float64(above[x-1]) - 2*float64(above[x]) + float64(above[x+1]) -
					2*float64(row[x-1]) + 4*float64(row[x]) - 2*float64(row[x+1]) +
					float64(below[x-1]) - 2*float64(below[x]) + float64(below[x+1])
				sum += math.Abs(conv)
			}
		}
		sums[worker] = sum
	})

	sum := float64(0)
	for _, s := range sums[:workers] {
		sum += s
	}
	factor := math.Sqrt(0.5*math.Pi) / (6 * float64(width-2) * float64(height-2))
	return sum * factor
}
