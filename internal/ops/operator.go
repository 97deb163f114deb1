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

package ops

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mlnoga/nightstats/internal/frame"
)

var ErrNoFiles = errors.New("no files match")

// A promise for an image. Returns a materialized image, or an error
type Promise func() (f *frame.Image, err error)

// Materializes all promises with given concurrency limit. Failed promises are
// dropped from the output, and their errors joined. With forget, outputs are not retained
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*frame.Image, err error) {
	if len(ins) == 0 {
		return nil, nil
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	if !forget {
		outs = make([]*frame.Image, len(ins))
	}
	limiter := make(chan bool, maxThreads)
	errs := make(chan error, len(ins))
	for i, in := range ins {
		limiter <- true
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			f, err := theIn() // materialize the promise
			if err == nil && !forget {
				outs[i] = f
			}
			errs <- err
		}(i, in)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	close(errs)
	var all []error
	for e := range errs { // collect errors
		if e != nil {
			all = append(all, e)
		}
	}
	return RemoveNils(outs), errors.Join(all...)
}

// Remove nils from an array of images, editing the underlying array in place
func RemoveNils(images []*frame.Image) []*frame.Image {
	o := 0
	for i := 0; i < len(images); i++ {
		if images[i] != nil {
			images[o] = images[i]
			o++
		}
	}
	for i := o; i < len(images); i++ {
		images[i] = nil
	}
	return images[:o]
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func IsPathAllowed(p string) bool {
	if filepath.IsAbs(p) {
		return false // relative paths only
	}
	if strings.Contains(p, "..") {
		return false // no going outside the tree
	}
	return true
}

// Expands file name patterns with wildcards into a list of file names, sorted per pattern.
// With restrict, matches outside the current directory tree are skipped
func ExpandPatterns(c *Context, patterns []string, restrict bool) ([]string, error) {
	var res []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if restrict && !IsPathAllowed(match) {
				c.Log.Warn().Str("file", match).Msg("pattern match outside current directory tree, skipping")
				continue
			}
			res = append(res, match)
		}
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoFiles, patterns)
	}
	c.Log.Info().Int("files", len(res)).Msg("found files")
	return res, nil
}
