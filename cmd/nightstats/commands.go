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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlnoga/nightstats/internal/frameio"
	"github.com/mlnoga/nightstats/internal/imgstats"
	"github.com/mlnoga/nightstats/internal/ops"
	"github.com/mlnoga/nightstats/internal/ops/measure"
	"github.com/mlnoga/nightstats/internal/ops/sum"
	"github.com/mlnoga/nightstats/internal/rest"
)

func newStatsCmd(g *globals) *cobra.Command {
	op := measure.NewOpStatsDefault()
	var asJSON bool
	var csvFile string

	cmd := &cobra.Command{
		Use:     "stats [flags] files...",
		Short:   "Show per-channel statistics of the input images",
		Example: `nightstats stats --req all --nullcheck light*.fits`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := imgstats.ParseRequest(op.Request); err != nil {
				return g.fail(err)
			}
			fileNames, err := ops.ExpandPatterns(g.c, args, false)
			if err != nil {
				return g.fail(err)
			}
			res, err := op.ApplyToFiles(fileNames, g.c)
			if asJSON {
				bs, errJSON := json.MarshalIndent(res, "", "  ")
				if errJSON != nil {
					return g.fail(errJSON)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(bs))
			}
			if csvFile != "" {
				if errCSV := measure.ExportCSV(csvFile, res, g.c.Log); errCSV != nil {
					return g.fail(errCSV)
				}
			}
			if err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&op.Request, "req", op.Request, "statistics to compute, names joined with '|' from minmax, basic, avgdev, mad, bwmv, ikss, or one of main, norm, all")
	f.BoolVar(&op.NullCheck, "nullcheck", op.NullCheck, "exclude zero-valued samples")
	f.BoolVar(&asJSON, "json", false, "print results as JSON to stdout")
	f.StringVar(&csvFile, "csv", "", "export results as CSV to `file`, one row per file and channel")
	return cmd
}

func newSumCmd(g *globals) *cobra.Command {
	op := sum.NewOpSumDefault()
	var out, shifts string

	cmd := &cobra.Command{
		Use:     "sum [flags] files...",
		Short:   "Sum the input frames into one image",
		Example: `nightstats sum --out sum.fits --shifts shifts.json --exclude 3,7 light*.fits`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frameio.FormatOf(out) == frameio.FormatUnknown {
				return g.fail(fmt.Errorf("%w: %s", frameio.ErrFormat, out))
			}
			fileNames, err := ops.ExpandPatterns(g.c, args, false)
			if err != nil {
				return g.fail(err)
			}
			reference := op.Reference
			if reference < 0 {
				reference = 0
			}
			seq, reader, err := frameio.OpenSequence(fileNames, reference, g.c.Log)
			if err != nil {
				return g.fail(err)
			}
			if shifts != "" {
				if err := frameio.LoadShifts(seq, shifts); err != nil {
					return g.fail(err)
				}
			}

			img, res, err := op.Apply(cmd.Context(), g.c, seq, reader)
			g.c.Log.Info().Int("selected", res.Selected).Int("processed", res.Processed).Int("failed", res.Failed).Msg("summed")
			if err != nil {
				return g.fail(err)
			}
			g.c.Log.Info().Str("file", out).Str("dims", img.DimensionsToString()).Float32("exposure", img.Exposure).Msg("writing")
			if err := frameio.WriteFile(img, out); err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&out, "out", "out.fits", "save output to `file`, FITS or TIFF")
	f.StringVar(&shifts, "shifts", "", "load per-frame integer shifts from JSON `file`, an array of {\"x\":..,\"y\":..}")
	f.IntVar(&op.Reference, "ref", op.Reference, "index of the reference frame for metadata, -1=first file")
	f.BoolVar(&op.StopOnError, "stopOnError", op.StopOnError, "abort on the first unreadable frame instead of skipping it")
	f.BoolVar(&op.Parallel, "parallel", op.Parallel, "accumulate several frames concurrently")
	f.IntSliceVar(&op.Exclude, "exclude", nil, "indices of frames to leave out, e.g. 3,7")
	return cmd
}

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr   string
		chroot string
		setuid int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rest.MakeSandbox(g.c.Log, chroot, setuid); err != nil {
				return g.fail(err)
			}
			if err := rest.Serve(g.c, addr); err != nil {
				return g.fail(err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "listen on the given `address`")
	f.StringVar(&chroot, "chroot", "", "chroot into the given `directory` before serving")
	f.IntVar(&setuid, "setuid", -1, "switch to the given user id before serving, -1=keep")
	return cmd
}
