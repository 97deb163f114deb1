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
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mlnoga/nightstats/internal/log"
	"github.com/mlnoga/nightstats/internal/ops"
)

const version = "0.3.0"

// Settings shared by all commands
type globals struct {
	logFile  string
	threads  int
	memoryMB int
	verbose  bool

	sink *log.Sink
	c    *ops.Context
}

func main() {
	debug.SetGCPercent(10)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	var start time.Time

	cmd := &cobra.Command{
		Use:   "nightstats",
		Short: "Statistics and accumulation for astronomical image sequences",
		Long: `Nightstats Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			start = time.Now()
			return g.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			g.c.Log.Info().Dur("elapsed", time.Since(start)).Msg("done")
			return g.sink.Close()
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.logFile, "log", "", "also save log output to `file`")
	pf.IntVar(&g.threads, "threads", 0, "maximum number of threads, 0=number of logical cores")
	pf.IntVar(&g.memoryMB, "memory", 0, "memory budget in MiB, 0=physical memory")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output")

	cmd.AddCommand(
		newStatsCmd(g),
		newSumCmd(g),
		newServeCmd(g),
		newLegalCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Sets up logging and the execution context from the persistent flags
func (g *globals) init() error {
	level := zerolog.InfoLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	g.sink = log.NewConsoleSink(level)
	if g.logFile != "" {
		if err := g.sink.AlsoToFile(g.logFile); err != nil {
			return fmt.Errorf("unable to open logfile '%s': %w", g.logFile, err)
		}
	}
	g.c = ops.NewContext(g.sink.Logger())
	g.c.SetMaxThreads(g.threads)
	g.c.SetMemoryMB(g.memoryMB)

	g.c.Log.Info().Str("cpu", cpuid.CPU.BrandName).
		Int("physicalCores", cpuid.CPU.PhysicalCores).
		Int("logicalCores", cpuid.CPU.LogicalCores).
		Int("threads", g.c.MaxThreads).
		Int("memoryMB", g.c.MemoryMB).
		Int("stackMemoryMB", g.c.StackMemoryMB).
		Msg("nightstats " + version)
	return nil
}

// Logs the error and flushes the log file, passing the error on for the exit code
func (g *globals) fail(err error) error {
	g.c.Log.Error().Err(err).Msg("failed")
	g.sink.Close()
	return err
}

func newLegalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "legal",
		Short: "Show license and attribution information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), legal)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version %s\n", version)
		},
	}
}
