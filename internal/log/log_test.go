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

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSinkConsole(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, zerolog.InfoLevel)
	logger := sink.Logger()
	logger.Info().Int("frames", 3).Msg("stacked")
	logger.Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, "stacked") || !strings.Contains(out, "frames=3") {
		t.Errorf("console output %q lacks message or field", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("console output %q contains message below level", out)
	}
}

func TestSinkAlsoToFile(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, zerolog.InfoLevel)
	fileName := filepath.Join(t.TempDir(), "nightstats.log")
	if err := sink.AlsoToFile(fileName); err != nil {
		t.Fatalf("also to file: %v", err)
	}
	logger := sink.Logger()
	logger.Info().Str("file", "a.fits").Msg("loaded")
	if err := sink.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	logger.Info().Msg("after close")

	bs, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(bs)
	if !strings.Contains(content, `"file":"a.fits"`) || !strings.Contains(content, `"message":"loaded"`) {
		t.Errorf("log file %q lacks JSON entry", content)
	}
	if strings.Contains(content, "after close") {
		t.Errorf("log file %q contains entry written after close", content)
	}
	if !strings.Contains(buf.String(), "after close") {
		t.Errorf("console lost entry written after file close")
	}
}
