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
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Log sink which writes to a console, and optionally also to a file.
// Hands out zerolog loggers bound to the current set of writers
type Sink struct {
	mutex   sync.Mutex
	console io.Writer
	level   zerolog.Level
	file    *bufio.Writer
	fileOS  *os.File
}

// Creates a new sink writing human-readable output to the given console writer
func NewSink(console io.Writer, level zerolog.Level) *Sink {
	return &Sink{
		console: zerolog.ConsoleWriter{Out: console, NoColor: true, TimeFormat: "15:04:05"},
		level:   level,
	}
}

// Creates a new sink writing human-readable output to stdout
func NewConsoleSink(level zerolog.Level) *Sink {
	return NewSink(os.Stdout, level)
}

// Enables logging to the given file in addition to the console, as JSON lines.
// Truncates the file. A previously configured log file is flushed and closed
func (s *Sink) AlsoToFile(fileName string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.closeFile(); err != nil {
		return err
	}
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	s.fileOS, s.file = f, bufio.NewWriter(f)
	return nil
}

// Returns a logger writing to the console, and to the log file if configured
func (s *Sink) Logger() zerolog.Logger {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var w io.Writer = s.console
	if s.file != nil {
		w = zerolog.MultiLevelWriter(s.console, fileWriter{s})
	}
	return zerolog.New(w).Level(s.level).With().Timestamp().Logger()
}

// Flushes the log file to disk, if any
func (s *Sink) Sync() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.file.Flush(); err != nil {
		return err
	}
	return s.fileOS.Sync()
}

// Flushes and closes the log file, if any. Console logging continues
func (s *Sink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closeFile()
}

func (s *Sink) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Flush()
	if errClose := s.fileOS.Close(); err == nil {
		err = errClose
	}
	s.file, s.fileOS = nil, nil
	return err
}

// Serializes writes into the buffered log file, which is shared between loggers.
// Writes after the file was closed are dropped
type fileWriter struct {
	s *Sink
}

func (f fileWriter) Write(p []byte) (n int, err error) {
	f.s.mutex.Lock()
	defer f.s.mutex.Unlock()
	if f.s.file == nil {
		return len(p), nil
	}
	return f.s.file.Write(p)
}

// Returns a logger which discards all output. Default for library code
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
