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

package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/nightstats/internal/frame"
	"github.com/mlnoga/nightstats/internal/frameio"
	"github.com/mlnoga/nightstats/internal/imgstats"
	"github.com/mlnoga/nightstats/internal/ops"
	"github.com/mlnoga/nightstats/internal/ops/measure"
	"github.com/mlnoga/nightstats/internal/ops/sum"
	"github.com/mlnoga/nightstats/internal/stats"
)

// Serves the HTTP API on the given address until the server fails
func Serve(c *ops.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := NewRouter(c)
	c.Log.Info().Str("addr", addr).Msg("serving")
	return r.Run(addr)
}

// Creates the HTTP API router. File patterns in requests are restricted to the current directory tree
func NewRouter(c *ops.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logRequests(c))
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/stats", func(g *gin.Context) { postStats(g, c) })
			v1.POST("/sum", func(g *gin.Context) { postSum(g, c) })
		}
	}
	return r
}

func logRequests(c *ops.Context) gin.HandlerFunc {
	return func(g *gin.Context) {
		start := time.Now()
		g.Next()
		c.Log.Info().Str("method", g.Request.Method).Str("path", g.Request.URL.Path).
			Int("status", g.Writer.Status()).Dur("latency", time.Since(start)).Msg("request")
	}
}

func getPing(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func abort(g *gin.Context, status int, err error) {
	g.JSON(status, gin.H{"error": err.Error()})
}

type postStatsArgs struct {
	FilePatterns []string         `json:"filePatterns"`
	Stats        *measure.OpStats `json:"stats"`
}

type postStatsResponse struct {
	Files  []*measure.FileStats `json:"files"`
	Errors string               `json:"errors,omitempty"`
}

func postStats(g *gin.Context, c *ops.Context) {
	var args postStatsArgs
	if err := g.ShouldBindJSON(&args); err != nil {
		abort(g, http.StatusBadRequest, err)
		return
	}
	if args.Stats == nil {
		args.Stats = measure.NewOpStatsDefault()
	}
	if _, err := imgstats.ParseRequest(args.Stats.Request); err != nil {
		abort(g, http.StatusBadRequest, err)
		return
	}
	fileNames, err := ops.ExpandPatterns(c, args.FilePatterns, true)
	if err != nil {
		abort(g, http.StatusNotFound, err)
		return
	}

	files, err := args.Stats.ApplyToFiles(fileNames, c)
	res := postStatsResponse{Files: files}
	if err != nil {
		res.Errors = err.Error()
	}
	g.JSON(http.StatusOK, res)
}

type postSumArgs struct {
	FilePatterns []string      `json:"filePatterns"`
	Shifts       []frame.Shift `json:"shifts"`
	Out          string        `json:"out"`
	Sum          *sum.OpSum    `json:"sum"`
}

type postSumResponse struct {
	Result   ops.Result               `json:"result"`
	Dims     string                   `json:"dims"`
	Exposure float32                  `json:"exposure"`
	Out      string                   `json:"out,omitempty"`
	Stats    []*stats.ImageStatistics `json:"stats"`
}

func postSum(g *gin.Context, c *ops.Context) {
	var args postSumArgs
	if err := g.ShouldBindJSON(&args); err != nil {
		abort(g, http.StatusBadRequest, err)
		return
	}
	if args.Sum == nil {
		args.Sum = sum.NewOpSumDefault()
	}
	if args.Out != "" && !ops.IsPathAllowed(args.Out) {
		abort(g, http.StatusForbidden, errors.New("output file outside current directory tree"))
		return
	}
	fileNames, err := ops.ExpandPatterns(c, args.FilePatterns, true)
	if err != nil {
		abort(g, http.StatusNotFound, err)
		return
	}
	reference := args.Sum.Reference
	if reference < 0 || reference >= len(fileNames) {
		reference = 0
	}
	seq, reader, err := frameio.OpenSequence(fileNames, reference, c.Log)
	if err != nil {
		abort(g, http.StatusUnprocessableEntity, err)
		return
	}
	if args.Shifts != nil {
		if len(args.Shifts) != seq.Len() {
			abort(g, http.StatusBadRequest, errors.New("number of shifts does not match number of files"))
			return
		}
		copy(seq.Shifts, args.Shifts)
	}

	out, res, err := args.Sum.Apply(g.Request.Context(), c, seq, reader)
	if err != nil {
		g.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "result": res})
		return
	}
	if args.Out != "" {
		if err := frameio.WriteFile(out, args.Out); err != nil {
			abort(g, http.StatusInternalServerError, err)
			return
		}
	}

	resp := postSumResponse{Result: res, Dims: out.DimensionsToString(), Exposure: out.Exposure, Out: args.Out}
	for layer := 0; layer < out.Channels(); layer++ {
		s, err := imgstats.Compute(out, layer, nil, imgstats.Basic, nil, imgstats.Options{Threads: c.MaxThreads, Log: c.Log})
		if err != nil {
			abort(g, http.StatusInternalServerError, err)
			return
		}
		resp.Stats = append(resp.Stats, s)
	}
	g.JSON(http.StatusOK, resp)
}
