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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlnoga/nightstats/internal/frame"
	"github.com/mlnoga/nightstats/internal/frameio"
	"github.com/mlnoga/nightstats/internal/ops"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter() *gin.Engine {
	return NewRouter(&ops.Context{Log: zerolog.Nop(), MaxThreads: 2, MemoryMB: 100, StackMemoryMB: 70})
}

// Creates a scratch directory below the working directory, as requests may only use relative paths
func relativeTempDir(t *testing.T) string {
	dir, err := os.MkdirTemp(".", "testdata-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeConst(t *testing.T, name string, value uint16, exposure float32) {
	img, err := frame.NewImageUint16([]int32{3, 3}, 16, nil)
	require.NoError(t, err)
	for i := range img.U16 {
		img.U16[i] = value
	}
	img.Exposure = exposure
	require.NoError(t, frameio.WriteFile(img, name))
}

func post(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestPostStats(t *testing.T) {
	dir := relativeTempDir(t)
	writeConst(t, filepath.Join(dir, "a.fits"), 100, 10)
	writeConst(t, filepath.Join(dir, "b.fits"), 200, 10)

	w := post(t, newTestRouter(), "/api/v1/stats", gin.H{
		"filePatterns": []string{filepath.Join(dir, "*.fits")},
		"stats":        gin.H{"request": "basic"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Files []struct {
			FileName string `json:"fileName"`
			Channels []struct {
				Median float64 `json:"median"`
				Total  int64   `json:"total"`
				MAD    float64 `json:"mad"`
				Origin string  `json:"origin"`
			} `json:"channels"`
		} `json:"files"`
		Errors string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Files, 2)
	assert.Empty(t, res.Errors)
	assert.Equal(t, float64(100), res.Files[0].Channels[0].Median)
	assert.Equal(t, float64(200), res.Files[1].Channels[0].Median)
	assert.Equal(t, int64(9), res.Files[0].Channels[0].Total)
	assert.Equal(t, float64(-1), res.Files[0].Channels[0].MAD)
	assert.Equal(t, "image", res.Files[0].Channels[0].Origin)
}

func TestPostStatsErrors(t *testing.T) {
	r := newTestRouter()
	w := post(t, r, "/api/v1/stats", gin.H{"filePatterns": []string{"/etc/*"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, r, "/api/v1/stats", gin.H{"filePatterns": []string{"x"}, "stats": gin.H{"request": "bogus"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stats", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostSum(t *testing.T) {
	dir := relativeTempDir(t)
	for i, name := range []string{"a.fits", "b.fits", "c.fits"} {
		writeConst(t, filepath.Join(dir, name), 100, float32(i+1))
	}
	out := filepath.Join(dir, "sum.fits")

	w := post(t, newTestRouter(), "/api/v1/sum", gin.H{
		"filePatterns": []string{filepath.Join(dir, "?.fits")},
		"out":          out,
		"sum":          gin.H{"exclude": []int{2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Result   ops.Result `json:"result"`
		Dims     string     `json:"dims"`
		Exposure float32    `json:"exposure"`
		Stats    []struct {
			Median float64 `json:"median"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, ops.Result{Selected: 2, Processed: 2}, res.Result)
	assert.Equal(t, "3x3", res.Dims)
	assert.Equal(t, float32(3), res.Exposure)
	require.Len(t, res.Stats, 1)
	assert.Equal(t, float64(200), res.Stats[0].Median)

	img, err := frameio.ReadFile(out, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(200), img.U16[4])
	assert.Equal(t, int32(2), img.Header.Ints["STACKCNT"])
}

func TestPostSumErrors(t *testing.T) {
	dir := relativeTempDir(t)
	writeConst(t, filepath.Join(dir, "a.fits"), 1, 1)
	r := newTestRouter()

	w := post(t, r, "/api/v1/sum", gin.H{"filePatterns": []string{filepath.Join(dir, "*.fits")}, "out": "../escape.fits"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = post(t, r, "/api/v1/sum", gin.H{"filePatterns": []string{filepath.Join(dir, "*.fits")}, "shifts": []gin.H{{"x": 1}, {"x": 2}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, "/api/v1/sum", gin.H{"filePatterns": []string{filepath.Join(dir, "*.fits")}, "sum": gin.H{"exclude": []int{0}}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
