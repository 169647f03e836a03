/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// package server serves the analysis result tables for one loaded Dataset as
// read-only JSON endpoints, for external reporting and plotting collaborators
// to consume.

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/inconshreveable/log15"

	"github.com/wtsi-hgi/amplistat/dataset"
)

// EndPointREST is the base path of all endpoints.
const EndPointREST = "/rest/v1"

// Server serves analysis results over one immutable Dataset snapshot.
type Server struct {
	router *gin.Engine
	logger log15.Logger
	ds     *dataset.Dataset
	loadID string
}

// New creates a Server for the given Dataset. The load id in every response
// identifies this dataset snapshot, so collaborators can tell result tables
// from different loads apart.
func New(ds *dataset.Dataset, logger log15.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		logger: logger,
		ds:     ds,
		loadID: uuid.NewString(),
	}

	s.router.Use(gin.RecoveryWithWriter(logWriter{logger}))

	rest := s.router.Group(EndPointREST)
	rest.GET("/dataset", s.getDataset)
	rest.GET("/alpha", s.getAlpha)
	rest.GET("/beta/distance", s.getDistance)
	rest.GET("/beta/nmds", s.getNMDS)
	rest.GET("/permanova", s.getPermanova)
	rest.GET("/diffabund", s.getDiffAbund)

	return s
}

// Router returns the server's router, for tests and for mounting.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves on the given address until the listener fails.
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

type logWriter struct {
	logger log15.Logger
}

func (l logWriter) Write(p []byte) (int, error) {
	l.logger.Error(string(p))

	return len(p), nil
}

type datasetSummary struct {
	LoadID  string   `json:"load_id"`
	Samples []string `json:"samples"`
	Taxa    int      `json:"taxa"`
	Ranks   []string `json:"ranks"`
}

func (s *Server) getDataset(c *gin.Context) {
	c.JSON(http.StatusOK, datasetSummary{
		LoadID:  s.loadID,
		Samples: s.ds.Samples(),
		Taxa:    len(s.ds.Taxa()),
		Ranks:   s.ds.Ranks(),
	})
}

// abortWith reports a computation failure to the client and log.
func (s *Server) abortWith(c *gin.Context, code int, err error) {
	s.logger.Warn("request failed", "path", c.FullPath(), "err", err)
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
