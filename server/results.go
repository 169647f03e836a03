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

package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wtsi-hgi/amplistat/alpha"
	"github.com/wtsi-hgi/amplistat/beta"
	"github.com/wtsi-hgi/amplistat/diffabund"
	"github.com/wtsi-hgi/amplistat/sigtest"
)

func (s *Server) getAlpha(c *gin.Context) {
	var measures []alpha.Measure

	if arg := c.Query("measures"); arg != "" {
		for _, m := range strings.Split(arg, ",") {
			measures = append(measures, alpha.Measure(m))
		}
	}

	table, err := alpha.Estimate(s.ds, measures)
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"load_id": s.loadID, "alpha": table})
}

func (s *Server) getDistance(c *gin.Context) {
	m, err := beta.Dissimilarity(s.ds, beta.MetricBrayCurtis)
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"load_id": s.loadID,
		"samples": m.Samples(),
		"matrix":  m.Rows(),
	})
}

func (s *Server) getNMDS(c *gin.Context) {
	m, err := beta.Dissimilarity(s.ds, beta.MetricBrayCurtis)
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	cfg := beta.NMDSConfig{Dims: intQuery(c, "dims", 0)}

	o, err := beta.NMDS(m, cfg, uint64(intQuery(c, "seed", 1)))
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"load_id":   s.loadID,
		"samples":   o.Samples,
		"coords":    o.Coords,
		"stress":    o.Stress,
		"converged": o.Converged,
	})
}

func (s *Server) getPermanova(c *gin.Context) {
	grouping, err := s.ds.Grouping(c.Query("group"))
	if err != nil {
		s.abortWith(c, http.StatusBadRequest, err)

		return
	}

	m, err := beta.Dissimilarity(s.ds, beta.MetricBrayCurtis)
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	result, err := sigtest.Permanova(m, grouping,
		intQuery(c, "permutations", sigtest.DefaultPermutations), uint64(intQuery(c, "seed", 1)))
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"load_id": s.loadID, "permanova": result})
}

// diffAbundRow mirrors diffabund.Result with NaNs made JSON-safe.
type diffAbundRow struct {
	Taxon          string   `json:"taxon"`
	BaseMean       float64  `json:"base_mean"`
	Log2FoldChange float64  `json:"log2_fold_change"`
	PValue         *float64 `json:"p_value"`
	AdjPValue      *float64 `json:"adj_p_value"`
	Skipped        string   `json:"skipped,omitempty"`
}

func (s *Server) getDiffAbund(c *gin.Context) {
	grouping, err := s.ds.Grouping(c.Query("group"))
	if err != nil {
		s.abortWith(c, http.StatusBadRequest, err)

		return
	}

	ds := s.ds

	if rank := c.Query("rank"); rank != "" {
		if ds, err = ds.Aggregate(rank); err != nil {
			s.abortWith(c, http.StatusBadRequest, err)

			return
		}
	}

	results, err := diffabund.Test(ds, grouping)
	if err != nil {
		s.abortWith(c, http.StatusUnprocessableEntity, err)

		return
	}

	rows := make([]diffAbundRow, len(results))

	for i, r := range results {
		rows[i] = diffAbundRow{
			Taxon:          r.Taxon,
			BaseMean:       r.BaseMean,
			Log2FoldChange: r.Log2FoldChange,
			PValue:         jsonFloat(r.PValue),
			AdjPValue:      jsonFloat(r.AdjPValue),
			Skipped:        r.Skipped,
		}
	}

	c.JSON(http.StatusOK, gin.H{"load_id": s.loadID, "results": rows})
}

func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}

	return &v
}

func intQuery(c *gin.Context, name string, def int) int {
	arg := c.Query(name)
	if arg == "" {
		return def
	}

	v, err := strconv.Atoi(arg)
	if err != nil {
		return def
	}

	return v
}
