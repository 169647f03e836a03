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

// package beta computes between-sample dissimilarities and their
// low-dimensional ordination.

package beta

import (
	"fmt"
	"math"
	"slices"

	"github.com/wtsi-hgi/amplistat/dataset"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrUnknownMetric = Error("unknown dissimilarity metric")
	ErrTooFewSamples = Error("at least two samples are needed for a dissimilarity matrix")

	// MetricBrayCurtis is the default dissimilarity metric.
	MetricBrayCurtis = "bray-curtis"
)

// DissimilarityMatrix is an immutable symmetric matrix of pairwise distances
// between samples, with a zero diagonal.
type DissimilarityMatrix struct {
	samples []string
	values  [][]float64
}

// Dissimilarity computes pairwise dissimilarities between every pair of
// samples in the dataset. Bray-Curtis is the only metric currently
// implemented: d(i,j) = sum|x_ik - x_jk| / sum(x_ik + x_jk) over relative
// abundances x, so it is zero for identical compositions regardless of
// sequencing depth, and bounded by one.
func Dissimilarity(d *dataset.Dataset, metric string) (*DissimilarityMatrix, error) {
	if metric != MetricBrayCurtis {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	samples := d.Samples()
	if len(samples) < 2 {
		return nil, ErrTooFewSamples
	}

	rows := make([][]float64, len(samples))

	for i, sample := range samples {
		row, err := d.Row(sample)
		if err != nil {
			return nil, err
		}

		rows[i] = proportions(row)
	}

	values := make([][]float64, len(samples))

	for i := range values {
		values[i] = make([]float64, len(samples))
	}

	for i := range samples {
		for j := i + 1; j < len(samples); j++ {
			bc := brayCurtis(rows[i], rows[j])
			values[i][j] = bc
			values[j][i] = bc
		}
	}

	return &DissimilarityMatrix{samples: samples, values: values}, nil
}

// proportions converts a count row to relative abundances; an all-zero row
// stays all zero.
func proportions(row []int64) []float64 {
	var total int64

	for _, count := range row {
		total += count
	}

	p := make([]float64, len(row))

	if total == 0 {
		return p
	}

	for k, count := range row {
		p[k] = float64(count) / float64(total)
	}

	return p
}

func brayCurtis(a, b []float64) float64 {
	var num, den float64

	for k := range a {
		num += math.Abs(a[k] - b[k])
		den += a[k] + b[k]
	}

	if den == 0 {
		return 0
	}

	return num / den
}

// Samples returns the sample identifiers in matrix order.
func (m *DissimilarityMatrix) Samples() []string {
	return append([]string(nil), m.samples...)
}

// Len returns the number of samples.
func (m *DissimilarityMatrix) Len() int {
	return len(m.samples)
}

// At returns the distance between the i'th and j'th samples.
func (m *DissimilarityMatrix) At(i, j int) float64 {
	return m.values[i][j]
}

// Distance returns the distance between two samples by id, with unknown ids
// reported via ok.
func (m *DissimilarityMatrix) Distance(a, b string) (float64, bool) {
	i := slices.Index(m.samples, a)
	j := slices.Index(m.samples, b)

	if i < 0 || j < 0 {
		return 0, false
	}

	return m.values[i][j], true
}

// Rows returns a copy of the full matrix, ordered to match Samples().
func (m *DissimilarityMatrix) Rows() [][]float64 {
	rows := make([][]float64, len(m.values))

	for i, row := range m.values {
		rows[i] = append([]float64(nil), row...)
	}

	return rows
}
