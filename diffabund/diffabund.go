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

// package diffabund tests each taxon for differential abundance between two
// sample groups, fitting a negative-binomial GLM with library-size offsets
// and applying a Wald test with Benjamini-Hochberg correction.

package diffabund

import (
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wtsi-hgi/amplistat/dataset"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrDegenerateDesign = Error("grouping factor needs exactly two levels with at least one sample each")

	// Skip reasons recorded on per-taxon results.
	SkipZeroCounts   = "no reads in any sample"
	SkipZeroVariance = "identical counts across all samples"
	SkipNoFit        = "model fit did not converge"

	maxIRLSIterations = 50
	irlsTolerance     = 1e-8
	minDispersion     = 1e-8
	pseudoMean        = 0.5
)

// Result is the differential-abundance outcome for one taxon. PValue and
// AdjPValue are NaN when the taxon was skipped, with Skipped naming the
// reason; skipped taxa are excluded from the multiple-testing correction
// denominator.
type Result struct {
	Taxon          string
	BaseMean       float64
	Log2FoldChange float64
	StdErr         float64
	Stat           float64
	PValue         float64
	AdjPValue      float64
	Skipped        string
}

// Test fits a per-taxon negative-binomial GLM of count against the two-level
// grouping, with the log of the median-of-ratios size factor as a fixed
// offset, and Wald-tests each taxon's log2 fold-change (second group level
// over first, in sorted order). Per-taxon fits run in parallel. Taxa that
// cannot be tested are flagged rather than failing the batch.
//
// Fails with ErrDegenerateDesign unless grouping has exactly two levels, each
// with at least one sample present in the dataset.
func Test(d *dataset.Dataset, grouping map[string]string) ([]Result, error) {
	samples, design, err := designVector(d, grouping)
	if err != nil {
		return nil, err
	}

	counts := make([][]int64, len(samples))

	for i, sample := range samples {
		row, errr := d.Row(sample)
		if errr != nil {
			return nil, errr
		}

		counts[i] = row
	}

	factors := sizeFactors(counts)
	taxa := d.Taxa()
	results := make([]Result, len(taxa))

	var g errgroup.Group

	g.SetLimit(runtime.NumCPU())

	for ti, taxon := range taxa {
		ti, taxon := ti, taxon

		g.Go(func() error {
			y := make([]int64, len(samples))

			for si := range samples {
				y[si] = counts[si][ti]
			}

			results[ti] = testTaxon(taxon, y, design, factors)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	adjust(results)

	return results, nil
}

// designVector returns the labelled samples in sorted order along with their
// 0/1 group indicator, 1 meaning the second group level in sorted order.
func designVector(d *dataset.Dataset, grouping map[string]string) ([]string, []float64, error) {
	levels := make(map[string]int)

	var samples []string

	for _, sample := range d.Samples() {
		if level, ok := grouping[sample]; ok {
			levels[level]++

			samples = append(samples, sample)
		}
	}

	if len(levels) != 2 {
		return nil, nil, ErrDegenerateDesign
	}

	names := make([]string, 0, 2)

	for level := range levels {
		names = append(names, level)
	}

	sort.Strings(names)

	design := make([]float64, len(samples))

	for i, sample := range samples {
		if grouping[sample] == names[1] {
			design[i] = 1
		}
	}

	return samples, design, nil
}

func testTaxon(taxon string, y []int64, design, factors []float64) Result {
	result := Result{Taxon: taxon, PValue: math.NaN(), AdjPValue: math.NaN()}

	allZero, allSame := true, true

	for _, count := range y {
		if count != 0 {
			allZero = false
		}

		if count != y[0] {
			allSame = false
		}
	}

	if allZero {
		result.Skipped = SkipZeroCounts

		return result
	}

	q := make([]float64, len(y))

	var baseMean float64

	for i, count := range y {
		q[i] = float64(count) / factors[i]
		baseMean += q[i]
	}

	result.BaseMean = baseMean / float64(len(y))

	if allSame {
		result.Skipped = SkipZeroVariance

		return result
	}

	alpha := estimateDispersion(q, design)

	beta1, se, ok := fitNB(y, design, factors, q, alpha)
	if !ok {
		result.Skipped = SkipNoFit

		return result
	}

	result.Log2FoldChange = beta1 / math.Ln2
	result.StdErr = se / math.Ln2
	result.Stat = beta1 / se
	result.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(result.Stat))

	return result
}

// estimateDispersion is a per-taxon method-of-moments estimate on normalised
// counts, pooled across the two groups and floored so the NB weights stay
// defined.
func estimateDispersion(q, design []float64) float64 {
	var num, den float64

	for _, level := range []float64{0, 1} {
		var n, sum float64

		for i, x := range design {
			if x == level {
				n++
				sum += q[i]
			}
		}

		if n < 2 {
			continue
		}

		mean := sum / n

		var ss float64

		for i, x := range design {
			if x == level {
				diff := q[i] - mean
				ss += diff * diff
			}
		}

		variance := ss / (n - 1)

		if mean > 0 {
			num += (variance - mean) / (mean * mean) * (n - 1)
			den += n - 1
		}
	}

	if den == 0 {
		return minDispersion
	}

	return math.Max(num/den, minDispersion)
}

// fitNB runs iteratively reweighted least squares for the model
// log mu = beta0 + beta1*group + log sizefactor, with NB variance
// mu + alpha*mu^2, returning beta1 and its standard error.
func fitNB(y []int64, design, factors, q []float64, alpha float64) (beta1, se float64, ok bool) {
	beta0, beta1 := initialBetas(q, design)

	for irlsIter := 0; irlsIter < maxIRLSIterations; irlsIter++ {
		var sw, swx, swz, swxz float64

		for i := range y {
			eta := beta0 + beta1*design[i]
			mu := math.Exp(eta) * factors[i]

			if math.IsInf(mu, 0) || mu <= 0 {
				return 0, 0, false
			}

			w := mu / (1 + alpha*mu)
			z := eta + (float64(y[i])-mu)/mu

			sw += w
			swx += w * design[i]
			swz += w * z
			swxz += w * design[i] * z
		}

		det := sw*swx - swx*swx // X'WX determinant with x^2 = x

		if det <= 0 || math.IsNaN(det) {
			return 0, 0, false
		}

		newBeta1 := (sw*swxz - swx*swz) / det
		newBeta0 := (swz - swx*newBeta1) / sw

		done := math.Abs(newBeta0-beta0) < irlsTolerance && math.Abs(newBeta1-beta1) < irlsTolerance
		beta0, beta1 = newBeta0, newBeta1

		if done {
			break
		}
	}

	if math.IsNaN(beta0) || math.IsNaN(beta1) {
		return 0, 0, false
	}

	// standard error from the inverse information matrix at the fit
	var sw, swx float64

	for i := range y {
		mu := math.Exp(beta0+beta1*design[i]) * factors[i]
		w := mu / (1 + alpha*mu)

		sw += w
		swx += w * design[i]
	}

	det := sw*swx - swx*swx
	if det <= 0 {
		return 0, 0, false
	}

	se = math.Sqrt(sw / det)
	if math.IsNaN(se) || se == 0 {
		return 0, 0, false
	}

	return beta1, se, true
}

func initialBetas(q, design []float64) (beta0, beta1 float64) {
	var n0, n1, sum0, sum1 float64

	for i, x := range design {
		if x == 0 {
			n0++
			sum0 += q[i]
		} else {
			n1++
			sum1 += q[i]
		}
	}

	mean0 := sum0/n0 + pseudoMean
	mean1 := sum1/n1 + pseudoMean

	return math.Log(mean0), math.Log(mean1 / mean0)
}
