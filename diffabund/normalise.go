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

package diffabund

import (
	"math"
	"sort"
)

// sizeFactors estimates a per-sample library-size scale factor by the
// median-of-ratios method: the median across taxa of each sample's count to
// that taxon's geometric mean across samples, using only taxa with a nonzero
// count in every sample. When no taxon qualifies, the geometric means are
// taken over nonzero counts only and each sample's median runs over the taxa
// it actually observed.
func sizeFactors(counts [][]int64) []float64 {
	nSamples := len(counts)
	nTaxa := len(counts[0])

	logGeoMeans := make([]float64, nTaxa)
	everywhere := make([]bool, nTaxa)
	anyEverywhere := false

	for ti := 0; ti < nTaxa; ti++ {
		all := true

		var logSum float64

		n := 0

		for si := 0; si < nSamples; si++ {
			if counts[si][ti] == 0 {
				all = false

				continue
			}

			logSum += math.Log(float64(counts[si][ti]))
			n++
		}

		if n > 0 {
			logGeoMeans[ti] = logSum / float64(n)
		} else {
			logGeoMeans[ti] = math.NaN()
		}

		everywhere[ti] = all && n == nSamples
		anyEverywhere = anyEverywhere || everywhere[ti]
	}

	factors := make([]float64, nSamples)

	for si := 0; si < nSamples; si++ {
		var ratios []float64

		for ti := 0; ti < nTaxa; ti++ {
			if counts[si][ti] == 0 || math.IsNaN(logGeoMeans[ti]) {
				continue
			}

			if anyEverywhere && !everywhere[ti] {
				continue
			}

			ratios = append(ratios, math.Log(float64(counts[si][ti]))-logGeoMeans[ti])
		}

		if len(ratios) == 0 {
			factors[si] = 1

			continue
		}

		factors[si] = math.Exp(median(ratios))
	}

	return factors
}

func median(values []float64) float64 {
	sort.Float64s(values)

	mid := len(values) / 2

	if len(values)%2 == 1 {
		return values[mid]
	}

	return (values[mid-1] + values[mid]) / 2
}

// adjust applies the Benjamini-Hochberg procedure across all testable taxa,
// writing adjusted p-values in place. Skipped taxa keep NaN and do not count
// towards the correction denominator.
func adjust(results []Result) {
	var tested []int

	for i := range results {
		if !math.IsNaN(results[i].PValue) {
			tested = append(tested, i)
		}
	}

	sort.SliceStable(tested, func(a, b int) bool {
		return results[tested[a]].PValue < results[tested[b]].PValue
	})

	m := float64(len(tested))
	running := 1.0

	for rank := len(tested) - 1; rank >= 0; rank-- {
		i := tested[rank]
		adj := results[i].PValue * m / float64(rank+1)

		if adj < running {
			running = adj
		}

		results[i].AdjPValue = running
	}
}
