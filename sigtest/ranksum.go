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

// package sigtest tests for group differences in alpha diversity values and
// in multivariate dissimilarities.

package sigtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrInsufficientGroups = Error("rank-sum test needs exactly two non-empty groups")
	ErrDegenerateDesign   = Error("grouping factor needs at least two levels with a sample each")
)

// RankSumResult holds a two-sided Mann-Whitney rank-sum test outcome. The
// statistic is the U of the first group in sorted group-name order.
type RankSumResult struct {
	Groups    [2]string
	Statistic float64
	PValue    float64
}

// RankSum runs a two-sided Wilcoxon/Mann-Whitney rank-sum test over exactly
// two groups of values, using the normal approximation with tie and
// continuity corrections. It fails with ErrInsufficientGroups unless the
// input has exactly two groups, both non-empty.
func RankSum(valuesByGroup map[string][]float64) (*RankSumResult, error) {
	names := make([]string, 0, len(valuesByGroup))

	for name, values := range valuesByGroup {
		if len(values) > 0 {
			names = append(names, name)
		}
	}

	if len(names) != 2 || len(names) != len(valuesByGroup) {
		return nil, ErrInsufficientGroups
	}

	sort.Strings(names)

	a, b := valuesByGroup[names[0]], valuesByGroup[names[1]]
	ranks, tieTerm := rankAll(a, b)

	n1, n2 := float64(len(a)), float64(len(b))
	n := n1 + n2

	var r1 float64

	for i := range a {
		r1 += ranks[i]
	}

	u := r1 - n1*(n1+1)/2
	mean := n1 * n2 / 2
	variance := n1 * n2 / 12 * (n + 1 - tieTerm/(n*(n-1)))

	result := &RankSumResult{Groups: [2]string{names[0], names[1]}, Statistic: u}

	if variance == 0 {
		result.PValue = 1

		return result, nil
	}

	z := u - mean
	// continuity correction towards the mean
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}

	z /= math.Sqrt(variance)
	result.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(z))

	return result, nil
}

// rankAll assigns average ranks to the concatenation of a then b, returning
// the ranks and the tie-correction term sum(t^3 - t).
func rankAll(a, b []float64) ([]float64, float64) {
	values := make([]float64, 0, len(a)+len(b))
	values = append(values, a...)
	values = append(values, b...)

	order := make([]int, len(values))

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(x, y int) bool {
		return values[order[x]] < values[order[y]]
	})

	ranks := make([]float64, len(values))

	var tieTerm float64

	for start := 0; start < len(order); {
		end := start + 1

		for end < len(order) && values[order[end]] == values[order[start]] {
			end++
		}

		avg := float64(start+end+1) / 2

		for i := start; i < end; i++ {
			ranks[order[i]] = avg
		}

		t := float64(end - start)
		tieTerm += t*t*t - t

		start = end
	}

	return ranks, tieTerm
}
