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

package sigtest

import (
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/wtsi-hgi/amplistat/beta"
	"github.com/wtsi-hgi/amplistat/internal/seed"
)

// DefaultPermutations is the conventional PERMANOVA permutation count.
const DefaultPermutations = 999

// PermanovaResult holds a permutation-based multivariate group test outcome.
// Excluded lists samples in the matrix that had no group label and took no
// part in the test.
type PermanovaResult struct {
	PseudoF      float64
	PValue       float64
	Permutations int
	Groups       int
	Excluded     []string
}

// Permanova partitions the total sum of squared dissimilarities into within-
// and between-group components to form a pseudo-F statistic, then builds its
// null distribution by permuting group labels. The reported p-value is
// (1 + count(permuted F >= observed F)) / (1 + permutations), so zero
// permutations is valid and yields p = 1, and no p-value of exactly zero can
// be reported.
//
// Permutations run in parallel, each shuffling with a source derived from the
// root seed and the permutation index, so a given seed always produces the
// same p-value. Fails with ErrDegenerateDesign when fewer than two group
// levels have a labelled sample.
func Permanova(m *beta.DissimilarityMatrix, grouping map[string]string,
	permutations int, rootSeed uint64) (*PermanovaResult, error) {
	idx, labels, excluded := labelSamples(m, grouping)

	nGroups := countGroups(labels)
	if nGroups < 2 || len(idx) <= nGroups {
		return nil, ErrDegenerateDesign
	}

	sq := squaredSubmatrix(m, idx)
	observed := pseudoF(sq, labels, nGroups)

	exceeded := make([]bool, permutations)

	var g errgroup.Group

	g.SetLimit(runtime.NumCPU())

	for p := 0; p < permutations; p++ {
		p := p

		g.Go(func() error {
			r := rand.New(seed.Source(rootSeed, uint64(p)))
			shuffled := append([]int(nil), labels...)

			r.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			exceeded[p] = pseudoF(sq, shuffled, nGroups) >= observed

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	count := 0

	for _, e := range exceeded {
		if e {
			count++
		}
	}

	return &PermanovaResult{
		PseudoF:      observed,
		PValue:       float64(1+count) / float64(1+permutations),
		Permutations: permutations,
		Groups:       nGroups,
		Excluded:     excluded,
	}, nil
}

// labelSamples maps each labelled sample in matrix order to a small integer
// group id, recording unlabelled samples as excluded.
func labelSamples(m *beta.DissimilarityMatrix, grouping map[string]string) ([]int, []int, []string) {
	groupIDs := make(map[string]int)

	var (
		idx      []int
		labels   []int
		excluded []string
	)

	for i, sample := range m.Samples() {
		group, ok := grouping[sample]
		if !ok {
			excluded = append(excluded, sample)

			continue
		}

		id, ok := groupIDs[group]
		if !ok {
			id = len(groupIDs)
			groupIDs[group] = id
		}

		idx = append(idx, i)
		labels = append(labels, id)
	}

	return idx, labels, excluded
}

func countGroups(labels []int) int {
	maxID := -1

	for _, id := range labels {
		if id > maxID {
			maxID = id
		}
	}

	return maxID + 1
}

func squaredSubmatrix(m *beta.DissimilarityMatrix, idx []int) [][]float64 {
	sq := make([][]float64, len(idx))

	for a, i := range idx {
		sq[a] = make([]float64, len(idx))

		for b, j := range idx {
			d := m.At(i, j)
			sq[a][b] = d * d
		}
	}

	return sq
}

func pseudoF(sq [][]float64, labels []int, nGroups int) float64 {
	n := len(labels)
	sizes := make([]float64, nGroups)

	for _, id := range labels {
		sizes[id]++
	}

	var ssTotal, ssWithin float64

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ssTotal += sq[i][j]

			if labels[i] == labels[j] {
				ssWithin += sq[i][j] / sizes[labels[i]]
			}
		}
	}

	ssTotal /= float64(n)
	ssBetween := ssTotal - ssWithin

	dfBetween := float64(nGroups - 1)
	dfWithin := float64(n - nGroups)

	return (ssBetween / dfBetween) / (ssWithin / dfWithin)
}
