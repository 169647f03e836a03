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

package beta

import (
	"math"
	"runtime"
	"sort"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/wtsi-hgi/amplistat/internal/seed"
)

const (
	DefaultDims     = 2
	DefaultMaxIter  = 300
	DefaultRestarts = 20

	// GoodStress is the conventional threshold below which an NMDS stress is
	// reported as interpretable.
	GoodStress = 0.2

	stressTolerance = 1e-7
	minEmbedded     = 1e-12
)

// Ordination holds per-sample low-dimensional coordinates and the stress of
// the embedding. A Converged of false is a notice, not an error: the
// coordinates are still the best found, and callers decide whether the stress
// is acceptable.
type Ordination struct {
	Samples   []string
	Coords    [][]float64
	Stress    float64
	Converged bool
}

// NMDSConfig controls the ordination. Zero fields take the Default*
// constants.
type NMDSConfig struct {
	Dims     int
	MaxIter  int
	Restarts int
}

func (c NMDSConfig) withDefaults() NMDSConfig {
	if c.Dims <= 0 {
		c.Dims = DefaultDims
	}

	if c.MaxIter <= 0 {
		c.MaxIter = DefaultMaxIter
	}

	if c.Restarts <= 0 {
		c.Restarts = DefaultRestarts
	}

	return c
}

// NMDS embeds the samples of a dissimilarity matrix in a low-dimensional
// space by non-metric multidimensional scaling: majorizing iterations where
// the target distances come from an isotonic regression of the embedded
// distances against the rank order of the input dissimilarities (Kruskal's
// stress-1). Random restarts run in parallel, each from a seeded
// configuration derived from the root seed and the restart index, and the
// lowest-stress solution wins, so output is reproducible for a given seed.
func NMDS(m *DissimilarityMatrix, cfg NMDSConfig, rootSeed uint64) (*Ordination, error) {
	cfg = cfg.withDefaults()

	pairs := m.sortedPairs()
	results := make([]*Ordination, cfg.Restarts)

	var g errgroup.Group

	g.SetLimit(runtime.NumCPU())

	for r := 0; r < cfg.Restarts; r++ {
		r := r

		g.Go(func() error {
			results[r] = runRestart(m, pairs, cfg, seed.Sub(rootSeed, uint64(r)))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := results[0]

	for _, o := range results[1:] {
		if o.Stress < best.Stress {
			best = o
		}
	}

	return best, nil
}

// pair is one off-diagonal cell of the dissimilarity matrix.
type pair struct {
	i, j int
	d    float64
}

func (m *DissimilarityMatrix) sortedPairs() []pair {
	n := m.Len()
	pairs := make([]pair, 0, n*(n-1)/2)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i: i, j: j, d: m.At(i, j)})
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].d < pairs[b].d
	})

	return pairs
}

func runRestart(m *DissimilarityMatrix, pairs []pair, cfg NMDSConfig, seedVal uint64) *Ordination {
	n := m.Len()
	r := rand.New(rand.NewSource(seedVal))
	x := mat.NewDense(n, cfg.Dims, nil)

	for i := 0; i < n; i++ {
		for k := 0; k < cfg.Dims; k++ {
			x.Set(i, k, r.Float64()-0.5)
		}
	}

	dist := make([]float64, len(pairs))
	dhat := make([]float64, len(pairs))

	stress := math.Inf(1)
	converged := false

	for iter := 0; iter < cfg.MaxIter; iter++ {
		embeddedDistances(x, pairs, dist)
		isotonic(dist, dhat)

		s := stress1(dist, dhat)

		if math.Abs(stress-s) < stressTolerance {
			stress = s
			converged = true

			break
		}

		stress = s

		guttman(x, pairs, dist, dhat)
	}

	o := &Ordination{
		Samples:   m.Samples(),
		Coords:    make([][]float64, n),
		Stress:    stress,
		Converged: converged,
	}

	for i := 0; i < n; i++ {
		o.Coords[i] = append([]float64(nil), x.RawRowView(i)...)
	}

	return o
}

func embeddedDistances(x *mat.Dense, pairs []pair, dist []float64) {
	for p, pr := range pairs {
		var sum float64

		for k := range x.RawRowView(pr.i) {
			diff := x.At(pr.i, k) - x.At(pr.j, k)
			sum += diff * diff
		}

		dist[p] = math.Sqrt(sum)
	}
}

// isotonic fits a non-decreasing sequence to dist (already ordered by input
// dissimilarity) by pool-adjacent-violators, writing the fit to dhat.
func isotonic(dist, dhat []float64) {
	type block struct {
		sum float64
		n   int
	}

	blocks := make([]block, 0, len(dist))

	for _, d := range dist {
		blocks = append(blocks, block{sum: d, n: 1})

		for len(blocks) > 1 {
			a, b := blocks[len(blocks)-2], blocks[len(blocks)-1]
			if a.sum/float64(a.n) <= b.sum/float64(b.n) {
				break
			}

			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{sum: a.sum + b.sum, n: a.n + b.n})
		}
	}

	p := 0

	for _, b := range blocks {
		mean := b.sum / float64(b.n)

		for rep := 0; rep < b.n; rep++ {
			dhat[p] = mean
			p++
		}
	}
}

func stress1(dist, dhat []float64) float64 {
	var num, den float64

	for p := range dist {
		diff := dist[p] - dhat[p]
		num += diff * diff
		den += dist[p] * dist[p]
	}

	if den == 0 {
		return 0
	}

	return math.Sqrt(num / den)
}

// guttman applies the majorizing update that moves each point towards the
// positions implied by the isotonic target distances.
func guttman(x *mat.Dense, pairs []pair, dist, dhat []float64) {
	n, dims := x.Dims()
	b := mat.NewDense(n, n, nil)

	for p, pr := range pairs {
		var w float64

		if dist[p] > minEmbedded {
			w = -dhat[p] / dist[p]
		}

		b.Set(pr.i, pr.j, w)
		b.Set(pr.j, pr.i, w)
		b.Set(pr.i, pr.i, b.At(pr.i, pr.i)-w)
		b.Set(pr.j, pr.j, b.At(pr.j, pr.j)-w)
	}

	var updated mat.Dense

	updated.Mul(b, x)
	updated.Scale(1/float64(n), &updated)

	for i := 0; i < n; i++ {
		for k := 0; k < dims; k++ {
			x.Set(i, k, updated.At(i, k))
		}
	}
}
