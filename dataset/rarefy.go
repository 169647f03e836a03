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

package dataset

import (
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/wtsi-hgi/amplistat/internal/seed"
)

// RarefyNotice reports which samples a Rarefy call dropped for having fewer
// reads than the requested depth, along with the depth actually used.
type RarefyNotice struct {
	Depth   int64
	Dropped []string
}

// Rarefy subsamples every sample's counts to the given depth without
// replacement and returns the result as a new Dataset. A depth of zero or
// less means the minimum per-sample total. Samples with fewer reads than the
// depth are dropped, and reported in the returned notice rather than being an
// error.
//
// The same root seed always produces the same output: each sample draws from
// its own source derived from the root seed and the sample's index, so
// results do not depend on scheduling order.
func (d *Dataset) Rarefy(depth int64, rootSeed uint64) (*Dataset, *RarefyNotice, error) {
	if depth <= 0 {
		depth = d.MinRowTotal()
	}

	keep, dropped := d.splitByDepth(depth)

	samples := make([]string, len(keep))
	counts := make([][]int64, len(keep))

	var g errgroup.Group

	g.SetLimit(runtime.NumCPU())

	for i, si := range keep {
		i, si := i, si

		g.Go(func() error {
			samples[i] = d.samples[si]
			counts[i] = subsample(d.counts[si], depth, seed.Sub(rootSeed, uint64(si)))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	notice := &RarefyNotice{Depth: depth, Dropped: dropped}

	return d.derive(samples, d.Taxa(), counts, d.Ranks(), d.copyLineages()), notice, nil
}

func (d *Dataset) splitByDepth(depth int64) (keep []int, dropped []string) {
	for si, sample := range d.samples {
		if d.RowTotal(sample) < depth {
			dropped = append(dropped, sample)
		} else {
			keep = append(keep, si)
		}
	}

	return keep, dropped
}

func (d *Dataset) copyLineages() [][]string {
	lineages := make([][]string, len(d.lineages))

	for i, lineage := range d.lineages {
		lineages[i] = append([]string(nil), lineage...)
	}

	return lineages
}

// subsample draws depth reads without replacement from the multiset described
// by row, using selection sampling: each remaining read is kept with
// probability needed/remaining, which selects exactly depth reads uniformly.
func subsample(row []int64, depth int64, seedVal uint64) []int64 {
	r := rand.New(rand.NewSource(seedVal))
	out := make([]int64, len(row))

	var remaining int64

	for _, n := range row {
		remaining += n
	}

	needed := depth

	for ti, n := range row {
		for i := int64(0); i < n && needed > 0; i++ {
			if r.Int63n(remaining) < needed {
				out[ti]++
				needed--
			}

			remaining--
		}

		if needed == 0 {
			break
		}
	}

	return out
}
