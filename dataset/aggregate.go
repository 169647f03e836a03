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
	"fmt"
	"slices"
	"sort"
)

// OtherLabel is the synthetic taxon that CollapseToTopN pools low-abundance
// taxa into.
const OtherLabel = "Other"

// unresolved reports whether a rank label carries no classification. Loaders
// normalise missing labels to the empty string, but NA slips through often
// enough to handle here too.
func unresolved(label string) bool {
	return label == "" || label == "NA"
}

// Aggregate sums counts across all taxa sharing the same label at the given
// rank and returns the result as a new Dataset whose taxon identifiers are
// those labels. Taxa with no classification at the rank are pooled into the
// Unresolved bucket rather than dropped. Fails with ErrUnknownRank when the
// rank is not in the taxonomy table.
func (d *Dataset) Aggregate(rank string) (*Dataset, error) {
	ri := slices.Index(d.ranks, rank)
	if ri < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRank, rank)
	}

	labelOf := make([]string, len(d.taxa))
	lineageOf := make(map[string][]string)

	for ti := range d.taxa {
		label := d.lineages[ti][ri]
		if unresolved(label) {
			label = UnresolvedLabel
		}

		labelOf[ti] = label

		if _, ok := lineageOf[label]; !ok {
			lineage := make([]string, ri+1)
			copy(lineage, d.lineages[ti][:ri])
			lineage[ri] = label
			lineageOf[label] = lineage
		}
	}

	taxa := sortedKeys(lineageOf)
	taxonIdx := indexOf(taxa)

	counts := make([][]int64, len(d.samples))

	for si := range d.samples {
		row := make([]int64, len(taxa))

		for ti, count := range d.counts[si] {
			row[taxonIdx[labelOf[ti]]] += count
		}

		counts[si] = row
	}

	lineages := make([][]string, len(taxa))

	for i, label := range taxa {
		lineages[i] = lineageOf[label]
	}

	return d.derive(d.Samples(), taxa, counts, d.ranks[:ri+1], lineages), nil
}

// CollapseToTopN aggregates to the given rank, keeps the n taxa with the
// highest total abundance, and sums the remainder into a synthetic Other
// taxon. Ties in total abundance break by taxon identifier, so the kept set
// is deterministic. Per-sample totals are preserved.
func (d *Dataset) CollapseToTopN(rank string, n int) (*Dataset, error) {
	agg, err := d.Aggregate(rank)
	if err != nil {
		return nil, err
	}

	if len(agg.taxa) <= n {
		return agg, nil
	}

	totals := make([]int64, len(agg.taxa))

	for _, row := range agg.counts {
		for ti, count := range row {
			totals[ti] += count
		}
	}

	order := make([]int, len(agg.taxa))

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		if totals[order[a]] != totals[order[b]] {
			return totals[order[a]] > totals[order[b]]
		}

		return agg.taxa[order[a]] < agg.taxa[order[b]]
	})

	return agg.collapseTail(order[:n]), nil
}

// collapseTail keeps the given taxon indices and pools everything else into
// Other.
func (d *Dataset) collapseTail(keep []int) *Dataset {
	kept := make(map[int]bool, len(keep))

	for _, ti := range keep {
		kept[ti] = true
	}

	taxa := make([]string, 0, len(keep)+1)

	for _, ti := range keep {
		taxa = append(taxa, d.taxa[ti])
	}

	sort.Strings(taxa)
	taxa = append(taxa, OtherLabel)

	taxonIdx := indexOf(taxa)
	otherIdx := taxonIdx[OtherLabel]

	counts := make([][]int64, len(d.samples))

	for si := range d.samples {
		row := make([]int64, len(taxa))

		for ti, count := range d.counts[si] {
			if kept[ti] {
				row[taxonIdx[d.taxa[ti]]] += count
			} else {
				row[otherIdx] += count
			}
		}

		counts[si] = row
	}

	lineages := make([][]string, len(taxa))

	for i, label := range taxa {
		if label == OtherLabel {
			lineage := make([]string, len(d.ranks))

			for j := range lineage {
				lineage[j] = OtherLabel
			}

			lineages[i] = lineage
		} else {
			lineages[i] = append([]string(nil), d.lineages[d.taxonIdx[label]]...)
		}
	}

	return d.derive(d.Samples(), taxa, counts, append([]string(nil), d.ranks...), lineages)
}
