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

// package testdata creates deterministic fixture datasets for tests.

package testdata

import (
	"fmt"

	"github.com/wtsi-hgi/amplistat/dataset"
)

// Ranks is the rank order used by all fixtures.
var Ranks = []string{"Domain", "Phylum", "Genus"} //nolint:gochecknoglobals

// Community returns a 6 sample, 8 taxon dataset with a clear compositional
// difference between the "lean" and "obese" groups of the "bodytype"
// metadata field. Taxa asv1-asv4 dominate the lean samples and asv5-asv8 the
// obese ones; asv8 has no genus-level classification.
func Community() *dataset.Dataset {
	counts := [][]int64{
		{120, 80, 40, 30, 5, 2, 1, 0},
		{110, 90, 35, 25, 8, 1, 2, 1},
		{130, 70, 45, 20, 4, 3, 0, 2},
		{10, 5, 2, 8, 90, 120, 60, 40},
		{8, 2, 4, 6, 100, 110, 70, 30},
		{12, 6, 1, 4, 80, 130, 50, 50},
	}

	genera := []string{
		"Bacteroides", "Prevotella", "Alistipes", "Parabacteroides",
		"Faecalibacterium", "Roseburia", "Blautia", "",
	}

	abundance := make(map[string]map[string]int64, len(counts))
	meta := make(map[string]map[string]string, len(counts))
	taxonomy := make(map[string][]string, len(genera))

	for si, row := range counts {
		sample := fmt.Sprintf("sample%d", si+1)
		abundance[sample] = make(map[string]int64, len(row))

		for ti, count := range row {
			if count > 0 {
				abundance[sample][fmt.Sprintf("asv%d", ti+1)] = count
			}
		}

		bodytype := "lean"
		if si >= 3 {
			bodytype = "obese"
		}

		meta[sample] = map[string]string{"bodytype": bodytype}
	}

	for ti, genus := range genera {
		phylum := "Bacteroidota"
		if ti >= 4 {
			phylum = "Bacillota"
		}

		taxonomy[fmt.Sprintf("asv%d", ti+1)] = []string{"Bacteria", phylum, genus}
	}

	return mustBuild(abundance, taxonomy, meta)
}

// Tiny returns the 4 sample, 3 taxon dataset with counts
// [[10,0,0],[0,10,0],[5,5,0],[0,0,10]] and a "site" grouping of a,a,a,b.
func Tiny() *dataset.Dataset {
	counts := [][]int64{
		{10, 0, 0},
		{0, 10, 0},
		{5, 5, 0},
		{0, 0, 10},
	}

	abundance := make(map[string]map[string]int64, len(counts))
	meta := make(map[string]map[string]string, len(counts))
	taxonomy := map[string][]string{
		"asv1": {"Bacteria", "Bacteroidota", "Bacteroides"},
		"asv2": {"Bacteria", "Bacteroidota", "Prevotella"},
		"asv3": {"Bacteria", "Bacillota", "Roseburia"},
	}

	for si, row := range counts {
		sample := fmt.Sprintf("sample%d", si+1)
		abundance[sample] = make(map[string]int64, len(row))

		for ti, count := range row {
			if count > 0 {
				abundance[sample][fmt.Sprintf("asv%d", ti+1)] = count
			}
		}

		site := "a"
		if si == 3 {
			site = "b"
		}

		meta[sample] = map[string]string{"site": site}
	}

	return mustBuild(abundance, taxonomy, meta)
}

func mustBuild(abundance map[string]map[string]int64, taxonomy map[string][]string,
	meta map[string]map[string]string) *dataset.Dataset {
	d, err := dataset.Build(abundance, taxonomy, Ranks, meta)
	if err != nil {
		panic(err)
	}

	return d
}
