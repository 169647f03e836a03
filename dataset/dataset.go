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

// package dataset holds an abundance matrix, taxonomy table and sample
// metadata table as one consistency-checked unit. Datasets are immutable;
// rarefaction and aggregation return new Datasets.

package dataset

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrSchemaMismatch = Error("identifier sets disagree between abundance, taxonomy and sample tables")
	ErrInvalidCount   = Error("abundance counts must be non-negative integers")
	ErrUnknownRank    = Error("rank not present in taxonomy table")
	ErrUnknownSample  = Error("sample not present in dataset")
	ErrUnknownField   = Error("metadata field not present for any sample")

	// UnresolvedLabel is the bucket that taxa with no classification at the
	// aggregation rank are pooled into.
	UnresolvedLabel = "Unresolved"
)

// Dataset is an immutable aligned view of an abundance matrix, a taxonomy
// table and a sample metadata table. Sample and taxon identifiers are held in
// sorted order, so all derived tables have a deterministic layout.
type Dataset struct {
	samples   []string
	taxa      []string
	sampleIdx map[string]int
	taxonIdx  map[string]int
	counts    [][]int64
	ranks     []string
	lineages  [][]string
	meta      map[string]map[string]string
}

// Build validates the three input tables against each other and returns a
// Dataset. Abundance maps sample id -> taxon id -> count, with absent pairs
// meaning zero. Taxonomy maps taxon id -> rank labels, ordered to match
// ranks; short lineages are padded with unclassified labels. Meta maps sample
// id -> field -> value.
//
// Build fails with ErrSchemaMismatch when the sample id sets of abundance and
// meta, or the taxon id sets of abundance and taxonomy, differ, and with
// ErrInvalidCount when any count is negative. All violations are reported
// together, not just the first.
func Build(abundance map[string]map[string]int64, taxonomy map[string][]string,
	ranks []string, meta map[string]map[string]string) (*Dataset, error) {
	taxaSet := make(map[string]bool)

	for _, row := range abundance {
		for taxon := range row {
			taxaSet[taxon] = true
		}
	}

	if err := validate(abundance, taxaSet, taxonomy, ranks, meta); err != nil {
		return nil, err
	}

	d := &Dataset{
		samples: sortedKeys(abundance),
		taxa:    sortedKeys(taxonomy),
		ranks:   append([]string(nil), ranks...),
		meta:    copyMeta(meta),
	}

	d.sampleIdx = indexOf(d.samples)
	d.taxonIdx = indexOf(d.taxa)
	d.counts = make([][]int64, len(d.samples))
	d.lineages = make([][]string, len(d.taxa))

	for si, sample := range d.samples {
		row := make([]int64, len(d.taxa))

		for taxon, count := range abundance[sample] {
			row[d.taxonIdx[taxon]] = count
		}

		d.counts[si] = row
	}

	for ti, taxon := range d.taxa {
		lineage := make([]string, len(ranks))
		copy(lineage, taxonomy[taxon])
		d.lineages[ti] = lineage
	}

	return d, nil
}

func validate(abundance map[string]map[string]int64, taxaSet map[string]bool,
	taxonomy map[string][]string, ranks []string, meta map[string]map[string]string) error {
	var errm *multierror.Error

	for _, sample := range sortedKeys(abundance) {
		if _, ok := meta[sample]; !ok {
			errm = multierror.Append(errm,
				fmt.Errorf("%w: sample %q has counts but no metadata", ErrSchemaMismatch, sample))
		}

		for _, taxon := range sortedKeys(abundance[sample]) {
			if count := abundance[sample][taxon]; count < 0 {
				errm = multierror.Append(errm,
					fmt.Errorf("%w: %d for sample %q, taxon %q", ErrInvalidCount, count, sample, taxon))
			}
		}
	}

	for _, sample := range sortedKeys(meta) {
		if _, ok := abundance[sample]; !ok {
			errm = multierror.Append(errm,
				fmt.Errorf("%w: sample %q has metadata but no counts", ErrSchemaMismatch, sample))
		}
	}

	for _, taxon := range sortedKeys(taxaSet) {
		if _, ok := taxonomy[taxon]; !ok {
			errm = multierror.Append(errm,
				fmt.Errorf("%w: taxon %q has counts but no taxonomy", ErrSchemaMismatch, taxon))
		}
	}

	for _, taxon := range sortedKeys(taxonomy) {
		if len(taxonomy[taxon]) > len(ranks) {
			errm = multierror.Append(errm,
				fmt.Errorf("%w: taxon %q has %d labels for %d ranks",
					ErrSchemaMismatch, taxon, len(taxonomy[taxon]), len(ranks)))
		}
	}

	return errm.ErrorOrNil()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))

	for i, id := range ids {
		idx[id] = i
	}

	return idx
}

func copyMeta(meta map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(meta))

	for sample, fields := range meta {
		row := make(map[string]string, len(fields))

		for field, value := range fields {
			row[field] = value
		}

		out[sample] = row
	}

	return out
}

// Samples returns the sample identifiers in sorted order.
func (d *Dataset) Samples() []string {
	return append([]string(nil), d.samples...)
}

// Taxa returns the taxon identifiers in sorted order.
func (d *Dataset) Taxa() []string {
	return append([]string(nil), d.taxa...)
}

// Ranks returns the taxonomy rank names, outermost first.
func (d *Dataset) Ranks() []string {
	return append([]string(nil), d.ranks...)
}

// Count returns the abundance of the given taxon in the given sample, with
// unknown identifiers counting as zero.
func (d *Dataset) Count(sample, taxon string) int64 {
	si, ok := d.sampleIdx[sample]
	if !ok {
		return 0
	}

	ti, ok := d.taxonIdx[taxon]
	if !ok {
		return 0
	}

	return d.counts[si][ti]
}

// Row returns a copy of the given sample's counts, ordered to match Taxa().
func (d *Dataset) Row(sample string) ([]int64, error) {
	si, ok := d.sampleIdx[sample]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSample, sample)
	}

	return append([]int64(nil), d.counts[si]...), nil
}

// RowTotal returns the total count of the given sample, with unknown samples
// totalling zero.
func (d *Dataset) RowTotal(sample string) int64 {
	si, ok := d.sampleIdx[sample]
	if !ok {
		return 0
	}

	var total int64

	for _, count := range d.counts[si] {
		total += count
	}

	return total
}

// Lineage returns a copy of the given taxon's rank labels, ordered to match
// Ranks(). Unclassified positions are empty strings.
func (d *Dataset) Lineage(taxon string) []string {
	ti, ok := d.taxonIdx[taxon]
	if !ok {
		return nil
	}

	return append([]string(nil), d.lineages[ti]...)
}

// Metadata returns a copy of the given sample's covariate record.
func (d *Dataset) Metadata(sample string) map[string]string {
	fields, ok := d.meta[sample]
	if !ok {
		return nil
	}

	row := make(map[string]string, len(fields))

	for field, value := range fields {
		row[field] = value
	}

	return row
}

// Grouping returns sample id -> value for the given metadata field, failing
// with ErrUnknownField when no sample carries the field. Samples without the
// field are omitted from the result.
func (d *Dataset) Grouping(field string) (map[string]string, error) {
	grouping := make(map[string]string, len(d.samples))

	for _, sample := range d.samples {
		if value, ok := d.meta[sample][field]; ok && value != "" {
			grouping[sample] = value
		}
	}

	if len(grouping) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	return grouping, nil
}

// MinRowTotal returns the smallest per-sample total count, the default
// rarefaction depth.
func (d *Dataset) MinRowTotal() int64 {
	var minTotal int64

	for i, sample := range d.samples {
		total := d.RowTotal(sample)

		if i == 0 || total < minTotal {
			minTotal = total
		}
	}

	return minTotal
}

// derive creates a Dataset sharing this one's metadata, for use by operations
// that change the counts or taxa but keep the sample set.
func (d *Dataset) derive(samples, taxa []string, counts [][]int64, ranks []string, lineages [][]string) *Dataset {
	return &Dataset{
		samples:   samples,
		taxa:      taxa,
		sampleIdx: indexOf(samples),
		taxonIdx:  indexOf(taxa),
		counts:    counts,
		ranks:     ranks,
		lineages:  lineages,
		meta:      d.meta,
	}
}
