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

// package tabload reads the three tab-separated input tables (abundance,
// taxonomy, sample metadata) that the analysis packages consume, handling
// gzipped files transparently. It owns no analysis logic.

package tabload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/wtsi-hgi/amplistat/dataset"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrNoHeader  = Error("input table has no header line")
	ErrRaggedRow = Error("input table row has the wrong number of columns")
	ErrDupID     = Error("input table repeats an identifier")
)

// DefaultRanks is the rank order assumed for semicolon-separated lineage
// strings.
var DefaultRanks = []string{"Domain", "Phylum", "Class", "Order", "Family", "Genus", "Species"} //nolint:gochecknoglobals

// Tables holds the three parsed input tables, ready for dataset.Build.
type Tables struct {
	Abundance map[string]map[string]int64
	Taxonomy  map[string][]string
	Ranks     []string
	Meta      map[string]map[string]string
}

// LoadDataset reads the three tables from their files and builds a validated
// Dataset from them.
func LoadDataset(abundancePath, taxonomyPath, metaPath string) (*dataset.Dataset, error) {
	tables, err := LoadTables(abundancePath, taxonomyPath, metaPath)
	if err != nil {
		return nil, err
	}

	return dataset.Build(tables.Abundance, tables.Taxonomy, tables.Ranks, tables.Meta)
}

// LoadTables reads the three tables from their files without cross-table
// validation.
func LoadTables(abundancePath, taxonomyPath, metaPath string) (*Tables, error) {
	tables := &Tables{}

	var err error

	if tables.Abundance, err = loadFile(abundancePath, tables.parseAbundance); err != nil {
		return nil, err
	}

	if tables.Taxonomy, err = loadFile(taxonomyPath, tables.parseTaxonomy); err != nil {
		return nil, err
	}

	if tables.Meta, err = loadFile(metaPath, tables.parseMetadata); err != nil {
		return nil, err
	}

	return tables, nil
}

func loadFile[T any](path string, parse func([][]string) (T, error)) (T, error) {
	var zero T

	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}

	defer f.Close() //nolint:errcheck

	var r io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		gz, errr := pgzip.NewReader(f)
		if errr != nil {
			return zero, errr
		}

		defer gz.Close() //nolint:errcheck

		r = gz
	}

	rows, err := readTSV(r)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}

	val, err := parse(rows)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}

	return val, nil
}

func readTSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	return rows, nil
}

// parseAbundance reads a taxa-by-samples count table: header of sample ids
// after an ignored corner cell, then one row per taxon. Counts must parse as
// non-negative integers; anything else is an InvalidCount.
func (t *Tables) parseAbundance(rows [][]string) (map[string]map[string]int64, error) {
	samples := rows[0][1:]
	abundance := make(map[string]map[string]int64, len(samples))

	for _, sample := range samples {
		if _, ok := abundance[sample]; ok {
			return nil, fmt.Errorf("%w: sample %q", ErrDupID, sample)
		}

		abundance[sample] = make(map[string]int64)
	}

	seen := make(map[string]bool)

	for _, row := range rows[1:] {
		if len(row) != len(samples)+1 {
			return nil, fmt.Errorf("%w: taxon row %q", ErrRaggedRow, row[0])
		}

		taxon := row[0]
		if seen[taxon] {
			return nil, fmt.Errorf("%w: taxon %q", ErrDupID, taxon)
		}

		seen[taxon] = true

		for i, cell := range row[1:] {
			count, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: %q for sample %q, taxon %q",
					dataset.ErrInvalidCount, cell, samples[i], taxon)
			}

			if count > 0 {
				abundance[samples[i]][taxon] = count
			}
		}
	}

	return abundance, nil
}

// parseTaxonomy reads either a taxon-by-ranks table (header names the ranks)
// or a two-column table whose second column is a semicolon-separated lineage,
// in which case DefaultRanks applies. Rank prefixes in the g__Genus style are
// stripped, and missing labels become empty strings.
func (t *Tables) parseTaxonomy(rows [][]string) (map[string][]string, error) {
	header := rows[0]
	lineageStyle := len(header) == 2

	if lineageStyle {
		t.Ranks = append([]string(nil), DefaultRanks...)
	} else {
		t.Ranks = append([]string(nil), header[1:]...)
	}

	taxonomy := make(map[string][]string, len(rows)-1)

	for _, row := range rows[1:] {
		if len(row) < 2 || (!lineageStyle && len(row) != len(header)) {
			return nil, fmt.Errorf("%w: taxon row %q", ErrRaggedRow, row[0])
		}

		if _, ok := taxonomy[row[0]]; ok {
			return nil, fmt.Errorf("%w: taxon %q", ErrDupID, row[0])
		}

		labels := row[1:]

		if lineageStyle {
			labels = strings.Split(row[1], ";")
		}

		lineage := make([]string, 0, len(labels))

		for _, label := range labels {
			lineage = append(lineage, cleanLabel(label))
		}

		taxonomy[row[0]] = lineage
	}

	return taxonomy, nil
}

// cleanLabel trims a rank label and strips any single-letter prefix of the
// k__Label form that classifiers commonly emit.
func cleanLabel(label string) string {
	label = strings.TrimSpace(label)

	if len(label) >= 3 && label[1] == '_' && label[2] == '_' {
		label = label[3:]
	}

	return label
}

// parseMetadata reads a samples-by-covariates table: header of field names
// after the sample id column, then one row per sample.
func (t *Tables) parseMetadata(rows [][]string) (map[string]map[string]string, error) {
	fields := rows[0][1:]
	meta := make(map[string]map[string]string, len(rows)-1)

	for _, row := range rows[1:] {
		if len(row) != len(fields)+1 {
			return nil, fmt.Errorf("%w: sample row %q", ErrRaggedRow, row[0])
		}

		if _, ok := meta[row[0]]; ok {
			return nil, fmt.Errorf("%w: sample %q", ErrDupID, row[0])
		}

		record := make(map[string]string, len(fields))

		for i, value := range row[1:] {
			record[fields[i]] = strings.TrimSpace(value)
		}

		meta[row[0]] = record
	}

	return meta, nil
}
