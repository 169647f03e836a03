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

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/amplistat/alpha"
	"github.com/wtsi-hgi/amplistat/dataset"
	"github.com/wtsi-hgi/amplistat/sigtest"
)

var (
	alphaMeasures []string
	alphaGroup    string
	alphaTSV      bool
)

// alphaCmd represents the alpha command.
var alphaCmd = &cobra.Command{
	Use:   "alpha",
	Short: "Compute per-sample alpha diversity",
	Long: `Compute per-sample alpha diversity.

Writes a table of the requested measures (Observed, Chao1, ACE, Shannon,
Simpson; all by default) per sample. With --group, also runs a two-sided
rank-sum test of each measure between the two groups of that metadata field.

Chao1 and ACE extrapolate richness from raw sampling counts, so combine them
with --rarefy deliberately, if at all.`,
	Run: func(_ *cobra.Command, _ []string) {
		setCLIFormat()

		if err := alphaRun(); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(alphaCmd)

	addInputFlags(alphaCmd)
	alphaCmd.Flags().StringSliceVar(&alphaMeasures, "measures", nil, "comma separated measures to compute")
	alphaCmd.Flags().StringVarP(&alphaGroup, "group", "g", "", "metadata field for a two-group rank-sum test")
	alphaCmd.Flags().BoolVar(&alphaTSV, "tsv", false, "write tab separated output instead of a rendered table")
}

func alphaRun() error {
	ds, err := loadInput()
	if err != nil {
		return err
	}

	measures := make([]alpha.Measure, len(alphaMeasures))

	for i, m := range alphaMeasures {
		measures[i] = alpha.Measure(m)
	}

	if len(measures) == 0 {
		measures = alpha.AllMeasures()
	}

	table, err := alpha.Estimate(ds, measures)
	if err != nil {
		return err
	}

	headers := []string{"Sample"}

	for _, m := range measures {
		headers = append(headers, string(m))
	}

	var rows [][]string

	for _, sample := range ds.Samples() {
		row := []string{sample}

		for _, m := range measures {
			row = append(row, strconv.FormatFloat(table[sample][m], 'f', 4, 64))
		}

		rows = append(rows, row)
	}

	renderTable(headers, rows, alphaTSV)

	if alphaGroup == "" {
		return nil
	}

	return alphaTests(ds, table, measures)
}

// alphaTests rank-sum tests every measure between the two levels of the
// chosen grouping field.
func alphaTests(ds *dataset.Dataset, table alpha.Table, measures []alpha.Measure) error {
	grouping, err := ds.Grouping(alphaGroup)
	if err != nil {
		return err
	}

	samples := ds.Samples()

	for _, m := range measures {
		byGroup := make(map[string][]float64)

		for _, sample := range samples {
			if group, ok := grouping[sample]; ok {
				byGroup[group] = append(byGroup[group], table[sample][m])
			}
		}

		result, err := sigtest.RankSum(byGroup)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}

		cliPrint("%s: %s vs %s, U = %.1f, p = %.4g\n",
			m, result.Groups[0], result.Groups[1], result.Statistic, result.PValue)
	}

	return nil
}
