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
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/amplistat/diffabund"
)

var (
	diffGroup string
	diffRank  string
	diffTSV   bool
)

// diffabundCmd represents the diffabund command.
var diffabundCmd = &cobra.Command{
	Use:   "diffabund",
	Short: "Test taxa for differential abundance between two groups",
	Long: `Test taxa for differential abundance between two groups.

Normalises library sizes by the median-of-ratios method, fits a
negative-binomial GLM per taxon against the two groups of the --group
metadata field, Wald-tests each log2 fold-change and applies
Benjamini-Hochberg correction. With --rank, counts are aggregated to that
rank first.

Runs on the raw counts; do not combine with --rarefy unless you know why you
want that.`,
	Run: func(_ *cobra.Command, _ []string) {
		setCLIFormat()

		if err := diffabundRun(); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(diffabundCmd)

	addInputFlags(diffabundCmd)
	diffabundCmd.Flags().StringVarP(&diffGroup, "group", "g", "", "two-level metadata field to test between")
	diffabundCmd.Flags().StringVarP(&diffRank, "rank", "r", "", "aggregate to this rank before testing")
	diffabundCmd.Flags().BoolVar(&diffTSV, "tsv", false, "write tab separated output instead of a rendered table")

	if err := diffabundCmd.MarkFlagRequired("group"); err != nil {
		die("%s", err.Error())
	}
}

func diffabundRun() error {
	ds, err := loadInput()
	if err != nil {
		return err
	}

	if diffRank != "" {
		if ds, err = ds.Aggregate(diffRank); err != nil {
			return err
		}
	}

	grouping, err := ds.Grouping(diffGroup)
	if err != nil {
		return err
	}

	results, err := diffabund.Test(ds, grouping)
	if err != nil {
		return err
	}

	headers := []string{"Taxon", "BaseMean", "Log2FC", "StdErr", "Stat", "PValue", "AdjPValue", "Skipped"}

	var (
		rows    [][]string
		skipped int
	)

	for _, r := range results {
		if r.Skipped != "" {
			skipped++
		}

		rows = append(rows, []string{
			r.Taxon,
			strconv.FormatFloat(r.BaseMean, 'f', 2, 64),
			formatStat(r.Log2FoldChange, r.Skipped),
			formatStat(r.StdErr, r.Skipped),
			formatStat(r.Stat, r.Skipped),
			formatPValue(r.PValue),
			formatPValue(r.AdjPValue),
			r.Skipped,
		})
	}

	renderTable(headers, rows, diffTSV)

	if skipped > 0 {
		warn("%d taxa could not be tested and were excluded from the correction", skipped)
	}

	return nil
}

func formatStat(v float64, skipped string) string {
	if skipped != "" {
		return "NA"
	}

	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatPValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}

	return strconv.FormatFloat(v, 'g', 4, 64)
}
