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
	"github.com/spf13/cobra"
)

var (
	collapseRank string
	collapseTopN int
	collapseTSV  bool
)

// collapseCmd represents the collapse command.
var collapseCmd = &cobra.Command{
	Use:   "collapse",
	Short: "Aggregate counts to a taxonomic rank",
	Long: `Aggregate counts to a taxonomic rank.

Sums counts across all taxa sharing the same label at --rank, pooling
unclassified taxa into an Unresolved bucket, and writes the aggregated
abundance table. With --top, only the n most abundant taxa are kept and the
remainder are summed into an Other taxon; per-sample totals are unchanged.

When --rarefy is also given, rarefaction happens first; rarefying after
aggregation gives different numbers, so run rarefy separately if that is the
order you want.`,
	Run: func(_ *cobra.Command, _ []string) {
		setCLIFormat()

		if err := collapseRun(); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(collapseCmd)

	addInputFlags(collapseCmd)
	collapseCmd.Flags().StringVarP(&collapseRank, "rank", "r", "", "taxonomic rank to aggregate to")
	collapseCmd.Flags().IntVar(&collapseTopN, "top", 0, "keep only this many taxa, pooling the rest into Other")
	collapseCmd.Flags().BoolVar(&collapseTSV, "tsv", false, "write tab separated output instead of a rendered table")

	if err := collapseCmd.MarkFlagRequired("rank"); err != nil {
		die("%s", err.Error())
	}
}

func collapseRun() error {
	ds, err := loadInput()
	if err != nil {
		return err
	}

	if collapseTopN > 0 {
		ds, err = ds.CollapseToTopN(collapseRank, collapseTopN)
	} else {
		ds, err = ds.Aggregate(collapseRank)
	}

	if err != nil {
		return err
	}

	info("%d taxa after aggregation to %s", len(ds.Taxa()), collapseRank)
	printAbundance(ds, collapseTSV)

	return nil
}
