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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/amplistat/dataset"
)

var rarefyTSV bool

// rarefyCmd represents the rarefy command.
var rarefyCmd = &cobra.Command{
	Use:   "rarefy",
	Short: "Rarefy the abundance table to a common depth",
	Long: `Rarefy the abundance table to a common depth.

Subsamples every sample's counts without replacement to the --rarefy depth
(default: the minimum sample total) and writes the resulting abundance table.
Samples with fewer reads than the depth are dropped and reported. The same
--seed always gives the same table.`,
	Run: func(_ *cobra.Command, _ []string) {
		setCLIFormat()

		if rarefyDepth < 0 {
			rarefyDepth = 0
		}

		if err := rarefyRun(); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(rarefyCmd)

	addInputFlags(rarefyCmd)
	rarefyCmd.Flags().BoolVar(&rarefyTSV, "tsv", false, "write tab separated output instead of a rendered table")
}

func rarefyRun() error {
	ds, err := loadInput()
	if err != nil {
		return err
	}

	printAbundance(ds, rarefyTSV)

	return nil
}

// printAbundance writes the dataset's counts as a taxa-by-samples table, the
// same orientation the loader reads.
func printAbundance(ds *dataset.Dataset, tsv bool) {
	samples := ds.Samples()
	headers := append([]string{"Taxon"}, samples...)

	var rows [][]string

	for _, taxon := range ds.Taxa() {
		row := []string{taxon}

		for _, sample := range samples {
			row = append(row, strconv.FormatInt(ds.Count(sample, taxon), 10))
		}

		rows = append(rows, row)
	}

	renderTable(headers, rows, tsv)
}
