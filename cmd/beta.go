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

	"github.com/wtsi-hgi/amplistat/beta"
	"github.com/wtsi-hgi/amplistat/sigtest"
)

var (
	betaGroup        string
	betaDims         int
	betaPermutations int
	betaSkipNMDS     bool
	betaTSV          bool
)

// betaCmd represents the beta command.
var betaCmd = &cobra.Command{
	Use:   "beta",
	Short: "Compute between-sample dissimilarity and ordination",
	Long: `Compute between-sample dissimilarity and ordination.

Writes the Bray-Curtis dissimilarity matrix, then an NMDS ordination of it
(sample coordinates plus stress). With --group, also runs a PERMANOVA of the
dissimilarities against the two or more groups of that metadata field.

An NMDS stress above 0.2 is flagged as hard to interpret; try more
dimensions.`,
	Run: func(_ *cobra.Command, _ []string) {
		setCLIFormat()

		if err := betaRun(); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(betaCmd)

	addInputFlags(betaCmd)
	betaCmd.Flags().StringVarP(&betaGroup, "group", "g", "", "metadata field for a PERMANOVA")
	betaCmd.Flags().IntVar(&betaDims, "dims", beta.DefaultDims, "NMDS dimensions")
	betaCmd.Flags().IntVar(&betaPermutations, "permutations", sigtest.DefaultPermutations,
		"PERMANOVA permutation count")
	betaCmd.Flags().BoolVar(&betaSkipNMDS, "no-nmds", false, "skip the NMDS ordination")
	betaCmd.Flags().BoolVar(&betaTSV, "tsv", false, "write tab separated output instead of rendered tables")
}

func betaRun() error {
	ds, err := loadInput()
	if err != nil {
		return err
	}

	m, err := beta.Dissimilarity(ds, beta.MetricBrayCurtis)
	if err != nil {
		return err
	}

	printDistanceMatrix(m)

	if !betaSkipNMDS {
		if err := printNMDS(m); err != nil {
			return err
		}
	}

	if betaGroup == "" {
		return nil
	}

	grouping, err := ds.Grouping(betaGroup)
	if err != nil {
		return err
	}

	result, err := sigtest.Permanova(m, grouping, betaPermutations, rootSeed)
	if err != nil {
		return err
	}

	if len(result.Excluded) > 0 {
		warn("samples without a %q value were excluded: %v", betaGroup, result.Excluded)
	}

	cliPrint("PERMANOVA: %d groups, %d permutations, pseudo-F = %.4f, p = %.4g\n",
		result.Groups, result.Permutations, result.PseudoF, result.PValue)

	return nil
}

func printDistanceMatrix(m *beta.DissimilarityMatrix) {
	samples := m.Samples()
	headers := append([]string{"Sample"}, samples...)

	rows := make([][]string, len(samples))

	for i, sample := range samples {
		row := []string{sample}

		for j := range samples {
			row = append(row, strconv.FormatFloat(m.At(i, j), 'f', 4, 64))
		}

		rows[i] = row
	}

	renderTable(headers, rows, betaTSV)
}

func printNMDS(m *beta.DissimilarityMatrix) error {
	o, err := beta.NMDS(m, beta.NMDSConfig{Dims: betaDims}, rootSeed)
	if err != nil {
		return err
	}

	headers := []string{"Sample"}

	for k := 0; k < betaDims; k++ {
		headers = append(headers, "NMDS"+strconv.Itoa(k+1))
	}

	rows := make([][]string, len(o.Samples))

	for i, sample := range o.Samples {
		row := []string{sample}

		for _, coord := range o.Coords[i] {
			row = append(row, strconv.FormatFloat(coord, 'f', 4, 64))
		}

		rows[i] = row
	}

	renderTable(headers, rows, betaTSV)
	cliPrint("NMDS stress = %.4f\n", o.Stress)

	if !o.Converged {
		warn("NMDS did not converge; stress %.4f", o.Stress)
	}

	if o.Stress > beta.GoodStress {
		warn("NMDS stress above %.1f; the ordination may not be interpretable", beta.GoodStress)
	}

	return nil
}
