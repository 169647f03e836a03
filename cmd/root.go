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

// package cmd is the cobra file that enables subcommands and handles
// command-line args.

package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/amplistat/dataset"
	"github.com/wtsi-hgi/amplistat/tabload"
)

// appLogger is used for logging events in our commands.
var appLogger = log15.New()

// common input flags, registered on every analysis subcommand.
var (
	abundancePath string
	taxonomyPath  string
	metadataPath  string
	rarefyDepth   int64
	rootSeed      uint64
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "amplistat",
	Short: "amplistat analyses community-abundance tables.",
	Long: `amplistat analyses community-abundance (amplicon/ASV) tables.

Given an abundance matrix, a taxonomy table and sample metadata, the
subcommands compute alpha and beta diversity, ordinations, group significance
tests, taxonomic aggregations and differential abundance, writing result
tables to STDOUT.`,
}

func init() {
	// set up logging to stderr
	appLogger.SetHandler(log15.LvlFilterHandler(log15.LvlInfo, log15.StderrHandler))
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		die("%s", err.Error())
	}
}

// addInputFlags registers the three table paths and the rarefaction options
// on the given subcommand.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&abundancePath, "abundance", "a", "", "path to abundance table (.tsv or .tsv.gz)")
	cmd.Flags().StringVarP(&taxonomyPath, "taxonomy", "t", "", "path to taxonomy table (.tsv or .tsv.gz)")
	cmd.Flags().StringVarP(&metadataPath, "metadata", "m", "", "path to sample metadata table (.tsv or .tsv.gz)")
	cmd.Flags().Int64Var(&rarefyDepth, "rarefy", -1,
		"rarefy to this depth before analysis; 0 means the minimum sample total, "+
			"unset means no rarefaction (applied before any --rank aggregation)")
	cmd.Flags().Uint64Var(&rootSeed, "seed", 1, "root seed for randomised steps")

	for _, flag := range []string{"abundance", "taxonomy", "metadata"} {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			die("%s", err.Error())
		}
	}
}

// loadInput loads and validates the three tables, applying rarefaction if
// requested.
func loadInput() (*dataset.Dataset, error) {
	ds, err := tabload.LoadDataset(abundancePath, taxonomyPath, metadataPath)
	if err != nil {
		return nil, err
	}

	info("loaded %s samples, %s taxa",
		humanize.Comma(int64(len(ds.Samples()))), humanize.Comma(int64(len(ds.Taxa()))))

	if rarefyDepth < 0 {
		return ds, nil
	}

	rarefied, notice, err := ds.Rarefy(rarefyDepth, rootSeed)
	if err != nil {
		return nil, err
	}

	info("rarefied to depth %s", humanize.Comma(notice.Depth))

	if len(notice.Dropped) > 0 {
		warn("dropped %d samples below depth: %v", len(notice.Dropped), notice.Dropped)
	}

	return rarefied, nil
}

// cliPrint outputs the message to STDOUT.
func cliPrint(msg string, a ...any) {
	fmt.Fprintf(os.Stdout, msg, a...)
}

// info is a convenience to log a message at the Info level.
func info(msg string, a ...any) {
	appLogger.Info(fmt.Sprintf(msg, a...))
}

// warn is a convenience to log a message at the Warn level.
func warn(msg string, a ...any) {
	appLogger.Warn(fmt.Sprintf(msg, a...))
}

// die is a convenience to log a message at the Error level and exit non zero.
func die(msg string, a ...any) {
	appLogger.Error(fmt.Sprintf(msg, a...))
	os.Exit(1)
}

// setCLIFormat logs plain text log messages to STDERR.
func setCLIFormat() {
	appLogger.SetHandler(log15.StreamHandler(os.Stderr, cliFormat()))
}

// cliFormat returns a log15.Format that only prints the plain log msg.
func cliFormat() log15.Format { //nolint:ireturn
	return log15.FormatFunc(func(r *log15.Record) []byte {
		b := &bytes.Buffer{}
		fmt.Fprintf(b, "%s\n", r.Msg)

		return b.Bytes()
	})
}
