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
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/amplistat/server"
)

const serverBindEnv = "AMPLISTAT_BIND"

var serverBind string

// serverCmd represents the server command.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve analysis results over HTTP",
	Long: `Serve analysis results over HTTP.

Loads the three input tables once and serves read-only JSON result endpoints
over that snapshot: per-sample alpha diversity, the Bray-Curtis distance
matrix, NMDS coordinates, PERMANOVA and differential abundance.

The bind address comes from --bind, or the ` + serverBindEnv + ` variable in
the environment or a .env file.`,
	Run: func(_ *cobra.Command, _ []string) {
		if err := serverRun(); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(serverCmd)

	addInputFlags(serverCmd)
	serverCmd.Flags().StringVarP(&serverBind, "bind", "b", "", "address to listen on, eg. localhost:8080")
}

func serverRun() error {
	if serverBind == "" {
		_ = godotenv.Load()

		serverBind = os.Getenv(serverBindEnv)
	}

	if serverBind == "" {
		serverBind = "localhost:8080"
	}

	ds, err := loadInput()
	if err != nil {
		return err
	}

	s := server.New(ds, appLogger)

	info("listening on %s", serverBind)

	return s.Start(serverBind)
}
