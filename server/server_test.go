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

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/wtsi-hgi/amplistat/internal/testdata"
)

func TestServer(t *testing.T) {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())

	Convey("Given a Server over a loaded dataset", t, func() {
		s := New(testdata.Community(), logger)

		get := func(path string) (int, map[string]any) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, EndPointREST+path, nil)
			s.Router().ServeHTTP(w, r)

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)

			return w.Code, body
		}

		Convey("The dataset endpoint summarises the load", func() {
			code, body := get("/dataset")
			So(code, ShouldEqual, http.StatusOK)
			So(body["load_id"], ShouldNotBeEmpty)
			So(body["samples"], ShouldHaveLength, 6)
			So(body["taxa"], ShouldEqual, 8)
		})

		Convey("Every response carries the same load id", func() {
			_, dsBody := get("/dataset")
			_, alphaBody := get("/alpha")
			So(alphaBody["load_id"], ShouldEqual, dsBody["load_id"])
		})

		Convey("The alpha endpoint returns a per-sample table of the asked measures", func() {
			code, body := get("/alpha?measures=Shannon")
			So(code, ShouldEqual, http.StatusOK)

			table, ok := body["alpha"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(table, ShouldHaveLength, 6)

			sample, ok := table["sample1"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(sample, ShouldContainKey, "Shannon")
			So(sample, ShouldHaveLength, 1)
		})

		Convey("An unknown alpha measure is unprocessable", func() {
			code, body := get("/alpha?measures=Margalef")
			So(code, ShouldEqual, http.StatusUnprocessableEntity)
			So(body["error"], ShouldNotBeEmpty)
		})

		Convey("The distance endpoint returns the full matrix", func() {
			code, body := get("/beta/distance")
			So(code, ShouldEqual, http.StatusOK)
			So(body["samples"], ShouldHaveLength, 6)
			So(body["matrix"], ShouldHaveLength, 6)
		})

		Convey("The NMDS endpoint honours the dims query", func() {
			code, body := get("/beta/nmds?dims=3&seed=7")
			So(code, ShouldEqual, http.StatusOK)

			coords, ok := body["coords"].([]any)
			So(ok, ShouldBeTrue)
			So(coords, ShouldHaveLength, 6)

			first, ok := coords[0].([]any)
			So(ok, ShouldBeTrue)
			So(first, ShouldHaveLength, 3)
		})

		Convey("The permanova endpoint tests a metadata grouping", func() {
			code, body := get("/permanova?group=bodytype&permutations=99&seed=7")
			So(code, ShouldEqual, http.StatusOK)

			result, ok := body["permanova"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(result["Permutations"], ShouldEqual, 99)
			So(result["PValue"], ShouldBeGreaterThan, 0)
		})

		Convey("An unknown grouping field is a bad request", func() {
			code, _ := get("/permanova?group=nosuch")
			So(code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("The diffabund endpoint returns JSON-safe per-taxon rows", func() {
			code, body := get("/diffabund?group=bodytype")
			So(code, ShouldEqual, http.StatusOK)

			rows, ok := body["results"].([]any)
			So(ok, ShouldBeTrue)
			So(rows, ShouldHaveLength, 8)

			row, ok := rows[0].(map[string]any)
			So(ok, ShouldBeTrue)
			So(row, ShouldContainKey, "taxon")
			So(row, ShouldContainKey, "p_value")
		})

		Convey("The diffabund endpoint can aggregate to a rank first", func() {
			code, body := get("/diffabund?group=bodytype&rank=Phylum")
			So(code, ShouldEqual, http.StatusOK)

			rows, ok := body["results"].([]any)
			So(ok, ShouldBeTrue)
			So(rows, ShouldHaveLength, 2)
		})

		Convey("An unknown rank is a bad request", func() {
			code, _ := get("/diffabund?group=bodytype&rank=Kingdom")
			So(code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
