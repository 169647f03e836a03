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

package alpha

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wtsi-hgi/amplistat/dataset"
	"github.com/wtsi-hgi/amplistat/internal/testdata"
)

func TestEstimate(t *testing.T) {
	Convey("Given the 4 sample, 3 taxon dataset", t, func() {
		d := testdata.Tiny()

		Convey("Observed richness counts the nonzero taxa per sample", func() {
			table, err := Estimate(d, []Measure{Observed})
			So(err, ShouldBeNil)
			So(table["sample1"][Observed], ShouldEqual, 1)
			So(table["sample2"][Observed], ShouldEqual, 1)
			So(table["sample3"][Observed], ShouldEqual, 2)
			So(table["sample4"][Observed], ShouldEqual, 1)
		})

		Convey("Shannon of a single-taxon sample is 0", func() {
			table, err := Estimate(d, []Measure{Shannon})
			So(err, ShouldBeNil)
			So(table["sample1"][Shannon], ShouldEqual, 0)
		})

		Convey("Shannon of an even two-taxon sample is ln 2", func() {
			table, err := Estimate(d, []Measure{Shannon})
			So(err, ShouldBeNil)
			So(table["sample3"][Shannon], ShouldAlmostEqual, math.Ln2, 1e-12)
		})

		Convey("Simpson of a single-taxon sample is 0 and of an even pair is 0.5", func() {
			table, err := Estimate(d, []Measure{Simpson})
			So(err, ShouldBeNil)
			So(table["sample1"][Simpson], ShouldEqual, 0)
			So(table["sample3"][Simpson], ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("An unknown measure is an error", func() {
			_, err := Estimate(d, []Measure{Measure("Margalef")})
			So(errors.Is(err, ErrUnknownMeasure), ShouldBeTrue)
		})

		Convey("No measures means all measures", func() {
			table, err := Estimate(d, nil)
			So(err, ShouldBeNil)
			So(table["sample1"], ShouldHaveLength, len(AllMeasures()))
		})
	})

	Convey("Given a sample with singletons and doubletons", t, func() {
		abundance := map[string]map[string]int64{
			"s1": {"t1": 1, "t2": 1, "t3": 2, "t4": 50},
		}
		taxonomy := map[string][]string{
			"t1": {"x"}, "t2": {"x"}, "t3": {"x"}, "t4": {"x"},
		}
		meta := map[string]map[string]string{"s1": {}}

		d, err := dataset.Build(abundance, taxonomy, []string{"Domain"}, meta)
		So(err, ShouldBeNil)

		Convey("Chao1 adds f1^2/(2*f2) to the observed richness", func() {
			table, err := Estimate(d, []Measure{Chao1})
			So(err, ShouldBeNil)
			// f1 = 2, f2 = 1: 4 + 4/2
			So(table["s1"][Chao1], ShouldAlmostEqual, 6, 1e-12)
		})

		Convey("ACE is at least the observed richness", func() {
			table, err := Estimate(d, []Measure{ACE, Observed})
			So(err, ShouldBeNil)
			So(table["s1"][ACE], ShouldBeGreaterThanOrEqualTo, table["s1"][Observed])
		})
	})

	Convey("Given a sample with no doubletons", t, func() {
		abundance := map[string]map[string]int64{
			"s1": {"t1": 1, "t2": 1, "t3": 1, "t4": 50},
		}
		taxonomy := map[string][]string{
			"t1": {"x"}, "t2": {"x"}, "t3": {"x"}, "t4": {"x"},
		}
		meta := map[string]map[string]string{"s1": {}}

		d, err := dataset.Build(abundance, taxonomy, []string{"Domain"}, meta)
		So(err, ShouldBeNil)

		Convey("Chao1 falls back to the bias-corrected form", func() {
			table, err := Estimate(d, []Measure{Chao1})
			So(err, ShouldBeNil)
			// f1 = 3, f2 = 0: 4 + 3*2/2
			So(table["s1"][Chao1], ShouldAlmostEqual, 7, 1e-12)
		})
	})

	Convey("A sample with a zero row total is an EmptySample error", t, func() {
		abundance := map[string]map[string]int64{
			"s1": {"t1": 5},
			"s2": {},
		}
		taxonomy := map[string][]string{"t1": {"x"}}
		meta := map[string]map[string]string{"s1": {}, "s2": {}}

		d, err := dataset.Build(abundance, taxonomy, []string{"Domain"}, meta)
		So(err, ShouldBeNil)

		_, err = Estimate(d, []Measure{Shannon})
		So(err, ShouldNotBeNil)
		So(errors.Is(err, ErrEmptySample), ShouldBeTrue)
	})
}
