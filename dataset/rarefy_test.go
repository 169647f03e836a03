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

package dataset

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func rarefyTestDataset() *Dataset {
	abundance := map[string]map[string]int64{
		"s1": {"t1": 10},
		"s2": {"t2": 10},
		"s3": {"t1": 5, "t2": 5},
		"s4": {"t3": 10},
		"s5": {"t1": 100, "t2": 50, "t3": 25},
	}
	taxonomy := map[string][]string{
		"t1": {"Bacteria"},
		"t2": {"Bacteria"},
		"t3": {"Archaea"},
	}
	meta := map[string]map[string]string{
		"s1": {}, "s2": {}, "s3": {}, "s4": {}, "s5": {},
	}

	d, err := Build(abundance, taxonomy, []string{"Domain"}, meta)
	if err != nil {
		panic(err)
	}

	return d
}

func TestRarefy(t *testing.T) {
	Convey("Given a dataset with unequal sample depths", t, func() {
		d := rarefyTestDataset()

		Convey("Rarefying to depth 10 keeps every sample at exactly 10 reads", func() {
			r, notice, err := d.Rarefy(10, 42)
			So(err, ShouldBeNil)
			So(notice.Depth, ShouldEqual, 10)
			So(notice.Dropped, ShouldBeEmpty)
			So(r.Samples(), ShouldResemble, []string{"s1", "s2", "s3", "s4", "s5"})

			for _, sample := range r.Samples() {
				So(r.RowTotal(sample), ShouldEqual, 10)
			}
		})

		Convey("Samples already at the depth are unchanged", func() {
			r, _, err := d.Rarefy(10, 42)
			So(err, ShouldBeNil)
			So(r.Count("s1", "t1"), ShouldEqual, 10)
			So(r.Count("s3", "t1"), ShouldEqual, 5)
			So(r.Count("s3", "t2"), ShouldEqual, 5)
		})

		Convey("No count can exceed its original value", func() {
			r, _, err := d.Rarefy(10, 42)
			So(err, ShouldBeNil)

			for _, sample := range r.Samples() {
				for _, taxon := range r.Taxa() {
					So(r.Count(sample, taxon), ShouldBeLessThanOrEqualTo, d.Count(sample, taxon))
				}
			}
		})

		Convey("Samples below the requested depth are dropped and reported", func() {
			r, notice, err := d.Rarefy(50, 42)
			So(err, ShouldBeNil)
			So(notice.Dropped, ShouldResemble, []string{"s1", "s2", "s3", "s4"})
			So(r.Samples(), ShouldResemble, []string{"s5"})
			So(r.RowTotal("s5"), ShouldEqual, 50)
		})

		Convey("Depth zero means the minimum sample total", func() {
			_, notice, err := d.Rarefy(0, 42)
			So(err, ShouldBeNil)
			So(notice.Depth, ShouldEqual, 10)
		})

		Convey("The same seed reproduces the same table, a different seed need not", func() {
			r1, _, err := d.Rarefy(10, 42)
			So(err, ShouldBeNil)

			r2, _, err := d.Rarefy(10, 42)
			So(err, ShouldBeNil)

			for _, sample := range r1.Samples() {
				for _, taxon := range r1.Taxa() {
					So(r1.Count(sample, taxon), ShouldEqual, r2.Count(sample, taxon))
				}
			}
		})

		Convey("The original dataset is untouched", func() {
			_, _, err := d.Rarefy(10, 42)
			So(err, ShouldBeNil)
			So(d.RowTotal("s5"), ShouldEqual, 175)
		})
	})
}
