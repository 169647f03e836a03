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

package beta

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wtsi-hgi/amplistat/dataset"
	"github.com/wtsi-hgi/amplistat/internal/testdata"
)

func TestDissimilarity(t *testing.T) {
	Convey("Given a community dataset", t, func() {
		d := testdata.Community()

		Convey("Bray-Curtis is zero on the diagonal, symmetric and within [0,1]", func() {
			m, err := Dissimilarity(d, MetricBrayCurtis)
			So(err, ShouldBeNil)

			n := m.Len()

			for i := 0; i < n; i++ {
				So(m.At(i, i), ShouldEqual, 0)

				for j := 0; j < n; j++ {
					So(m.At(i, j), ShouldEqual, m.At(j, i))
					So(m.At(i, j), ShouldBeBetweenOrEqual, 0, 1)
				}
			}
		})

		Convey("Samples from different groups are farther apart than within groups", func() {
			m, err := Dissimilarity(d, MetricBrayCurtis)
			So(err, ShouldBeNil)

			within, ok := m.Distance("sample1", "sample2")
			So(ok, ShouldBeTrue)

			between, ok := m.Distance("sample1", "sample4")
			So(ok, ShouldBeTrue)
			So(between, ShouldBeGreaterThan, within)
		})

		Convey("An unknown metric is an error", func() {
			_, err := Dissimilarity(d, "euclidean")
			So(errors.Is(err, ErrUnknownMetric), ShouldBeTrue)
		})
	})

	Convey("Two samples of identical composition at different depths have distance 0", t, func() {
		abundance := map[string]map[string]int64{
			"small": {"t1": 2, "t2": 2},
			"big":   {"t1": 50, "t2": 50},
		}
		taxonomy := map[string][]string{"t1": {"x"}, "t2": {"x"}}
		meta := map[string]map[string]string{"small": {}, "big": {}}

		d, err := dataset.Build(abundance, taxonomy, []string{"Domain"}, meta)
		So(err, ShouldBeNil)

		m, err := Dissimilarity(d, MetricBrayCurtis)
		So(err, ShouldBeNil)

		dist, ok := m.Distance("small", "big")
		So(ok, ShouldBeTrue)
		So(dist, ShouldEqual, 0)
	})

	Convey("Two samples sharing no taxa have distance 1", t, func() {
		abundance := map[string]map[string]int64{
			"s1": {"t1": 10},
			"s2": {"t2": 7},
		}
		taxonomy := map[string][]string{"t1": {"x"}, "t2": {"x"}}
		meta := map[string]map[string]string{"s1": {}, "s2": {}}

		d, err := dataset.Build(abundance, taxonomy, []string{"Domain"}, meta)
		So(err, ShouldBeNil)

		m, err := Dissimilarity(d, MetricBrayCurtis)
		So(err, ShouldBeNil)

		dist, ok := m.Distance("s1", "s2")
		So(ok, ShouldBeTrue)
		So(dist, ShouldEqual, 1)
	})

	Convey("A single sample is too few for a matrix", t, func() {
		abundance := map[string]map[string]int64{"s1": {"t1": 1}}
		taxonomy := map[string][]string{"t1": {"x"}}
		meta := map[string]map[string]string{"s1": {}}

		d, err := dataset.Build(abundance, taxonomy, []string{"Domain"}, meta)
		So(err, ShouldBeNil)

		_, err = Dissimilarity(d, MetricBrayCurtis)
		So(errors.Is(err, ErrTooFewSamples), ShouldBeTrue)
	})
}

func TestNMDS(t *testing.T) {
	Convey("Given the dissimilarities of a two-cluster community", t, func() {
		m, err := Dissimilarity(testdata.Community(), MetricBrayCurtis)
		So(err, ShouldBeNil)

		Convey("NMDS returns coordinates for every sample in the requested dimensions", func() {
			o, err := NMDS(m, NMDSConfig{}, 1)
			So(err, ShouldBeNil)
			So(o.Samples, ShouldResemble, m.Samples())
			So(o.Coords, ShouldHaveLength, m.Len())

			for _, coords := range o.Coords {
				So(coords, ShouldHaveLength, DefaultDims)
			}
		})

		Convey("The embedding of clearly structured data has low stress", func() {
			o, err := NMDS(m, NMDSConfig{}, 1)
			So(err, ShouldBeNil)
			So(o.Stress, ShouldBeGreaterThanOrEqualTo, 0)
			So(o.Stress, ShouldBeLessThan, GoodStress)
		})

		Convey("The same seed reproduces the same embedding", func() {
			o1, err := NMDS(m, NMDSConfig{Restarts: 4}, 7)
			So(err, ShouldBeNil)

			o2, err := NMDS(m, NMDSConfig{Restarts: 4}, 7)
			So(err, ShouldBeNil)
			So(o1.Stress, ShouldEqual, o2.Stress)
			So(o1.Coords, ShouldResemble, o2.Coords)
		})

		Convey("In the embedding, within-group samples sit closer than between-group ones", func() {
			o, err := NMDS(m, NMDSConfig{}, 1)
			So(err, ShouldBeNil)

			So(coordDist(o, 0, 1), ShouldBeLessThan, coordDist(o, 0, 3))
			So(coordDist(o, 3, 4), ShouldBeLessThan, coordDist(o, 2, 3))
		})
	})
}

func coordDist(o *Ordination, i, j int) float64 {
	var sum float64

	for k := range o.Coords[i] {
		diff := o.Coords[i][k] - o.Coords[j][k]
		sum += diff * diff
	}

	return sum
}
