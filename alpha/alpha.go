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

// package alpha computes within-sample diversity measures over a Dataset.

package alpha

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wtsi-hgi/amplistat/dataset"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrEmptySample    = Error("diversity is undefined for a sample with no reads")
	ErrUnknownMeasure = Error("unknown alpha diversity measure")

	// rare taxa for the ACE estimator are those at or below this count.
	aceRareThreshold = 10
)

// Measure is an alpha diversity measure name.
type Measure string

const (
	Observed Measure = "Observed"
	Chao1    Measure = "Chao1"
	ACE      Measure = "ACE"
	Shannon  Measure = "Shannon"
	Simpson  Measure = "Simpson"
)

// AllMeasures lists every supported measure in display order.
func AllMeasures() []Measure {
	return []Measure{Observed, Chao1, ACE, Shannon, Simpson}
}

// Table maps sample id -> measure -> value.
type Table map[string]map[Measure]float64

// Estimate computes the given measures for every sample in the dataset,
// working across samples in parallel. It fails with ErrEmptySample when a
// sample has a zero row total, and with ErrUnknownMeasure for a measure it
// does not implement.
//
// Chao1 and ACE assume raw sampling counts; callers should pass un-rarefied
// or independently rarefied data when requesting them.
func Estimate(d *dataset.Dataset, measures []Measure) (Table, error) {
	if len(measures) == 0 {
		measures = AllMeasures()
	}

	for _, m := range measures {
		if !validMeasure(m) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMeasure, m)
		}
	}

	samples := d.Samples()
	rows := make([]map[Measure]float64, len(samples))

	var g errgroup.Group

	g.SetLimit(runtime.NumCPU())

	for i, sample := range samples {
		i, sample := i, sample

		g.Go(func() error {
			row, err := d.Row(sample)
			if err != nil {
				return err
			}

			values, err := estimateSample(sample, row, measures)
			if err != nil {
				return err
			}

			rows[i] = values

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := make(Table, len(samples))

	for i, sample := range samples {
		table[sample] = rows[i]
	}

	return table, nil
}

func validMeasure(m Measure) bool {
	for _, known := range AllMeasures() {
		if m == known {
			return true
		}
	}

	return false
}

func estimateSample(sample string, row []int64, measures []Measure) (map[Measure]float64, error) {
	var total int64

	for _, count := range row {
		total += count
	}

	if total == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptySample, sample)
	}

	values := make(map[Measure]float64, len(measures))

	for _, m := range measures {
		switch m {
		case Observed:
			values[m] = observed(row)
		case Chao1:
			values[m] = chao1(row)
		case ACE:
			values[m] = ace(row)
		case Shannon:
			values[m] = shannon(row, total)
		case Simpson:
			values[m] = simpson(row, total)
		}
	}

	return values, nil
}

func observed(row []int64) float64 {
	var n float64

	for _, count := range row {
		if count > 0 {
			n++
		}
	}

	return n
}

func shannon(row []int64, total int64) float64 {
	var h float64

	for _, count := range row {
		if count > 0 {
			p := float64(count) / float64(total)
			h -= p * math.Log(p)
		}
	}

	return h
}

func simpson(row []int64, total int64) float64 {
	var sum float64

	for _, count := range row {
		if count > 0 {
			p := float64(count) / float64(total)
			sum += p * p
		}
	}

	return 1 - sum
}

// chao1 extrapolates richness from singleton and doubleton counts, using the
// bias-corrected form when no doubletons are present.
func chao1(row []int64) float64 {
	obs := observed(row)

	var f1, f2 float64

	for _, count := range row {
		switch count {
		case 1:
			f1++
		case 2:
			f2++
		}
	}

	if f2 > 0 {
		return obs + f1*f1/(2*f2)
	}

	return obs + f1*(f1-1)/2
}

// ace is the abundance-based coverage estimator, splitting taxa into rare and
// abundant at a count of ten. When every rare taxon is a singleton the sample
// coverage estimate is zero and chao1 is used instead.
func ace(row []int64) float64 {
	var sAbund, sRare, f1, nRare, sumI float64

	for _, count := range row {
		if count == 0 {
			continue
		}

		if count > aceRareThreshold {
			sAbund++

			continue
		}

		sRare++
		nRare += float64(count)
		sumI += float64(count) * float64(count-1)

		if count == 1 {
			f1++
		}
	}

	if nRare == 0 {
		return sAbund
	}

	cAce := 1 - f1/nRare
	if cAce == 0 {
		return chao1(row)
	}

	var gamma float64

	if nRare > 1 {
		gamma = math.Max(sRare/cAce*sumI/(nRare*(nRare-1))-1, 0)
	}

	return sAbund + sRare/cAce + f1/cAce*gamma
}
