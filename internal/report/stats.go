package report

import (
	"slices"
)

// DefaultHistogramBins matches the packet size histogram of the plots.
const DefaultHistogramBins = 20

// Stats is a min/max/mean/median description of a column.
type Stats struct {
	Count  int     `json:"count"`
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Describe summarizes values. An empty input yields the zero Stats.
func Describe(values []int64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}
	n := len(sorted)
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
	}
	return Stats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}
}

// Point is one step of a CDF.
type Point struct {
	Value      int64   `json:"value"`
	Cumulative float64 `json:"cumulative"`
}

// CDF sorts values and pairs each with the cumulative share of the total
// carried by the values up to and including it. The last point is pinned to
// 1. When every value is zero each one carries an equal share.
func CDF(values []int64) []Point {
	if len(values) == 0 {
		return nil
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var total float64
	for _, v := range sorted {
		total += float64(v)
	}

	out := make([]Point, len(sorted))
	var acc float64
	for i, v := range sorted {
		if total > 0 {
			acc += float64(v) / total
		} else {
			acc += 1 / float64(len(sorted))
		}
		out[i] = Point{Value: v, Cumulative: acc}
	}
	out[len(out)-1].Cumulative = 1
	return out
}

// Bin is one histogram bucket covering [Lower, Upper); the last bin also
// includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram splits the range of values into bins equal-width buckets. A
// degenerate range is widened to [v-0.5, v+0.5].
func Histogram(values []int64, bins int) []Bin {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	if len(values) == 0 {
		return nil
	}

	lo, hi := float64(slices.Min(values)), float64(slices.Max(values))
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		i := int((float64(v) - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		out[i].Count++
	}
	return out
}
