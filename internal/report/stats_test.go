package report

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
		want   Stats
	}{
		{"empty", nil, Stats{}},
		{"odd", []int64{5, 1, 3}, Stats{Count: 3, Min: 1, Max: 5, Mean: 3, Median: 3}},
		{"even", []int64{4, 1, 3, 2}, Stats{Count: 4, Min: 1, Max: 4, Mean: 2.5, Median: 2.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.values); got != tt.want {
				t.Errorf("Describe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCDF(t *testing.T) {
	got := CDF([]int64{3, 1, 4, 2})
	want := []Point{{1, 0.1}, {2, 0.3}, {3, 0.6}, {4, 1}}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("CDF mismatch (-want +got):\n%s", diff)
	}
}

func TestCDF_EdgeCases(t *testing.T) {
	if CDF(nil) != nil {
		t.Error("Expected nil CDF for no values")
	}
	got := CDF([]int64{0, 0})
	if got[0].Cumulative != 0.5 || got[1].Cumulative != 1 {
		t.Errorf("All-zero values should share equally, got %v", got)
	}
}

func TestHistogram(t *testing.T) {
	got := Histogram([]int64{0, 1, 2, 3, 4, 10}, 5)
	counts := make([]int, len(got))
	for i, b := range got {
		counts[i] = b.Count
	}
	if diff := cmp.Diff([]int{2, 2, 1, 0, 1}, counts); diff != "" {
		t.Errorf("Unexpected bin counts (-want +got):\n%s", diff)
	}
	if got[0].Lower != 0 || got[4].Upper != 10 {
		t.Errorf("Unexpected range [%v, %v]", got[0].Lower, got[4].Upper)
	}
}

func TestHistogram_SingleValue(t *testing.T) {
	got := Histogram([]int64{60, 60, 60}, 0)
	if len(got) != DefaultHistogramBins {
		t.Fatalf("Expected %d bins, got %d", DefaultHistogramBins, len(got))
	}
	total := 0
	for _, b := range got {
		total += b.Count
	}
	if total != 3 {
		t.Errorf("Expected 3 values binned, got %d", total)
	}
	if got[0].Lower != 59.5 || got[len(got)-1].Upper != 60.5 {
		t.Errorf("Unexpected widened range [%v, %v]", got[0].Lower, got[len(got)-1].Upper)
	}
}
