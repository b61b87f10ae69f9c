package cleaner

import (
	"FlowSpectra/internal/core/model"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func samplesAt(ts ...float64) []model.PacketSample {
	out := make([]model.PacketSample, len(ts))
	for i, t := range ts {
		out[i] = model.PacketSample{Timestamp: t, Length: uint32(100 + i)}
	}
	return out
}

func TestSplitOnInactivity_Example(t *testing.T) {
	flows := model.FlowSet{"6-a:1-b:2": samplesAt(0, 10, 20, 90, 95)}

	split, extra := SplitOnInactivity(flows, 60)

	want := model.FlowSet{
		"6-a:1-b:2-F0": {{Timestamp: 0, Length: 100}, {Timestamp: 10, Length: 101}, {Timestamp: 20, Length: 102}},
		"6-a:1-b:2-F1": {{Timestamp: 90, Length: 103}, {Timestamp: 95, Length: 104}},
	}
	if diff := cmp.Diff(want, split); diff != "" {
		t.Errorf("Unexpected split (-want +got):\n%s", diff)
	}
	if extra != 1 {
		t.Errorf("Expected 1 extra flow, got %d", extra)
	}
}

func TestSplitOnInactivity_GapEqualToThresholdDoesNotSplit(t *testing.T) {
	flows := model.FlowSet{"k": samplesAt(0, 60, 120)}
	split, extra := SplitOnInactivity(flows, 60)
	if extra != 0 || len(split) != 1 {
		t.Fatalf("Expected no split, got %d flows and %d extra", len(split), extra)
	}
	if _, ok := split["k-F0"]; !ok {
		t.Errorf("Expected the single sub-flow to be keyed k-F0, got %v", split.Keys())
	}
}

func TestSplitOnInactivity_SubFlowIndexesFollowSplitOrder(t *testing.T) {
	flows := model.FlowSet{"k": samplesAt(0, 100, 200, 201, 400)}
	split, extra := SplitOnInactivity(flows, 60)

	if extra != 3 {
		t.Fatalf("Expected 3 extra flows, got %d", extra)
	}
	want := map[model.FlowKey]int{"k-F0": 1, "k-F1": 1, "k-F2": 2, "k-F3": 1}
	for key, n := range want {
		if len(split[key]) != n {
			t.Errorf("%s: expected %d samples, got %d", key, n, len(split[key]))
		}
	}
	if split["k-F2"][0].Timestamp != 200 {
		t.Errorf("k-F2 should start at t=200, got %v", split["k-F2"][0].Timestamp)
	}
}

func TestRemoveFlowsUnder_Example(t *testing.T) {
	flows := model.FlowSet{
		"four": samplesAt(1, 2, 3, 4),
		"five": samplesAt(1, 2, 3, 4, 5),
	}
	got := RemoveFlowsUnder(flows, 5)
	if _, ok := got["four"]; ok {
		t.Error("Flow with 4 samples should be dropped")
	}
	if _, ok := got["five"]; !ok {
		t.Error("Flow with exactly 5 samples should be kept")
	}
}

func TestClean_RefiltersSplitOutput(t *testing.T) {
	flows := model.FlowSet{
		// 6 samples, split into 5 + 1; the single trailing sample is dropped.
		"long": samplesAt(0, 1, 2, 3, 4, 500),
		// 3 samples, dropped before splitting.
		"short": samplesAt(0, 1, 2),
	}

	cleaned, res, err := Clean(flows, DefaultOptions())
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if len(cleaned) != 1 || len(cleaned["long-F0"]) != 5 {
		t.Fatalf("Expected only long-F0 with 5 samples, got %v", cleaned)
	}
	want := Result{FlowsBefore: 2, FlowsAfterFilter: 1, FlowsAfterSplit: 2, ExtraFlows: 1, FlowsAfter: 1}
	if res != want {
		t.Errorf("Result = %+v, want %+v", res, want)
	}
	if len(flows["long"]) != 6 {
		t.Error("Clean must not modify its input")
	}
}

func TestClean_Empty(t *testing.T) {
	cleaned, res, err := Clean(model.FlowSet{}, DefaultOptions())
	if err != nil {
		t.Fatalf("Clean failed on empty input: %v", err)
	}
	if len(cleaned) != 0 || res != (Result{}) {
		t.Errorf("Expected empty output, got %v %+v", cleaned, res)
	}
}

func randomFlows(r *rand.Rand, n int) model.FlowSet {
	flows := make(model.FlowSet)
	for i := 0; i < n; i++ {
		key := model.FlowKey("6-10.0.0.1:" + string(rune('a'+i%26)) + string(rune('a'+i/26)))
		ts := float64(r.IntN(1000))
		count := 1 + r.IntN(30)
		for j := 0; j < count; j++ {
			// Mostly short gaps, sometimes long idle periods.
			if r.IntN(8) == 0 {
				ts += 60 + float64(r.IntN(300))
			} else {
				ts += float64(r.IntN(20))
			}
			flows.Append(key, model.PacketSample{Timestamp: ts, Length: uint32(40 + r.IntN(1460))})
		}
	}
	return flows
}

func TestSplitOnInactivity_PreservesSamplesAndCount(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 20; round++ {
		flows := randomFlows(r, 100)

		split, extra := SplitOnInactivity(flows, 60)

		if err := Verify(flows, split, extra); err != nil {
			t.Fatalf("Round %d: %v", round, err)
		}
		if len(split) != len(flows)+extra {
			t.Fatalf("Round %d: split count law broken", round)
		}
		// Order within each sub-flow follows the parent.
		for key, samples := range split {
			if !slices.IsSortedFunc(samples, func(a, b model.PacketSample) int {
				if a.Timestamp < b.Timestamp {
					return -1
				}
				if a.Timestamp > b.Timestamp {
					return 1
				}
				return 0
			}) {
				t.Fatalf("Round %d: %s lost its order", round, key)
			}
		}
	}
}

func TestClean_Idempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	opts := DefaultOptions()
	flows := randomFlows(r, 300)

	once, _, err := Clean(flows, opts)
	if err != nil {
		t.Fatalf("First Clean failed: %v", err)
	}
	if !IsClean(once, opts) {
		t.Fatal("Cleaned output should satisfy both thresholds")
	}

	twice, res, err := Clean(once, opts)
	if err != nil {
		t.Fatalf("Second Clean failed: %v", err)
	}
	if res.ExtraFlows != 0 || res.FlowsAfter != len(once) {
		t.Errorf("Second Clean changed the flow set: %+v", res)
	}
	// Only the sub-flow suffix is added; the sample groups are the same.
	if !IsClean(twice, opts) {
		t.Error("Re-cleaned output should still satisfy both thresholds")
	}
	for key, samples := range once {
		if _, ok := twice[key]; ok {
			t.Errorf("Expected %s to be renamed on re-clean", key)
		}
		if diff := cmp.Diff(samples, twice[key.SubFlow(0)]); diff != "" {
			t.Errorf("%s changed on re-clean (-want +got):\n%s", key, diff)
		}
	}
}

func TestVerify_DetectsViolations(t *testing.T) {
	original := model.FlowSet{"k": samplesAt(0, 100)}

	tests := []struct {
		name  string
		split model.FlowSet
		extra int
	}{
		{"dropped sample", model.FlowSet{"k-F0": samplesAt(0), "k-F1": {}}, 1},
		{"duplicated sample", model.FlowSet{"k-F0": samplesAt(0, 0), "k-F1": {{Timestamp: 100, Length: 101}}}, 1},
		{"changed length", model.FlowSet{"k-F0": {{Timestamp: 0, Length: 100}}, "k-F1": {{Timestamp: 100, Length: 999}}}, 1},
		{"wrong extra count", model.FlowSet{"k-F0": {{Timestamp: 0, Length: 100}}, "k-F1": {{Timestamp: 100, Length: 101}}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(original, tt.split, tt.extra)
			var ce *ConsistencyError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected a ConsistencyError, got %v", err)
			}
		})
	}
}

func TestIsClean(t *testing.T) {
	opts := Options{MinPackets: 2, InactivityThreshold: 10}
	if !IsClean(model.FlowSet{"a": samplesAt(0, 10)}, opts) {
		t.Error("Gap equal to the threshold is clean")
	}
	if IsClean(model.FlowSet{"a": samplesAt(0, 11)}, opts) {
		t.Error("Gap above the threshold is not clean")
	}
	if IsClean(model.FlowSet{"a": samplesAt(0)}, opts) {
		t.Error("Flow under the packet threshold is not clean")
	}
}
