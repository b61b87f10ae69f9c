package report

import (
	"FlowSpectra/internal/core/model"
	"FlowSpectra/internal/engine/cleaner"
	"FlowSpectra/internal/engine/tally"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	tl := &model.ProtocolTally{
		IPMap:    map[uint8]int64{6: 8, 17: 1, 1: 1},
		NonIPMap: map[string]int64{"ARP": 2},
		Count:    12,
	}
	raw := model.FlowSet{
		"6-a:1-b:2":  {{Timestamp: 0, Length: 100}, {Timestamp: 10, Length: 200}, {Timestamp: 30, Length: 50}},
		"6-b:2-a:1":  {{Timestamp: 1, Length: 40}, {Timestamp: 2, Length: 40}},
		"17-a:3-b:4": {{Timestamp: 5, Length: 70}},
	}
	cleaned := model.FlowSet{
		"6-a:1-b:2-F0": raw["6-a:1-b:2"],
		"6-b:2-a:1-F0": raw["6-b:2-a:1"],
	}
	res := cleaner.Result{FlowsBefore: 3, FlowsAfterFilter: 2, FlowsAfterSplit: 2, FlowsAfter: 2}
	opts := cleaner.Options{MinPackets: 2, InactivityThreshold: 60}

	r := Build("/captures/univ1_pt1", tl, raw, cleaned, res, opts)

	if r.Distribution != (tally.Distribution{8, 1, 1, 2, 0, 0}) {
		t.Errorf("Unexpected distribution %v", r.Distribution)
	}
	wantFlows := []model.FlowMetadata{{DurationMicros: 1_000_000, TotalBytes: 80}, {DurationMicros: 30_000_000, TotalBytes: 350}}
	if diff := cmp.Diff(wantFlows, r.Flows); diff != "" {
		t.Errorf("Unexpected flows (-want +got):\n%s", diff)
	}
	if len(r.Packets) != 5 || r.Packets[0].Timestamp != 0 || r.Packets[4].Timestamp != 30 {
		t.Errorf("Packets should be sorted by time: %v", r.Packets)
	}
	if r.Summary.FlowBytes != 430 || r.Summary.CleanFlows != 2 || r.Summary.RawFlows != 3 || r.Summary.Packets != 12 {
		t.Errorf("Unexpected summary %+v", r.Summary)
	}
	if r.Name() != "univ1_pt1" {
		t.Errorf("Expected name univ1_pt1, got %s", r.Name())
	}
}

func TestBuild_Empty(t *testing.T) {
	r := Build("empty.pcap", model.NewProtocolTally(), model.FlowSet{}, model.FlowSet{}, cleaner.Result{}, cleaner.DefaultOptions())
	if len(r.Packets) != 0 || len(r.Flows) != 0 || r.Distribution.Total() != 0 {
		t.Errorf("Expected an empty report, got %+v", r)
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := decoded["run_id"]; !ok {
		t.Error("Report JSON should carry run_id")
	}
}

func TestReport_JSONPairs(t *testing.T) {
	r := &Report{
		Packets: []model.PacketSample{{Timestamp: 1.5, Length: 60}},
		Flows:   []model.FlowMetadata{{DurationMicros: 30000000, TotalBytes: 350}},
	}
	data, err := json.Marshal(struct {
		Packets []model.PacketSample `json:"packets"`
		Flows   []model.FlowMetadata `json:"flows"`
	}{r.Packets, r.Flows})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"packets":[[1.5,60]],"flows":[[30000000,350]]}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}
}
