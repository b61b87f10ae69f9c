package metadata

import (
	"FlowSpectra/internal/core/model"
	"slices"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		samples []model.PacketSample
		want    model.FlowMetadata
	}{
		{
			name:    "three samples",
			samples: []model.PacketSample{{Timestamp: 0, Length: 100}, {Timestamp: 10, Length: 200}, {Timestamp: 30, Length: 50}},
			want:    model.FlowMetadata{DurationMicros: 30_000_000, TotalBytes: 350},
		},
		{
			name:    "single sample",
			samples: []model.PacketSample{{Timestamp: 1500000000.5, Length: 60}},
			want:    model.FlowMetadata{DurationMicros: 0, TotalBytes: 60},
		},
		{
			name:    "empty",
			samples: nil,
			want:    model.FlowMetadata{},
		},
		{
			name: "epoch timestamps with microsecond gap",
			samples: []model.PacketSample{
				{Timestamp: 1500000000.000001, Length: 1},
				{Timestamp: 1500000000.100002, Length: 1},
			},
			want: model.FlowMetadata{DurationMicros: 100001, TotalBytes: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.samples); got != tt.want {
				t.Errorf("Describe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtract_OneRecordPerFlow(t *testing.T) {
	flows := model.FlowSet{
		"a-F0": {{Timestamp: 0, Length: 100}, {Timestamp: 10, Length: 200}, {Timestamp: 30, Length: 50}},
		"b-F0": {{Timestamp: 5, Length: 10}},
		"c-F0": {{Timestamp: 1, Length: 1}, {Timestamp: 2, Length: 1}},
	}

	got := Extract(flows)
	if len(got) != len(flows) {
		t.Fatalf("Expected %d records, got %d", len(flows), len(got))
	}

	sizes := make([]int64, 0, len(got))
	for _, md := range got {
		sizes = append(sizes, md.TotalBytes)
	}
	slices.Sort(sizes)
	if !slices.Equal(sizes, []int64{2, 10, 350}) {
		t.Errorf("Unexpected sizes %v", sizes)
	}
}

func TestAllPackets(t *testing.T) {
	flows := model.FlowSet{
		"a": {{Timestamp: 1, Length: 1}, {Timestamp: 2, Length: 2}},
		"b": {{Timestamp: 3, Length: 3}},
	}
	got := AllPackets(flows)
	slices.SortFunc(got, model.CompareSamples)
	want := []model.PacketSample{{Timestamp: 1, Length: 1}, {Timestamp: 2, Length: 2}, {Timestamp: 3, Length: 3}}
	if !slices.Equal(got, want) {
		t.Errorf("AllPackets() = %v, want %v", got, want)
	}
	if len(AllPackets(model.FlowSet{})) != 0 {
		t.Error("Expected no packets from an empty set")
	}
}
