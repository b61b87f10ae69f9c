package report

import (
	"FlowSpectra/internal/core/model"
	"FlowSpectra/internal/engine/cleaner"
	"FlowSpectra/internal/engine/metadata"
	"FlowSpectra/internal/engine/tally"
	"cmp"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Summary holds the headline numbers of a run.
type Summary struct {
	Packets           int64   `json:"packets"`
	RawFlows          int     `json:"raw_flows"`
	FlowsAfterFilter  int     `json:"flows_after_filter"`
	ExtraFlows        int     `json:"extra_flows"`
	CleanFlows        int     `json:"clean_flows"`
	FlowPackets       int     `json:"flow_packets"`
	FlowBytes         int64   `json:"flow_bytes"`
	Durations         Stats   `json:"durations"`
	Sizes             Stats   `json:"sizes"`
	MinPacketsPerFlow int     `json:"min_packets_per_flow"`
	InactivitySeconds float64 `json:"inactivity_threshold_seconds"`
}

// Report is everything handed to the plotting collaborator for one capture.
type Report struct {
	RunID        uuid.UUID            `json:"run_id"`
	Input        string               `json:"input"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Distribution tally.Distribution   `json:"distribution"`
	Packets      []model.PacketSample `json:"packets"`
	Flows        []model.FlowMetadata `json:"flows"`
	Summary      Summary              `json:"summary"`
}

// Name returns the base name of the analyzed capture.
func (r *Report) Name() string {
	return filepath.Base(r.Input)
}

// Build assembles a report from a cleaned flow set. Packets and flow records
// are sorted so that the output does not depend on map iteration order.
func Build(input string, t *model.ProtocolTally, raw, cleaned model.FlowSet, res cleaner.Result, opts cleaner.Options) *Report {
	packets := metadata.AllPackets(cleaned)
	slices.SortFunc(packets, model.CompareSamples)

	flows := metadata.Extract(cleaned)
	slices.SortFunc(flows, func(a, b model.FlowMetadata) int {
		if c := cmp.Compare(a.DurationMicros, b.DurationMicros); c != 0 {
			return c
		}
		return cmp.Compare(a.TotalBytes, b.TotalBytes)
	})

	var flowBytes int64
	for _, f := range flows {
		flowBytes += f.TotalBytes
	}

	return &Report{
		RunID:        uuid.New(),
		Input:        input,
		GeneratedAt:  time.Now().UTC(),
		Distribution: tally.Buckets(t),
		Packets:      packets,
		Flows:        flows,
		Summary: Summary{
			Packets:           t.Count,
			RawFlows:          len(raw),
			FlowsAfterFilter:  res.FlowsAfterFilter,
			ExtraFlows:        res.ExtraFlows,
			CleanFlows:        len(cleaned),
			FlowPackets:       len(packets),
			FlowBytes:         flowBytes,
			Durations:         Describe(Durations(flows)),
			Sizes:             Describe(Sizes(flows)),
			MinPacketsPerFlow: opts.MinPackets,
			InactivitySeconds: opts.InactivityThreshold,
		},
	}
}

// Durations projects the duration column of flow records.
func Durations(flows []model.FlowMetadata) []int64 {
	out := make([]int64, len(flows))
	for i, f := range flows {
		out[i] = f.DurationMicros
	}
	return out
}

// Sizes projects the size column of flow records.
func Sizes(flows []model.FlowMetadata) []int64 {
	out := make([]int64, len(flows))
	for i, f := range flows {
		out[i] = f.TotalBytes
	}
	return out
}

// PacketSizes projects the length column of packet samples.
func PacketSizes(packets []model.PacketSample) []int64 {
	out := make([]int64, len(packets))
	for i, p := range packets {
		out[i] = int64(p.Length)
	}
	return out
}
