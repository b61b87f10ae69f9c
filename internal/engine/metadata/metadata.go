package metadata

import (
	"FlowSpectra/internal/core/model"
	"math"

	log "github.com/sirupsen/logrus"
)

const microsPerSecond = 1000 * 1000

// Extract reduces every flow to its duration and total size, one record per
// flow, in arbitrary order.
func Extract(flows model.FlowSet) []model.FlowMetadata {
	out := make([]model.FlowMetadata, 0, len(flows))
	for _, samples := range flows {
		out = append(out, Describe(samples))
	}
	log.WithField("flows", len(out)).Debug("Generated flow metadata")
	return out
}

// Describe computes the metadata of one flow. The duration is rounded to the
// nearest microsecond, which is the resolution of the capture clock; a flow
// with fewer than two samples lasts 0.
func Describe(samples []model.PacketSample) model.FlowMetadata {
	var md model.FlowMetadata
	for _, s := range samples {
		md.TotalBytes += int64(s.Length)
	}
	if len(samples) > 1 {
		elapsed := samples[len(samples)-1].Timestamp - samples[0].Timestamp
		md.DurationMicros = int64(math.Round(elapsed * microsPerSecond))
	}
	return md
}

// AllPackets returns every sample of every flow, for size distributions.
func AllPackets(flows model.FlowSet) []model.PacketSample {
	return flows.Flatten()
}
