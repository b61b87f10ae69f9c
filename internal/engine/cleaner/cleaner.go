package cleaner

import (
	"FlowSpectra/internal/core/model"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"
)

// Default thresholds.
const (
	DefaultMinPackets          = 5
	DefaultInactivityThreshold = 60.0 // seconds
)

// Options are the cleaning thresholds.
type Options struct {
	MinPackets          int     // flows with fewer samples are dropped
	InactivityThreshold float64 // seconds; a larger gap starts a new sub-flow
}

// DefaultOptions returns the default thresholds.
func DefaultOptions() Options {
	return Options{MinPackets: DefaultMinPackets, InactivityThreshold: DefaultInactivityThreshold}
}

// ConsistencyError reports that splitting lost, duplicated or miscounted samples.
// It indicates a logic defect and must abort the run.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "flow cleaning consistency violation: " + e.Reason
}

// Result describes the effect of a Clean run.
type Result struct {
	FlowsBefore      int
	FlowsAfterFilter int
	FlowsAfterSplit  int
	ExtraFlows       int
	FlowsAfter       int
}

// RemoveFlowsUnder returns the flows holding at least minPackets samples.
func RemoveFlowsUnder(flows model.FlowSet, minPackets int) model.FlowSet {
	kept := make(model.FlowSet, len(flows))
	for key, samples := range flows {
		if len(samples) >= minPackets {
			kept[key] = samples
		}
	}
	log.WithFields(log.Fields{
		"min_packets": minPackets,
		"before":      len(flows),
		"after":       len(kept),
	}).Debug("Removed flows under packet threshold")
	return kept
}

// SplitOnInactivity cuts every flow wherever two consecutive samples are more
// than seconds apart. Sub-flows are keyed "<key>-F0", "<key>-F1", ... in
// split order; a flow that is never cut becomes "<key>-F0". It returns the
// split set and the number of flows added by the cuts.
func SplitOnInactivity(flows model.FlowSet, seconds float64) (model.FlowSet, int) {
	split := make(model.FlowSet, len(flows))
	extra := 0
	for key, samples := range flows {
		if len(samples) == 0 {
			split[key.SubFlow(0)] = samples
			continue
		}

		subFlow := 0
		start := 0
		for i := 1; i < len(samples); i++ {
			if samples[i-1].Timestamp+seconds < samples[i].Timestamp {
				split[key.SubFlow(subFlow)] = samples[start:i:i]
				subFlow++
				start = i
			}
		}
		split[key.SubFlow(subFlow)] = samples[start:]
		extra += subFlow
	}
	log.WithFields(log.Fields{
		"inactivity_seconds": seconds,
		"before":             len(flows),
		"after":              len(split),
		"extra_flows":        extra,
	}).Debug("Split flows on inactivity")
	return split, extra
}

// Verify checks that split holds exactly the samples of original, and that
// the flow count grew by exactly extra.
func Verify(original, split model.FlowSet, extra int) error {
	if len(split) != len(original)+extra {
		return &ConsistencyError{Reason: fmt.Sprintf(
			"expected %d flows after split (%d + %d extra), got %d",
			len(original)+extra, len(original), extra, len(split))}
	}

	before, after := original.Flatten(), split.Flatten()
	if len(before) != len(after) {
		return &ConsistencyError{Reason: fmt.Sprintf(
			"sample count changed from %d to %d", len(before), len(after))}
	}
	slices.SortFunc(before, model.CompareSamples)
	slices.SortFunc(after, model.CompareSamples)
	for i := range before {
		if before[i] != after[i] {
			return &ConsistencyError{Reason: fmt.Sprintf(
				"sample multisets differ at position %d: %+v != %+v", i, before[i], after[i])}
		}
	}
	return nil
}

// Clean filters small flows, splits the rest on inactivity, verifies the
// split and filters again. The input set is not modified.
//
// Every surviving flow is renamed to a sub-flow key, so cleaning an already
// clean set keeps its sample groups but appends another "-F<n>" suffix to
// each key. Use IsClean to check a set rather than cleaning it again.
func Clean(flows model.FlowSet, opts Options) (model.FlowSet, Result, error) {
	res := Result{FlowsBefore: len(flows)}
	log.WithField("flows", len(flows)).Info("Started cleaning flows")

	filtered := RemoveFlowsUnder(flows, opts.MinPackets)
	res.FlowsAfterFilter = len(filtered)

	split, extra := SplitOnInactivity(filtered, opts.InactivityThreshold)
	res.FlowsAfterSplit = len(split)
	res.ExtraFlows = extra

	if err := Verify(filtered, split, extra); err != nil {
		return nil, res, err
	}

	cleaned := RemoveFlowsUnder(split, opts.MinPackets)
	res.FlowsAfter = len(cleaned)

	log.WithFields(log.Fields{
		"before":       res.FlowsBefore,
		"after_filter": res.FlowsAfterFilter,
		"after_split":  res.FlowsAfterSplit,
		"extra_flows":  res.ExtraFlows,
		"after":        res.FlowsAfter,
	}).Info("Flow data cleaned")
	return cleaned, res, nil
}

// IsClean reports whether no flow is below the packet threshold and no flow
// has a gap above the inactivity threshold.
func IsClean(flows model.FlowSet, opts Options) bool {
	for _, samples := range flows {
		if len(samples) < opts.MinPackets {
			return false
		}
		for i := 1; i < len(samples); i++ {
			if samples[i-1].Timestamp+opts.InactivityThreshold < samples[i].Timestamp {
				return false
			}
		}
	}
	return true
}
