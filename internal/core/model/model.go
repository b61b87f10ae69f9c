package model

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// IP protocol numbers that take part in flow building.
const (
	ProtocolICMP uint8 = 1
	ProtocolTCP  uint8 = 6
	ProtocolUDP  uint8 = 17
)

// FrameTypeARP is the non-IP frame type name reported for ARP frames.
const FrameTypeARP = "ARP"

// DecodeSkip marks a packet whose transport fields could not be read.
type DecodeSkip struct {
	Reason string
}

func (s DecodeSkip) String() string {
	return s.Reason
}

// PacketInfo holds the decoded header fields of a single captured record.
// Ports are only meaningful for TCP/UDP, Protocol only when IsIP is set and
// FrameType only when it is not.
type PacketInfo struct {
	Timestamp float64 // seconds since epoch
	IsIP      bool
	Protocol  uint8
	SrcAddr   string
	DstAddr   string
	SrcPort   uint16
	DstPort   uint16
	Length    uint32
	FrameType string
	Skip      *DecodeSkip
}

// IsTransport reports whether the packet is TCP or UDP.
func (p *PacketInfo) IsTransport() bool {
	return p.IsIP && (p.Protocol == ProtocolTCP || p.Protocol == ProtocolUDP)
}

// FlowKey is the directional 5-tuple identity of a flow, e.g.
// "6-10.0.0.1:1618-10.0.0.2:80". After an inactivity split it also carries
// a sub-flow suffix ("-F0", "-F1", ...).
type FlowKey string

// NewFlowKey builds the key for a TCP/UDP packet.
func NewFlowKey(p *PacketInfo) FlowKey {
	return FlowKey(strconv.Itoa(int(p.Protocol)) + "-" +
		p.SrcAddr + ":" + strconv.Itoa(int(p.SrcPort)) + "-" +
		p.DstAddr + ":" + strconv.Itoa(int(p.DstPort)))
}

// SubFlow returns the key of the index-th sub-flow of k.
func (k FlowKey) SubFlow(index int) FlowKey {
	return k + FlowKey("-F"+strconv.Itoa(index))
}

// PacketSample is one packet recorded in a flow.
type PacketSample struct {
	Timestamp float64
	Length    uint32
}

// MarshalJSON encodes the sample as a [timestamp, length] pair.
func (s PacketSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{s.Timestamp, float64(s.Length)})
}

// UnmarshalJSON decodes a [timestamp, length] pair.
func (s *PacketSample) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("packet sample must have 2 elements, got %d", len(pair))
	}
	if pair[1] < 0 || pair[1] > float64(^uint32(0)) {
		return fmt.Errorf("packet length %v out of range", pair[1])
	}
	s.Timestamp = pair[0]
	s.Length = uint32(pair[1])
	return nil
}

// CompareSamples orders samples by timestamp, then length.
func CompareSamples(a, b PacketSample) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.Length, b.Length)
}

// FlowSet maps flow keys to their samples in capture order. Iteration order
// carries no meaning; everything derived from a FlowSet is order independent.
type FlowSet map[FlowKey][]PacketSample

// Append records a sample for key, creating the flow on first use.
func (fs FlowSet) Append(key FlowKey, sample PacketSample) {
	fs[key] = append(fs[key], sample)
}

// SampleCount returns the number of samples across all flows.
func (fs FlowSet) SampleCount() int {
	n := 0
	for _, samples := range fs {
		n += len(samples)
	}
	return n
}

// Keys returns the flow keys in lexical order.
func (fs FlowSet) Keys() []FlowKey {
	keys := make([]FlowKey, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Flatten returns every sample of every flow, in arbitrary flow order.
func (fs FlowSet) Flatten() []PacketSample {
	out := make([]PacketSample, 0, fs.SampleCount())
	for _, samples := range fs {
		out = append(out, samples...)
	}
	return out
}

// FlowMetadata summarizes a cleaned flow.
type FlowMetadata struct {
	DurationMicros int64
	TotalBytes     int64
}

// MarshalJSON encodes the record as a [durationMicros, totalBytes] pair.
func (m FlowMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{m.DurationMicros, m.TotalBytes})
}

// UnmarshalJSON decodes a [durationMicros, totalBytes] pair.
func (m *FlowMetadata) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("flow metadata must have 2 elements, got %d", len(pair))
	}
	m.DurationMicros, m.TotalBytes = pair[0], pair[1]
	return nil
}

// ProtocolTally counts packets per IP protocol number and per non-IP frame type.
type ProtocolTally struct {
	IPMap    map[uint8]int64  `json:"ipMap"`
	NonIPMap map[string]int64 `json:"nonIpMap"`
	Count    int64            `json:"count"`
}

// NewProtocolTally returns an empty tally.
func NewProtocolTally() *ProtocolTally {
	return &ProtocolTally{
		IPMap:    make(map[uint8]int64),
		NonIPMap: make(map[string]int64),
	}
}

// Validate checks that the per-protocol counts add up to Count.
func (t *ProtocolTally) Validate() error {
	var sum int64
	for _, c := range t.IPMap {
		if c < 0 {
			return fmt.Errorf("negative ip protocol count %d", c)
		}
		sum += c
	}
	for _, c := range t.NonIPMap {
		if c < 0 {
			return fmt.Errorf("negative frame type count %d", c)
		}
		sum += c
	}
	if sum != t.Count {
		return fmt.Errorf("protocol counts sum to %d, expected %d", sum, t.Count)
	}
	return nil
}
