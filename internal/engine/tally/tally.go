package tally

import (
	"FlowSpectra/internal/core/model"
)

// Bucket indexes of a Distribution.
const (
	BucketTCP = iota
	BucketUDP
	BucketICMP
	BucketARP
	BucketIPOther
	BucketNonIPOther
	numBuckets
)

// Labels names the buckets of a Distribution, in order.
var Labels = [numBuckets]string{"TCP", "UDP", "ICMP", "ARP", "IP (Other)", "non-IP (Other)"}

const unknownFrameType = "Unknown"

// Distribution is the six-bucket reporting view of a ProtocolTally:
// [tcp, udp, icmp, arp, ipOther, nonIpOther].
type Distribution [numBuckets]int64

// Total returns the sum of all buckets.
func (d Distribution) Total() int64 {
	var sum int64
	for _, c := range d {
		sum += c
	}
	return sum
}

// Add counts one packet into t.
func Add(t *model.ProtocolTally, p *model.PacketInfo) {
	if t.IPMap == nil {
		t.IPMap = make(map[uint8]int64)
	}
	if t.NonIPMap == nil {
		t.NonIPMap = make(map[string]int64)
	}

	t.Count++
	if p.IsIP {
		t.IPMap[p.Protocol]++
		return
	}
	frameType := p.FrameType
	if frameType == "" {
		frameType = unknownFrameType
	}
	t.NonIPMap[frameType]++
}

// Buckets folds a tally into its six reporting buckets. Absent protocols count as zero.
func Buckets(t *model.ProtocolTally) Distribution {
	var d Distribution
	for proto, c := range t.IPMap {
		switch proto {
		case model.ProtocolTCP:
			d[BucketTCP] += c
		case model.ProtocolUDP:
			d[BucketUDP] += c
		case model.ProtocolICMP:
			d[BucketICMP] += c
		default:
			d[BucketIPOther] += c
		}
	}
	for frameType, c := range t.NonIPMap {
		if frameType == model.FrameTypeARP {
			d[BucketARP] += c
		} else {
			d[BucketNonIPOther] += c
		}
	}
	return d
}
