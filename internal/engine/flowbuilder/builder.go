package flowbuilder

import (
	"FlowSpectra/internal/core/model"

	log "github.com/sirupsen/logrus"
)

// Stats counts what a builder did with the packets it was given.
type Stats struct {
	Packets   int64 // every packet offered
	Transport int64 // TCP/UDP packets recorded in a flow
	Skipped   int64 // TCP/UDP packets with unreadable transport fields
	Flows     int   // distinct flow keys
}

// FlowBuilder groups packets into 5-tuple flows.
type FlowBuilder interface {
	// Add offers one packet. Packets that are not TCP/UDP are ignored and
	// DecodeSkips are counted, never fatal.
	Add(p *model.PacketInfo)
	// Finish returns the complete, unfiltered FlowSet. The builder must not
	// be used afterwards.
	Finish() (model.FlowSet, Stats)
}

// New returns a single-goroutine builder for numWorkers <= 1 and a sharded
// one otherwise.
func New(numWorkers, sizeOfChannel int) FlowBuilder {
	if numWorkers <= 1 {
		return NewBuilder()
	}
	return NewShardedBuilder(numWorkers, sizeOfChannel)
}

// Builder is the reference single-threaded flow builder.
type Builder struct {
	flows model.FlowSet
	stats Stats
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{flows: make(model.FlowSet)}
}

// Add implements FlowBuilder.
func (b *Builder) Add(p *model.PacketInfo) {
	b.stats.Packets++
	key, ok := b.admit(p)
	if !ok {
		return
	}
	b.flows.Append(key, model.PacketSample{Timestamp: p.Timestamp, Length: p.Length})
}

// admit decides whether p belongs in a flow and returns its key.
func (b *Builder) admit(p *model.PacketInfo) (model.FlowKey, bool) {
	if !p.IsTransport() {
		return "", false
	}
	if p.Skip != nil {
		b.stats.Skipped++
		log.WithFields(log.Fields{
			"protocol":  p.Protocol,
			"timestamp": p.Timestamp,
			"reason":    p.Skip.Reason,
		}).Debug("Skipping packet with unreadable transport fields")
		return "", false
	}
	b.stats.Transport++
	return model.NewFlowKey(p), true
}

// Finish implements FlowBuilder.
func (b *Builder) Finish() (model.FlowSet, Stats) {
	b.stats.Flows = len(b.flows)
	return b.flows, b.stats
}
