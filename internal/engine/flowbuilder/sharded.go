package flowbuilder

import (
	"FlowSpectra/internal/core/model"
	"hash/fnv"
	"slices"
	"sync"
)

type keyedSample struct {
	key    model.FlowKey
	sample model.PacketSample
}

// ShardedBuilder spreads flow building over a worker pool. Packets are routed
// by the fnv32a hash of their flow key, so each key is owned by exactly one
// worker and its samples keep capture order.
type ShardedBuilder struct {
	router   *Builder // only used for admission and counting
	inputs   []chan keyedSample
	shards   []model.FlowSet
	wg       sync.WaitGroup
	numShard uint32
}

// NewShardedBuilder starts numWorkers shard workers.
func NewShardedBuilder(numWorkers, sizeOfChannel int) *ShardedBuilder {
	sb := &ShardedBuilder{
		router:   NewBuilder(),
		inputs:   make([]chan keyedSample, numWorkers),
		shards:   make([]model.FlowSet, numWorkers),
		numShard: uint32(numWorkers),
	}
	sb.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		sb.inputs[i] = make(chan keyedSample, sizeOfChannel)
		sb.shards[i] = make(model.FlowSet)
		go sb.worker(i)
	}
	return sb
}

func (sb *ShardedBuilder) worker(i int) {
	defer sb.wg.Done()
	flows := sb.shards[i]
	for ks := range sb.inputs[i] {
		flows.Append(ks.key, ks.sample)
	}
}

// getShard returns the worker index owning key.
func (sb *ShardedBuilder) getShard(key model.FlowKey) uint32 {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return hasher.Sum32() % sb.numShard
}

// Add implements FlowBuilder.
func (sb *ShardedBuilder) Add(p *model.PacketInfo) {
	sb.router.stats.Packets++
	key, ok := sb.router.admit(p)
	if !ok {
		return
	}
	sb.inputs[sb.getShard(key)] <- keyedSample{
		key:    key,
		sample: model.PacketSample{Timestamp: p.Timestamp, Length: p.Length},
	}
}

// Finish implements FlowBuilder. It stops the workers and merges their shards.
func (sb *ShardedBuilder) Finish() (model.FlowSet, Stats) {
	for _, in := range sb.inputs {
		close(in)
	}
	sb.wg.Wait()

	flows := Merge(sb.shards...)
	stats := sb.router.stats
	stats.Flows = len(flows)
	return flows, stats
}

// Merge unions FlowSets built from separate parts of a capture. Sample lists
// of a key present in several sets are concatenated and re-sorted by
// timestamp, since their relative order is otherwise unknown. Keys present in
// one set keep their order untouched.
func Merge(sets ...model.FlowSet) model.FlowSet {
	if len(sets) == 1 {
		return sets[0]
	}
	merged := make(model.FlowSet)
	seen := make(map[model.FlowKey]int)
	for _, set := range sets {
		for key, samples := range set {
			merged[key] = append(merged[key], samples...)
			seen[key]++
		}
	}
	for key, n := range seen {
		if n > 1 {
			slices.SortStableFunc(merged[key], func(a, b model.PacketSample) int {
				switch {
				case a.Timestamp < b.Timestamp:
					return -1
				case a.Timestamp > b.Timestamp:
					return 1
				}
				return 0
			})
		}
	}
	return merged
}
