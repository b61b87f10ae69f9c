package main

import (
	"FlowSpectra/internal/cache"
	"FlowSpectra/internal/core/model"
	"FlowSpectra/internal/engine/tally"
	"FlowSpectra/internal/pipeline"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Prints the content of a persisted -distribution or -flows artifact.
func main() {
	limit := flag.Int("n", 10, "Number of flows to print")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: go run ./scripts/cachedump [-n count] <artifact.json|artifact.gob>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	ext := filepath.Ext(path)
	codec, err := cache.CodecByName(strings.TrimPrefix(ext, "."))
	if err != nil {
		log.Fatalf("Unsupported artifact: %v", err)
	}
	c := cache.New(filepath.Dir(path), codec)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	switch {
	case strings.HasSuffix(name, pipeline.DistributionSuffix):
		t, err := cache.Load[*model.ProtocolTally](c, name)
		if err != nil {
			log.Fatalf("Failed to load artifact: %v", err)
		}
		fmt.Printf("Total packets: %d\n", t.Count)
		d := tally.Buckets(t)
		for i, label := range tally.Labels {
			fmt.Printf("  %-16s %d\n", label, d[i])
		}
	case strings.HasSuffix(name, pipeline.FlowsSuffix):
		flows, err := cache.Load[model.FlowSet](c, name)
		if err != nil {
			log.Fatalf("Failed to load artifact: %v", err)
		}
		fmt.Printf("Flows: %d, samples: %d\n", len(flows), flows.SampleCount())
		for i, key := range flows.Keys() {
			if i >= *limit {
				break
			}
			samples := flows[key]
			fmt.Printf("  %s packets=%d first=%.6f last=%.6f\n",
				key, len(samples), samples[0].Timestamp, samples[len(samples)-1].Timestamp)
		}
	default:
		log.Fatalf("Artifact name must end in %s or %s", pipeline.DistributionSuffix, pipeline.FlowsSuffix)
	}
}
