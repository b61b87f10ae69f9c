package main

import (
	"FlowSpectra/internal/pcapgen"
	"flag"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"
)

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	flowCount := flag.Int("flows", 200, "Number of TCP/UDP flows to generate")
	maxPackets := flag.Int("max-packets", 40, "Maximum packets per flow")
	gapRatio := flag.Float64("gap-ratio", 0.2, "Share of flows with an idle gap")
	gap := flag.Duration("gap", 2*time.Minute, "Length of the idle gap")
	arpCount := flag.Int("arp", 20, "Number of ARP requests")
	icmpCount := flag.Int("icmp", 20, "Number of ICMP echo requests")
	seed := flag.Uint64("seed", 1, "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	var plans []pcapgen.FlowPlan

	for i := 0; i < *flowCount; i++ {
		proto := uint8(6)
		if rng.IntN(3) == 0 {
			proto = 17
		}
		plan := pcapgen.FlowPlan{
			Spec: pcapgen.PacketSpec{
				Protocol:    proto,
				SrcIP:       randomIP(rng),
				DstIP:       randomIP(rng),
				SrcPort:     uint16(rng.IntN(65535-1024) + 1024),
				DstPort:     uint16(rng.IntN(1024) + 1),
				PayloadSize: rng.IntN(1400) + 50,
			},
			Packets:  rng.IntN(*maxPackets) + 1,
			Start:    time.Duration(rng.IntN(300)) * time.Second,
			Interval: time.Duration(rng.IntN(5000)+1) * time.Millisecond,
		}
		if rng.Float64() < *gapRatio && plan.Packets > 1 {
			plan.GapAfter = rng.IntN(plan.Packets-1) + 1
			plan.Gap = *gap
		}
		plans = append(plans, plan)
	}
	for i := 0; i < *arpCount; i++ {
		plans = append(plans, pcapgen.FlowPlan{
			Spec:    pcapgen.PacketSpec{SrcIP: randomIP(rng), DstIP: randomIP(rng)},
			ARP:     true,
			Packets: 1,
			Start:   time.Duration(rng.IntN(300)) * time.Second,
		})
	}
	for i := 0; i < *icmpCount; i++ {
		plans = append(plans, pcapgen.FlowPlan{
			Spec:    pcapgen.PacketSpec{Protocol: 1, SrcIP: randomIP(rng), DstIP: randomIP(rng), PayloadSize: 56},
			Packets: 1,
			Start:   time.Duration(rng.IntN(300)) * time.Second,
		})
	}

	frames, err := pcapgen.Frames(time.Unix(1500000000, 0), plans)
	if err != nil {
		log.Fatalf("Failed to build frames: %v", err)
	}
	if err := pcapgen.WriteFile(*outputFile, frames); err != nil {
		log.Fatalf("Failed to write capture: %v", err)
	}
	log.WithFields(log.Fields{
		"file":   *outputFile,
		"frames": len(frames),
		"flows":  *flowCount,
	}).Info("Successfully generated capture")
}

func randomIP(rng *rand.Rand) string {
	return fmt.Sprintf("10.%d.%d.%d", rng.IntN(256), rng.IntN(256), rng.IntN(254)+1)
}
