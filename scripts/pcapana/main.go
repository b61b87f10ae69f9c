package main

import (
	"FlowSpectra/internal/core/model"
	"FlowSpectra/pkg/pcap"
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Prints the decoded view of the first packets of a capture, the way the
// flow builder and protocol tally see them.
func main() {
	limit := flag.Int("n", 20, "Number of packets to print; 0 for all")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: go run ./scripts/pcapana [-n count] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	reader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	packets := make(chan *model.PacketInfo, 100)
	go func() {
		if err := reader.ReadPackets(ctx, packets); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Read failed")
		}
	}()

	i := 0
	for info := range packets {
		i++
		switch {
		case !info.IsIP:
			fmt.Printf("[%.6f] frame=%s len=%d\n", info.Timestamp, info.FrameType, info.Length)
		case info.Skip != nil:
			fmt.Printf("[%.6f] %s -> %s proto=%d len=%d skipped: %s\n",
				info.Timestamp, info.SrcAddr, info.DstAddr, info.Protocol, info.Length, info.Skip)
		case info.IsTransport():
			fmt.Printf("[%.6f] %s len=%d\n", info.Timestamp, model.NewFlowKey(info), info.Length)
		default:
			fmt.Printf("[%.6f] %s -> %s proto=%d len=%d\n",
				info.Timestamp, info.SrcAddr, info.DstAddr, info.Protocol, info.Length)
		}
		if *limit > 0 && i >= *limit {
			cancel()
			break
		}
	}
	fmt.Printf("Printed %d packets.\n", i)
}
