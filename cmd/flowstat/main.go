package main

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/factory"
	"FlowSpectra/internal/logging"
	"FlowSpectra/internal/pipeline"
	_ "FlowSpectra/internal/writer" // Registers the report writers
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	minPackets := flag.Int("min-packets", 0, "minimum packets per flow (overrides config)")
	inactivity := flag.Float64("inactivity", 0, "inactivity threshold in seconds (overrides config)")
	workers := flag.Int("workers", 0, "flow builder workers (overrides config)")
	noCache := flag.Bool("no-cache", false, "always rescan the capture")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <path_to_pcap_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 1. Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *minPackets > 0 {
		cfg.Analyzer.MinPacketsPerFlow = *minPackets
	}
	if *inactivity > 0 {
		cfg.Analyzer.InactivityThresholdSeconds = *inactivity
	}
	if *workers > 0 {
		cfg.Analyzer.NumWorkers = *workers
	}
	if *noCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// 2. Initialize modules
	analyzer, err := pipeline.NewAnalyzer(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}
	writers, err := factory.CreateWriters(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	defer factory.CloseWriters(writers)

	// 3. Analyze, aborting the scan on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := analyzer.Run(ctx, pcapFilePath)
	if err != nil {
		factory.CloseWriters(writers)
		log.Fatalf("Failed to analyze '%s': %v", pcapFilePath, err)
	}

	// 4. Dispatch the report
	failed := false
	for _, w := range writers {
		if err := w.Write(ctx, rep); err != nil {
			log.WithError(err).WithField("writer", w.Name()).Error("Failed to write report")
			failed = true
		}
	}

	s := rep.Summary
	log.WithFields(log.Fields{
		"packets":      s.Packets,
		"raw_flows":    s.RawFlows,
		"clean_flows":  s.CleanFlows,
		"extra_flows":  s.ExtraFlows,
		"flow_bytes":   s.FlowBytes,
		"median_us":    s.Durations.Median,
		"median_bytes": s.Sizes.Median,
	}).Info("Analysis complete")

	if failed {
		factory.CloseWriters(writers)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, falling back to defaults when the
// default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !isFlagSet("config") {
		log.WithField("path", path).Warn("No configuration file, using defaults")
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
