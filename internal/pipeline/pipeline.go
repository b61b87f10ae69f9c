package pipeline

import (
	"FlowSpectra/internal/cache"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/core/model"
	"FlowSpectra/internal/engine/cleaner"
	"FlowSpectra/internal/engine/flowbuilder"
	"FlowSpectra/internal/engine/tally"
	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/report"
	"FlowSpectra/pkg/pcap"
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Artifact name suffixes, appended to the name from artifactBase.
const (
	DistributionSuffix = "-distribution"
	FlowsSuffix        = "-flows"
)

// ScanResult is the output of one full pass over a capture.
type ScanResult struct {
	Tally *model.ProtocolTally
	Flows model.FlowSet
	Stats flowbuilder.Stats
}

// Analyzer runs the scan, cache, clean and report stages for captures.
type Analyzer struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	codec   cache.Codec
}

// NewAnalyzer creates an analyzer. m may be nil.
func NewAnalyzer(cfg *config.Config, m *metrics.Metrics) (*Analyzer, error) {
	codec, err := cache.CodecByName(cfg.Cache.Format)
	if err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, metrics: m, codec: codec}, nil
}

// CleanOptions returns the configured cleaning thresholds.
func (a *Analyzer) CleanOptions() cleaner.Options {
	return cleaner.Options{
		MinPackets:          a.cfg.Analyzer.MinPacketsPerFlow,
		InactivityThreshold: a.cfg.Analyzer.InactivityThresholdSeconds,
	}
}

// artifactBase names the cache artifacts of the capture at path. Artifacts
// kept next to their capture use its file name. A shared cache dir adds an
// fnv32a hash of the absolute path so captures with the same name in
// different directories never share artifacts.
func (a *Analyzer) artifactBase(path string) string {
	base := filepath.Base(path)
	if a.cfg.Cache.Dir == "" {
		return base
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	return fmt.Sprintf("%s-%08x", base, h.Sum32())
}

// cacheFor returns the cache used for the capture at path, or nil when
// caching is disabled.
func (a *Analyzer) cacheFor(path string) *cache.Cache {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	dir := a.cfg.Cache.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	c := cache.New(dir, a.codec)
	if a.metrics != nil {
		prefix := a.artifactBase(path) + "-"
		c.OnLookup = func(name string, hit bool) {
			a.metrics.ObserveCacheLookup(strings.TrimPrefix(name, prefix), hit)
		}
	}
	return c
}

// Scan reads the capture once, tallying every packet and grouping TCP/UDP
// packets into the raw FlowSet.
func (a *Analyzer) Scan(ctx context.Context, path string) (*ScanResult, error) {
	reader, err := pcap.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	start := time.Now()
	log.WithField("file", path).Info("Scanning capture")

	packets := make(chan *model.PacketInfo, a.cfg.Analyzer.SizeOfPacketChannel)
	readErr := make(chan error, 1)
	go func() {
		readErr <- reader.ReadPackets(ctx, packets)
	}()

	t := model.NewProtocolTally()
	builder := flowbuilder.New(a.cfg.Analyzer.NumWorkers, a.cfg.Analyzer.SizeOfPacketChannel)
	interval := a.cfg.Analyzer.ProgressInterval
	for p := range packets {
		tally.Add(t, p)
		builder.Add(p)
		if interval > 0 && t.Count%interval == 0 {
			log.WithField("packets", t.Count).Info("Scan progress")
		}
	}
	flows, stats := builder.Finish()

	if err := <-readErr; err != nil {
		return nil, fmt.Errorf("scan of '%s' aborted: %w", path, err)
	}

	elapsed := time.Since(start)
	log.WithFields(log.Fields{
		"packets":   stats.Packets,
		"transport": stats.Transport,
		"skipped":   stats.Skipped,
		"flows":     stats.Flows,
		"elapsed":   elapsed,
	}).Info("Scan complete")

	if a.metrics != nil {
		a.metrics.PacketsScanned.Add(float64(stats.Packets))
		a.metrics.TransportPackets.Add(float64(stats.Transport))
		a.metrics.DecodeSkips.Add(float64(stats.Skipped))
		a.metrics.ScanDuration.Observe(elapsed.Seconds())
	}
	return &ScanResult{Tally: t, Flows: flows, Stats: stats}, nil
}

// Load returns the protocol tally and raw FlowSet of a capture, from the cache
// when both artifacts exist. Missing artifacts share a single scan.
func (a *Analyzer) Load(ctx context.Context, path string) (*model.ProtocolTally, model.FlowSet, error) {
	c := a.cacheFor(path)
	scan := sync.OnceValues(func() (*ScanResult, error) {
		return a.Scan(ctx, path)
	})
	base := a.artifactBase(path)

	t, err := cache.GetOrCompute(c, base+DistributionSuffix, func() (*model.ProtocolTally, error) {
		res, err := scan()
		if err != nil {
			return nil, err
		}
		return res.Tally, nil
	})
	if err != nil {
		return nil, nil, err
	}

	flows, err := cache.GetOrCompute(c, base+FlowsSuffix, func() (model.FlowSet, error) {
		res, err := scan()
		if err != nil {
			return nil, err
		}
		return res.Flows, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return t, flows, nil
}

// Run analyzes one capture end to end.
func (a *Analyzer) Run(ctx context.Context, path string) (*report.Report, error) {
	r, err := a.run(ctx, path)
	if a.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		a.metrics.Runs.WithLabelValues(outcome).Inc()
	}
	return r, err
}

func (a *Analyzer) run(ctx context.Context, path string) (*report.Report, error) {
	t, raw, err := a.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	opts := a.CleanOptions()
	cleaned, res, err := cleaner.Clean(raw, opts)
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.FlowsBuilt.Set(float64(res.FlowsBefore))
		a.metrics.FlowsCleaned.Set(float64(res.FlowsAfter))
		a.metrics.ExtraFlows.Set(float64(res.ExtraFlows))
	}
	return report.Build(path, t, raw, cleaned, res, opts), nil
}
