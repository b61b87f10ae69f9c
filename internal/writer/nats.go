package writer

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/engine/tally"
	"FlowSpectra/internal/factory"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/report"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func init() {
	factory.RegisterWriter("nats", func(cfg *config.Config) (model.Writer, error) {
		if !cfg.Writers.NATS.Enabled {
			return nil, nil
		}
		return NewNATSWriter(cfg.Writers.NATS)
	})
}

// RunIDHeader carries the run id on published messages.
const RunIDHeader = "Run-Id"

// NATSWriter publishes a protobuf-encoded summary of each report.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSWriter connects to the configured NATS server.
func NewNATSWriter(cfg config.NATSConfig) (*NATSWriter, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("flowspectra"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	log.WithField("url", cfg.URL).Info("Connected to NATS server")
	return &NATSWriter{nc: nc, subject: cfg.Subject}, nil
}

func (w *NATSWriter) Name() string { return "nats" }

// Write publishes the summary and waits for the server to acknowledge it.
func (w *NATSWriter) Write(ctx context.Context, r *report.Report) error {
	data, err := encodeSummary(r)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(w.subject)
	msg.Data = data
	msg.Header.Set(RunIDHeader, r.RunID.String())
	if err := w.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish report summary: %w", err)
	}
	if err := w.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	log.WithField("subject", w.subject).Info("Published report summary")
	return nil
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	if w.nc == nil {
		return nil
	}
	return w.nc.Drain()
}

// encodeSummary serializes the report headline numbers as a protobuf Struct.
func encodeSummary(r *report.Report) ([]byte, error) {
	distribution := make(map[string]any, len(r.Distribution))
	for i, c := range r.Distribution {
		distribution[tally.Labels[i]] = c
	}
	s := r.Summary
	msg, err := structpb.NewStruct(map[string]any{
		"run_id":       r.RunID.String(),
		"input":        r.Input,
		"generated_at": r.GeneratedAt.Format(time.RFC3339),
		"distribution": distribution,
		"summary": map[string]any{
			"packets":            s.Packets,
			"raw_flows":          s.RawFlows,
			"clean_flows":        s.CleanFlows,
			"extra_flows":        s.ExtraFlows,
			"flow_packets":       s.FlowPackets,
			"flow_bytes":         s.FlowBytes,
			"median_duration_us": s.Durations.Median,
			"median_size_bytes":  s.Sizes.Median,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build summary message: %w", err)
	}
	return proto.Marshal(msg)
}
