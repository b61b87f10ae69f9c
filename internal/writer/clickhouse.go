package writer

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/engine/tally"
	"FlowSpectra/internal/factory"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/report"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("clickhouse", func(cfg *config.Config) (model.Writer, error) {
		if !cfg.Writers.ClickHouse.Enabled {
			return nil, nil
		}
		return NewClickHouseWriter(cfg.Writers.ClickHouse)
	})
}

const createFlowTableStatement = `
CREATE TABLE IF NOT EXISTS flow_metadata (
    RunID          UUID,
    Input          String,
    GeneratedAt    DateTime,
    DurationMicros Int64,
    TotalBytes     Int64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Input, GeneratedAt);
`

const createDistributionTableStatement = `
CREATE TABLE IF NOT EXISTS protocol_distribution (
    RunID       UUID,
    Input       String,
    GeneratedAt DateTime,
    Bucket      String,
    Count       Int64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Input, GeneratedAt, Bucket);
`

// ClickHouseWriter inserts flow metadata and the protocol distribution of a run.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects and makes sure both tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createFlowTableStatement, createDistributionTableStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

func (w *ClickHouseWriter) Close() error { return w.conn.Close() }

// Write inserts one row per flow and one row per distribution bucket.
func (w *ClickHouseWriter) Write(ctx context.Context, r *report.Report) error {
	if err := w.insert(ctx, "INSERT INTO flow_metadata", flowRows(r)); err != nil {
		return err
	}
	if err := w.insert(ctx, "INSERT INTO protocol_distribution", distributionRows(r)); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"flows": len(r.Flows),
		"input": r.Input,
	}).Info("Wrote report to ClickHouse")
	return nil
}

func (w *ClickHouseWriter) insert(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil // Nothing to write
	}
	batch, err := w.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func flowRows(r *report.Report) [][]any {
	rows := make([][]any, 0, len(r.Flows))
	for _, f := range r.Flows {
		rows = append(rows, []any{r.RunID, r.Input, r.GeneratedAt, f.DurationMicros, f.TotalBytes})
	}
	return rows
}

func distributionRows(r *report.Report) [][]any {
	rows := make([][]any, 0, len(r.Distribution))
	for i, c := range r.Distribution {
		rows = append(rows, []any{r.RunID, r.Input, r.GeneratedAt, tally.Labels[i], c})
	}
	return rows
}
