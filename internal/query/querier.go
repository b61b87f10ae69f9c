package query

import (
	"FlowSpectra/internal/config"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
)

// DefaultLimit bounds the number of runs returned when no limit is given.
const DefaultLimit = 50

// RunFilter selects stored runs.
type RunFilter struct {
	Input string    // exact capture path; empty for all
	Since time.Time // zero for no lower bound
	Limit int
}

// RunSummary describes one stored run. The flow fields are zero when the run
// kept no flows after cleaning.
type RunSummary struct {
	RunID             uuid.UUID `json:"run_id"`
	Input             string    `json:"input"`
	GeneratedAt       time.Time `json:"generated_at"`
	Flows             uint64    `json:"flows"`
	TotalBytes        int64     `json:"total_bytes"`
	MaxDurationMicros int64     `json:"max_duration_micros"`
}

// Querier reads back reports persisted by the ClickHouse writer.
type Querier interface {
	Runs(ctx context.Context, f RunFilter) ([]RunSummary, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
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

// buildRunsQuery renders the run listing for f. Runs are taken from
// protocol_distribution, which has rows for every run, and joined with the
// flow_metadata aggregates so runs without clean flows report zeros.
func buildRunsQuery(f RunFilter) (string, []any) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			r.RunID,
			r.Input,
			r.GeneratedAt,
			f.Flows,
			f.TotalBytes,
			f.MaxDurationMicros
		FROM (
			SELECT DISTINCT RunID, Input, GeneratedAt
			FROM protocol_distribution
	`)

	var whereClauses []string
	args := []any{}
	if f.Input != "" {
		whereClauses = append(whereClauses, "Input = ?")
		args = append(args, f.Input)
	}
	if !f.Since.IsZero() {
		whereClauses = append(whereClauses, "GeneratedAt >= ?")
		args = append(args, f.Since)
	}
	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	queryBuilder.WriteString(`
		) AS r
		LEFT JOIN (
			SELECT
				RunID,
				count() AS Flows,
				sum(TotalBytes) AS TotalBytes,
				max(DurationMicros) AS MaxDurationMicros
			FROM flow_metadata
			GROUP BY RunID
		) AS f ON r.RunID = f.RunID
		ORDER BY r.GeneratedAt DESC LIMIT ?`)
	args = append(args, limit)
	return queryBuilder.String(), args
}

// Runs lists stored runs, newest first.
func (q *clickhouseQuerier) Runs(ctx context.Context, f RunFilter) ([]RunSummary, error) {
	query, args := buildRunsQuery(f)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute runs query: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Input, &r.GeneratedAt, &r.Flows, &r.TotalBytes, &r.MaxDurationMicros); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
