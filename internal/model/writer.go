package model

import (
	"FlowSpectra/internal/report"
	"context"
)

// Writer defines a generic interface for exporting a run report.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write persists or publishes the report.
	Write(ctx context.Context, r *report.Report) error

	// Close releases connections held by the writer.
	Close() error
}
