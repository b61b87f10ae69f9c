package writer

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/engine/tally"
	"FlowSpectra/internal/factory"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/report"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("json", func(cfg *config.Config) (model.Writer, error) {
		if !cfg.Writers.JSON.Enabled {
			return nil, nil
		}
		return NewJSONWriter(cfg.Writers.JSON.RootPath), nil
	})
}

// timestampLayout names report directories.
const timestampLayout = "2006-01-02_15-04-05"

// SummaryData is the human-readable companion of report.json.
type SummaryData struct {
	RunID        string           `json:"run_id"`
	Input        string           `json:"input"`
	Timestamp    string           `json:"timestamp"`
	Distribution map[string]int64 `json:"distribution"`
	Summary      report.Summary   `json:"summary"`
}

// JSONWriter writes each report to <root>/<timestamp>/<capture>/.
type JSONWriter struct {
	rootPath string
}

// NewJSONWriter creates a new report file writer.
func NewJSONWriter(rootPath string) *JSONWriter {
	return &JSONWriter{rootPath: rootPath}
}

func (w *JSONWriter) Name() string { return "json" }

func (w *JSONWriter) Close() error { return nil }

// Dir returns the directory the report is written to.
func (w *JSONWriter) Dir(r *report.Report) string {
	return filepath.Join(w.rootPath, r.GeneratedAt.Format(timestampLayout), r.Name())
}

// Write serializes the full report and an indented summary.
func (w *JSONWriter) Write(ctx context.Context, r *report.Report) error {
	reportDir := w.Dir(r)
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	reportPath := filepath.Join(reportDir, "report.json")
	if err := writeJSON(reportPath, r, false); err != nil {
		return err
	}

	summary := SummaryData{
		RunID:        r.RunID.String(),
		Input:        r.Input,
		Timestamp:    r.GeneratedAt.Format(time.RFC3339),
		Distribution: distributionByLabel(r.Distribution),
		Summary:      r.Summary,
	}
	if err := writeJSON(filepath.Join(reportDir, "summary.json"), summary, true); err != nil {
		return err
	}

	log.WithField("dir", reportDir).Info("Wrote report files")
	return nil
}

func writeJSON(path string, v any, indent bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json to '%s': %w", path, err)
	}
	return file.Close()
}

func distributionByLabel(d tally.Distribution) map[string]int64 {
	out := make(map[string]int64, len(d))
	for i, c := range d {
		out[tally.Labels[i]] = c
	}
	return out
}
