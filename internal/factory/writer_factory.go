package factory

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/model"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// WriterFactory builds a writer from the configuration. It returns a nil
// writer when the writer is disabled.
type WriterFactory func(cfg *config.Config) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// CreateWriters builds every enabled writer, in name order. On error the
// writers created so far are closed.
func CreateWriters(cfg *config.Config) ([]model.Writer, error) {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	var writers []model.Writer
	for _, name := range names {
		w, err := registry[name](cfg)
		if err != nil {
			CloseWriters(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", name, err)
		}
		if w == nil {
			continue
		}
		log.WithField("writer", name).Info("Writer enabled")
		writers = append(writers, w)
	}
	return writers, nil
}

// CloseWriters closes every writer, logging failures.
func CloseWriters(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.WithError(err).WithField("writer", w.Name()).Warn("Failed to close writer")
		}
	}
}
