package main

import (
	"FlowSpectra/internal/api"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/logging"
	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/pipeline"
	"FlowSpectra/internal/query"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	analyzer, err := pipeline.NewAnalyzer(cfg, metrics.New(reg))
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}

	// Stored runs are only queryable when the ClickHouse writer is enabled.
	var querier query.Querier
	if cfg.Writers.ClickHouse.Enabled {
		querier, err = query.NewClickHouseQuerier(cfg.Writers.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to create querier: %v", err)
		}
		defer querier.Close()
	}

	handler := api.NewHandler(analyzer, cfg.API, querier, reg)

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: handler.Router(),
	}

	go func() {
		log.WithFields(log.Fields{
			"addr":     server.Addr,
			"captures": cfg.API.CaptureDir,
		}).Info("API server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Info("API server exited.")
}
