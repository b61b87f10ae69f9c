// Package api serves capture analyses over HTTP for plotting clients.
package api

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/engine/tally"
	"FlowSpectra/internal/pipeline"
	"FlowSpectra/internal/query"
	"FlowSpectra/internal/report"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// errBadFile is returned for a ?file= value outside the capture directory.
var errBadFile = errors.New("file must be a relative path inside the capture directory")

// DistributionResponse pairs the six protocol buckets with their labels.
type DistributionResponse struct {
	Labels []string `json:"labels"`
	Counts []int64  `json:"counts"`
}

// Handler holds the dependencies for API handlers.
type Handler struct {
	analyzer   *pipeline.Analyzer
	captureDir string
	querier    query.Querier // nil when no ClickHouse is configured
	gatherer   prometheus.Gatherer

	group   singleflight.Group
	reports *reportCache
}

// NewHandler creates a handler analyzing captures found under cfg.CaptureDir.
func NewHandler(a *pipeline.Analyzer, cfg config.APIConfig, q query.Querier, g prometheus.Gatherer) *Handler {
	return &Handler{
		analyzer:   a,
		captureDir: cfg.CaptureDir,
		querier:    q,
		gatherer:   g,
		reports:    newReportCache(cfg.MaxReports),
	}
}

// Router returns the API routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/distribution", h.withReport(h.distributionHandler)).Methods("GET")
	r.HandleFunc("/api/v1/packets", h.withReport(h.packetsHandler)).Methods("GET")
	r.HandleFunc("/api/v1/flows", h.withReport(h.flowsHandler)).Methods("GET")
	r.HandleFunc("/api/v1/summary", h.withReport(h.summaryHandler)).Methods("GET")
	r.HandleFunc("/api/v1/cdf/{metric:duration|size}", h.withReport(h.cdfHandler)).Methods("GET")
	r.HandleFunc("/api/v1/histogram", h.withReport(h.histogramHandler)).Methods("GET")
	r.HandleFunc("/api/v1/runs", h.runsHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return r
}

type reportHandlerFunc func(w http.ResponseWriter, r *http.Request, rep *report.Report)

// withReport resolves ?file= and hands the capture's report to next.
func (h *Handler) withReport(next reportHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := h.resolve(r.URL.Query().Get("file"))
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, fs.ErrNotExist) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}

		rep, err := h.report(r.Context(), path)
		if err != nil {
			log.WithError(err).WithField("file", path).Error("Failed to analyze capture")
			http.Error(w, fmt.Sprintf("failed to analyze capture: %v", err), http.StatusInternalServerError)
			return
		}
		next(w, r, rep)
	}
}

// resolve maps a ?file= value to an existing capture under the capture directory.
func (h *Handler) resolve(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", errBadFile
	}
	path := filepath.Join(h.captureDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("capture '%s': %w", name, fs.ErrNotExist)
	}
	if info.IsDir() {
		return "", errBadFile
	}
	return path, nil
}

// report returns the memoized report for path. Concurrent requests for the
// same capture share one analysis.
func (h *Handler) report(ctx context.Context, path string) (*report.Report, error) {
	if rep, ok := h.reports.get(path); ok {
		return rep, nil
	}

	v, err, _ := h.group.Do(path, func() (any, error) {
		rep, err := h.analyzer.Run(context.WithoutCancel(ctx), path)
		if err != nil {
			return nil, err
		}
		h.reports.add(path, rep)
		return rep, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*report.Report), nil
}

func (h *Handler) distributionHandler(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	writeJSON(w, DistributionResponse{Labels: tally.Labels[:], Counts: rep.Distribution[:]})
}

func (h *Handler) packetsHandler(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	writeJSON(w, rep.Packets)
}

func (h *Handler) flowsHandler(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	writeJSON(w, rep.Flows)
}

func (h *Handler) summaryHandler(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	writeJSON(w, rep.Summary)
}

func (h *Handler) cdfHandler(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	values := report.Sizes(rep.Flows)
	if mux.Vars(r)["metric"] == "duration" {
		values = report.Durations(rep.Flows)
	}
	points := report.CDF(values)
	if points == nil {
		points = []report.Point{}
	}
	writeJSON(w, points)
}

func (h *Handler) histogramHandler(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	bins := report.DefaultHistogramBins
	if s := r.URL.Query().Get("bins"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "bins must be a positive integer", http.StatusBadRequest)
			return
		}
		bins = n
	}
	hist := report.Histogram(report.PacketSizes(rep.Packets), bins)
	if hist == nil {
		hist = []report.Bin{}
	}
	writeJSON(w, hist)
}

// runsHandler lists runs stored by the ClickHouse writer.
func (h *Handler) runsHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "no run store configured", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	f := query.RunFilter{Input: q.Get("input")}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
			return
		}
		f.Since = since
	}

	runs, err := h.querier.Runs(r.Context(), f)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query runs: %v", err), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []query.RunSummary{}
	}
	writeJSON(w, runs)
}

func writeJSON(w http.ResponseWriter, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
