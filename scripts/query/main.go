package main

import (
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/query"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// --- Main Function ---
func main() {
	mode := flag.String("mode", "api", "Query mode: 'api' to query the HTTP API, 'direct' to query ClickHouse directly.")
	server := flag.String("server", "http://localhost:8080", "API server base URL.")
	endpoint := flag.String("endpoint", "summary", "API endpoint: distribution, packets, flows, summary, cdf/duration, cdf/size, histogram, runs.")
	file := flag.String("file", "", "Capture name relative to the server's capture directory.")
	input := flag.String("input", "", "Capture path to filter stored runs by (direct mode).")
	limit := flag.Int("limit", 10, "Maximum number of runs (direct mode).")
	configPath := flag.String("config", "configs/config.yaml", "Configuration with the ClickHouse settings (direct mode).")
	flag.Parse()

	log.Infof("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*server, *endpoint, *file)
	case "direct":
		directQueryClickHouse(*configPath, *input, *limit)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

// --- API Query Logic ---
func queryViaAPI(server, endpoint, file string) {
	params := url.Values{}
	if file != "" {
		params.Set("file", file)
	}
	apiURL := fmt.Sprintf("%s/api/v1/%s?%s", server, endpoint, params.Encode())
	log.Infof("Sending request to %s", apiURL)

	resp, err := http.Get(apiURL)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	err = json.Indent(&prettyJSON, respBody, "", "  ")
	if err != nil {
		log.Warn("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}

	fmt.Println(prettyJSON.String())
}

// --- Direct ClickHouse Query Logic ---
func directQueryClickHouse(configPath, input string, limit int) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	querier, err := query.NewClickHouseQuerier(cfg.Writers.ClickHouse)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	defer querier.Close()
	log.Info("Successfully connected to ClickHouse.")

	runs, err := querier.Runs(context.Background(), query.RunFilter{Input: input, Limit: limit})
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}

	fmt.Println("--- Stored Runs (Direct) ---")
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-30s flows=%d bytes=%d longest=%s\n",
			r.GeneratedAt.Format(time.RFC3339), r.RunID, r.Input, r.Flows, r.TotalBytes,
			time.Duration(r.MaxDurationMicros)*time.Microsecond)
	}
}
