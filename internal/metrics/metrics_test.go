package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCacheLookup(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCacheLookup("flows", false)
	m.ObserveCacheLookup("flows", true)
	m.ObserveCacheLookup("flows", true)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("flows", "hit")); got != 2 {
		t.Errorf("Expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("flows", "miss")); got != 1 {
		t.Errorf("Expected 1 miss, got %v", got)
	}
}

func TestNew_RegistersEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PacketsScanned.Add(3)
	m.Runs.WithLabelValues("ok").Inc()
	m.CacheLookups.WithLabelValues("distribution", "miss").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	// Unlabelled collectors are always exported; vectors only once used.
	if len(families) != 9 {
		t.Errorf("Expected 9 metric families, got %d", len(families))
	}
}
