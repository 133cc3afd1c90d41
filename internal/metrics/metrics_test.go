package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.SoloAttemptsTotal == nil {
		t.Error("SoloAttemptsTotal is nil")
	}
	if m.SoloActivationDuration == nil {
		t.Error("SoloActivationDuration is nil")
	}
	if m.DownloadsTotal == nil {
		t.Error("DownloadsTotal is nil")
	}
	if m.DownloadDuration == nil {
		t.Error("DownloadDuration is nil")
	}
	if m.SongsProcessedTotal == nil {
		t.Error("SongsProcessedTotal is nil")
	}
	if m.SessionRestoresTotal == nil {
		t.Error("SessionRestoresTotal is nil")
	}
	if m.LoginsTotal == nil {
		t.Error("LoginsTotal is nil")
	}
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()

	m.ObserveSolo("click", "active", 3*time.Second)
	m.ObserveDownload("confirmed", 20*time.Second)
	m.ObserveSong("processed")
	m.ObserveSessionRestore("restored")
	m.ObserveLogin("success")

	metricFamilies, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	metricNames := make(map[string]bool)
	for _, mf := range metricFamilies {
		metricNames[mf.GetName()] = true
	}

	expectedCount := 7
	if len(metricNames) != expectedCount {
		t.Errorf("Expected %d metrics, got %d", expectedCount, len(metricNames))
	}
	for name := range metricNames {
		if !strings.HasPrefix(name, "kvstems_") {
			t.Errorf("Metric %s missing namespace", name)
		}
	}
}

func TestSoloMetrics(t *testing.T) {
	m := NewMetrics()

	m.ObserveSolo("rhythm", "active", 2*time.Second)
	m.ObserveSolo("rhythm", "active", 4*time.Second)
	m.ObserveSolo("rhythm", "failed", 0)

	if got := testutil.ToFloat64(m.SoloAttemptsTotal.WithLabelValues("active", "rhythm")); got != 2 {
		t.Errorf("Expected 2 active attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.SoloAttemptsTotal.WithLabelValues("failed", "rhythm")); got != 1 {
		t.Errorf("Expected 1 failed attempt, got %v", got)
	}
	if got := testutil.CollectAndCount(m.SoloActivationDuration); got != 1 {
		t.Errorf("Expected one activation series, got %d", got)
	}
}

func TestDownloadMetrics(t *testing.T) {
	m := NewMetrics()

	m.ObserveDownload("confirmed", 12*time.Second)
	m.ObserveDownload("not_started", 0)
	m.ObserveDownload("not_started", 0)

	if got := testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("confirmed")); got != 1 {
		t.Errorf("Expected 1 confirmed download, got %v", got)
	}
	if got := testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("not_started")); got != 2 {
		t.Errorf("Expected 2 unstarted downloads, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.ObserveSolo("simple", "active", time.Second)
	m.ObserveDownload("confirmed", time.Second)
	m.ObserveSong("processed")
	m.ObserveSessionRestore("expired")
	m.ObserveLogin("failed")

	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("Nil metrics should not fail to write: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveSong("processed")
	m.ObserveSong("failed")

	path := filepath.Join(t.TempDir(), "logs", "automation_metrics.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read metrics file: %v", err)
	}

	body := string(data)
	for _, want := range []string{
		"# TYPE kvstems_songs_processed_total counter",
		`kvstems_songs_processed_total{status="processed"} 1`,
		`kvstems_songs_processed_total{status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing: %s", want)
		}
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.ObserveSong("processed")

	if got := testutil.ToFloat64(m2.SongsProcessedTotal.WithLabelValues("processed")); got != 0 {
		t.Errorf("Expected isolated registries, got %v", got)
	}
}
