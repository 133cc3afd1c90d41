package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kvstems"

// Metrics holds all Prometheus metrics for a run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Solo metrics
	SoloAttemptsTotal      *prometheus.CounterVec
	SoloActivationDuration *prometheus.HistogramVec

	// Download metrics
	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration prometheus.Histogram

	// Song metrics
	SongsProcessedTotal *prometheus.CounterVec

	// Session metrics
	SessionRestoresTotal *prometheus.CounterVec
	LoginsTotal          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SoloAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solo_attempts_total",
				Help:      "Total number of track solo attempts by outcome",
			},
			[]string{"result", "track_type"},
		),
		SoloActivationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solo_activation_seconds",
				Help:      "Time from solo click until the mixer reported the track active",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 12, 20, 30},
			},
			[]string{"track_type"},
		),

		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Total number of triggered downloads by status",
			},
			[]string{"status"},
		),
		DownloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "download_duration_seconds",
				Help:      "Time from download trigger until the file was complete on disk",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
			},
		),

		SongsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "songs_processed_total",
				Help:      "Total number of songs processed by status",
			},
			[]string{"status"},
		),

		SessionRestoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_restores_total",
				Help:      "Saved session restore attempts by result",
			},
			[]string{"result"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Interactive login attempts by status",
			},
			[]string{"status"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SoloAttemptsTotal)
	m.registry.MustRegister(m.SoloActivationDuration)

	m.registry.MustRegister(m.DownloadsTotal)
	m.registry.MustRegister(m.DownloadDuration)

	m.registry.MustRegister(m.SongsProcessedTotal)

	m.registry.MustRegister(m.SessionRestoresTotal)
	m.registry.MustRegister(m.LoginsTotal)
}

// ObserveSolo records one solo attempt. Activation time is only recorded
// for successful attempts.
func (m *Metrics) ObserveSolo(trackType, result string, activation time.Duration) {
	if m == nil {
		return
	}
	m.SoloAttemptsTotal.WithLabelValues(result, trackType).Inc()
	if result == "active" {
		m.SoloActivationDuration.WithLabelValues(trackType).Observe(activation.Seconds())
	}
}

// ObserveDownload records one download outcome
func (m *Metrics) ObserveDownload(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(status).Inc()
	if status == "confirmed" {
		m.DownloadDuration.Observe(d.Seconds())
	}
}

// ObserveSong records one processed song
func (m *Metrics) ObserveSong(status string) {
	if m == nil {
		return
	}
	m.SongsProcessedTotal.WithLabelValues(status).Inc()
}

// ObserveSessionRestore records a session restore result
func (m *Metrics) ObserveSessionRestore(result string) {
	if m == nil {
		return
	}
	m.SessionRestoresTotal.WithLabelValues(result).Inc()
}

// ObserveLogin records an interactive login
func (m *Metrics) ObserveLogin(status string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format, for
// node_exporter's textfile collector or plain inspection after a run
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
