// Package stats collects per-run automation statistics and renders them as
// a JSON report and a console summary.
package stats

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/kvstems/internal/fsutil"
	"github.com/olekukonko/tablewriter"
)

// DefaultReportFile is the report path relative to the logs directory
const DefaultReportFile = "automation_stats.json"

// TrackRecord is the outcome of one track
type TrackRecord struct {
	Name              string  `json:"name"`
	Index             string  `json:"index"`
	TrackType         string  `json:"track_type"`
	SoloState         string  `json:"solo_state"`
	SoloAttempts      int     `json:"solo_attempts"`
	SoloSeconds       float64 `json:"solo_seconds"`
	DownloadConfirmed bool    `json:"download_confirmed"`
	File              string  `json:"file,omitempty"`
	DownloadSeconds   float64 `json:"download_seconds"`
	Error             string  `json:"error,omitempty"`
}

// SongRecord is the outcome of one song
type SongRecord struct {
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	Key         int           `json:"key"`
	TracksFound int           `json:"tracks_found"`
	Tracks      []TrackRecord `json:"tracks"`
	Seconds     float64       `json:"seconds"`
	Error       string        `json:"error,omitempty"`
}

// Processed reports whether at least one track of the song was downloaded
func (s SongRecord) Processed() bool {
	for _, t := range s.Tracks {
		if t.DownloadConfirmed {
			return true
		}
	}
	return false
}

// Totals summarises a run
type Totals struct {
	Songs              int     `json:"songs"`
	SongsProcessed     int     `json:"songs_processed"`
	TracksAttempted    int     `json:"tracks_attempted"`
	SoloFailures       int     `json:"solo_failures"`
	DownloadsConfirmed int     `json:"downloads_confirmed"`
	SuccessRate        float64 `json:"success_rate"`
	AvgSoloSeconds     float64 `json:"avg_solo_seconds"`
	AvgDownloadSeconds float64 `json:"avg_download_seconds"`
}

// Report is the JSON document written after a run
type Report struct {
	RunID           string       `json:"run_id"`
	Baseline        string       `json:"baseline"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
	DurationSeconds float64      `json:"duration_seconds"`
	Totals          Totals       `json:"totals"`
	Songs           []SongRecord `json:"songs"`
}

// Collector accumulates song records for one run
type Collector struct {
	mu       sync.Mutex
	runID    string
	baseline string
	started  time.Time
	songs    []SongRecord
	now      func() time.Time
}

// NewCollector starts a collector for a run using the named timing baseline
func NewCollector(baseline string) *Collector {
	return newCollector(baseline, time.Now)
}

func newCollector(baseline string, now func() time.Time) *Collector {
	return &Collector{
		runID:    uuid.NewString(),
		baseline: baseline,
		started:  now(),
		now:      now,
	}
}

// RunID returns the unique id of this run
func (c *Collector) RunID() string {
	return c.runID
}

// AddSong records a finished song
func (c *Collector) AddSong(song SongRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.songs = append(c.songs, song)
}

// Report computes the totals over everything recorded so far
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := c.now()
	songs := append([]SongRecord(nil), c.songs...)

	return Report{
		RunID:           c.runID,
		Baseline:        c.baseline,
		StartedAt:       c.started,
		FinishedAt:      finished,
		DurationSeconds: round2(finished.Sub(c.started).Seconds()),
		Totals:          computeTotals(songs),
		Songs:           songs,
	}
}

func computeTotals(songs []SongRecord) Totals {
	var t Totals
	var soloSum, downloadSum float64
	var soloCount int

	t.Songs = len(songs)
	for _, s := range songs {
		if s.Processed() {
			t.SongsProcessed++
		}
		for _, tr := range s.Tracks {
			t.TracksAttempted++
			if tr.SoloState == "active" {
				soloSum += tr.SoloSeconds
				soloCount++
			} else {
				t.SoloFailures++
			}
			if tr.DownloadConfirmed {
				t.DownloadsConfirmed++
				downloadSum += tr.DownloadSeconds
			}
		}
	}

	if t.TracksAttempted > 0 {
		t.SuccessRate = round2(float64(t.DownloadsConfirmed) / float64(t.TracksAttempted))
	}
	if soloCount > 0 {
		t.AvgSoloSeconds = round2(soloSum / float64(soloCount))
	}
	if t.DownloadsConfirmed > 0 {
		t.AvgDownloadSeconds = round2(downloadSum / float64(t.DownloadsConfirmed))
	}
	return t
}

func round2(f float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 2, 64), 64)
	return v
}

// WriteJSON writes the report atomically
func (r Report) WriteJSON(path string) error {
	if err := fsutil.WriteJSON(path, r, 0644); err != nil {
		return fmt.Errorf("failed to write stats report: %w", err)
	}
	return nil
}

// PrintSummary renders a per-song table and the run totals
func (r Report) PrintSummary(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Song", "Key", "Tracks", "Soloed", "Downloaded", "Seconds"})
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	for _, s := range r.Songs {
		soloed, downloaded := 0, 0
		for _, t := range s.Tracks {
			if t.SoloState == "active" {
				soloed++
			}
			if t.DownloadConfirmed {
				downloaded++
			}
		}
		name := s.Name
		if s.Error != "" {
			name += " (" + s.Error + ")"
		}
		table.Append([]string{
			name,
			fmt.Sprintf("%+d", s.Key),
			strconv.Itoa(s.TracksFound),
			strconv.Itoa(soloed),
			strconv.Itoa(downloaded),
			strconv.FormatFloat(s.Seconds, 'f', 1, 64),
		})
	}

	table.SetFooter([]string{
		"Total",
		"",
		strconv.Itoa(r.Totals.TracksAttempted),
		strconv.Itoa(r.Totals.TracksAttempted - r.Totals.SoloFailures),
		strconv.Itoa(r.Totals.DownloadsConfirmed),
		strconv.FormatFloat(r.DurationSeconds, 'f', 1, 64),
	})
	table.Render()

	fmt.Fprintf(w, "Run %s (baseline %s): %d/%d songs processed, success rate %.0f%%\n",
		r.RunID, r.Baseline, r.Totals.SongsProcessed, r.Totals.Songs, r.Totals.SuccessRate*100)
}
