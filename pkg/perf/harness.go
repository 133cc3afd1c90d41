package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"

	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/fsutil"
	"github.com/harun/kvstems/internal/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
)

// RunFunc runs the automation once with baseline's timing
type RunFunc func(ctx context.Context, baseline Baseline) (stats.Report, error)

// Success rates closer than this are a tie
const successRateTolerance = 0.01

// Result is one baseline run
type Result struct {
	Baseline    string        `json:"baseline"`
	Timing      config.Timing `json:"timing"`
	RunID       string        `json:"run_id"`
	Totals      stats.Totals  `json:"totals"`
	DurationSec float64       `json:"duration_seconds"`
	Error       string        `json:"error,omitempty"`
}

// Comparison is the outcome of an A/B test
type Comparison struct {
	A      Result `json:"a"`
	B      Result `json:"b"`
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

// Harness runs baselines and writes their results under dir
type Harness struct {
	dir    string
	base   config.Timing
	out    io.Writer
	logger zerolog.Logger
}

// NewHarness creates a harness deriving baselines from base
func NewHarness(dir string, base config.Timing, out io.Writer, logger zerolog.Logger) *Harness {
	return &Harness{
		dir:    dir,
		base:   base,
		out:    out,
		logger: logger.With().Str("component", "perf").Logger(),
	}
}

// BaselineTest runs the named baseline once and writes
// baseline_<name>.json
func (h *Harness) BaselineTest(ctx context.Context, name string, run RunFunc) (Result, error) {
	res, err := h.runBaseline(ctx, name, run)
	if err != nil {
		return res, err
	}
	path := filepath.Join(h.dir, "baseline_"+name+".json")
	if err := fsutil.WriteJSON(path, res, 0644); err != nil {
		return res, fmt.Errorf("failed to write baseline result: %w", err)
	}
	h.logger.Info().Str("file", path).Msg("Baseline result written")
	return res, nil
}

// ABTest runs baselines a and b in turn, picks a winner and writes
// ab_test_<a>_vs_<b>.json
func (h *Harness) ABTest(ctx context.Context, a, b string, run RunFunc) (Comparison, error) {
	if a == b {
		return Comparison{}, fmt.Errorf("A/B test needs two different baselines, got %q twice", a)
	}
	// Fail before running anything on a typo
	for _, name := range []string{a, b} {
		if _, err := Lookup(name, h.base); err != nil {
			return Comparison{}, err
		}
	}

	var cmp Comparison
	var err error
	if cmp.A, err = h.runBaseline(ctx, a, run); err != nil {
		return cmp, err
	}
	if cmp.B, err = h.runBaseline(ctx, b, run); err != nil {
		return cmp, err
	}
	cmp.Winner, cmp.Reason = pickWinner(cmp.A, cmp.B)

	path := filepath.Join(h.dir, fmt.Sprintf("ab_test_%s_vs_%s.json", a, b))
	if err := fsutil.WriteJSON(path, cmp, 0644); err != nil {
		return cmp, fmt.Errorf("failed to write A/B result: %w", err)
	}

	h.logger.Info().
		Str("winner", cmp.Winner).
		Str("reason", cmp.Reason).
		Str("file", path).
		Msg("A/B test finished")
	if h.out != nil {
		PrintComparison(h.out, cmp)
	}
	return cmp, nil
}

func (h *Harness) runBaseline(ctx context.Context, name string, run RunFunc) (Result, error) {
	b, err := Lookup(name, h.base)
	if err != nil {
		return Result{}, err
	}

	h.logger.Info().Str("baseline", name).Str("description", b.Description).Msg("Running baseline")
	report, err := run(ctx, b)
	res := Result{
		Baseline:    name,
		Timing:      b.Timing,
		RunID:       report.RunID,
		Totals:      report.Totals,
		DurationSec: report.DurationSeconds,
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}
		// A run without a single download is still a measurement
		res.Error = err.Error()
		h.logger.Warn().Err(err).Str("baseline", name).Msg("Baseline run reported an error")
	}
	return res, nil
}

// pickWinner prefers the higher success rate, then the shorter run
func pickWinner(a, b Result) (string, string) {
	diff := a.Totals.SuccessRate - b.Totals.SuccessRate
	if math.Abs(diff) >= successRateTolerance {
		if diff > 0 {
			return a.Baseline, "higher success rate"
		}
		return b.Baseline, "higher success rate"
	}
	switch {
	case a.DurationSec < b.DurationSec:
		return a.Baseline, "same success rate, faster"
	case b.DurationSec < a.DurationSec:
		return b.Baseline, "same success rate, faster"
	default:
		return "tie", "same success rate and duration"
	}
}

// PrintComparison renders an A/B comparison table
func PrintComparison(w io.Writer, cmp Comparison) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", cmp.A.Baseline, cmp.B.Baseline})
	table.SetAutoWrapText(false)

	row := func(name string, a, b string) {
		table.Append([]string{name, a, b})
	}
	pct := func(f float64) string { return strconv.FormatFloat(f*100, 'f', 0, 64) + "%" }
	sec := func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) + "s" }

	row("Songs processed",
		fmt.Sprintf("%d/%d", cmp.A.Totals.SongsProcessed, cmp.A.Totals.Songs),
		fmt.Sprintf("%d/%d", cmp.B.Totals.SongsProcessed, cmp.B.Totals.Songs))
	row("Downloads", strconv.Itoa(cmp.A.Totals.DownloadsConfirmed), strconv.Itoa(cmp.B.Totals.DownloadsConfirmed))
	row("Solo failures", strconv.Itoa(cmp.A.Totals.SoloFailures), strconv.Itoa(cmp.B.Totals.SoloFailures))
	row("Success rate", pct(cmp.A.Totals.SuccessRate), pct(cmp.B.Totals.SuccessRate))
	row("Avg solo", sec(cmp.A.Totals.AvgSoloSeconds), sec(cmp.B.Totals.AvgSoloSeconds))
	row("Avg download", sec(cmp.A.Totals.AvgDownloadSeconds), sec(cmp.B.Totals.AvgDownloadSeconds))
	row("Duration", sec(cmp.A.DurationSec), sec(cmp.B.DurationSec))
	table.Render()

	fmt.Fprintf(w, "Winner: %s (%s)\n", cmp.Winner, cmp.Reason)
}
