// Package perf runs the automation under named timing baselines and
// compares them.
package perf

import (
	"fmt"
	"slices"
	"time"

	"github.com/harun/kvstems/internal/config"
)

// Baseline is a named timing set
type Baseline struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Timing      config.Timing `json:"timing"`
}

// Baseline names
const (
	BaselineDefault      = "default"
	BaselineConservative = "conservative"
	BaselineFast         = "fast"
	BaselinePatient      = "patient"
)

// Scale multiplies every timeout and delay in t by factor. The poll
// interval and retry count are left alone.
func Scale(t config.Timing, factor float64) config.Timing {
	s := func(d time.Duration) time.Duration {
		return time.Duration(float64(d) * factor)
	}
	t.LoginTimeout = s(t.LoginTimeout)
	t.TrackDiscoveryTimeout = s(t.TrackDiscoveryTimeout)
	t.SoloClickTrack = s(t.SoloClickTrack)
	t.SoloRhythm = s(t.SoloRhythm)
	t.SoloSimple = s(t.SoloSimple)
	t.SoloComplex = s(t.SoloComplex)
	t.SoloRetryTimeout = s(t.SoloRetryTimeout)
	t.AudioSyncWindow = s(t.AudioSyncWindow)
	t.SoloSettleDelay = s(t.SoloSettleDelay)
	t.KeyStepDelay = s(t.KeyStepDelay)
	t.DownloadStartTimeout = s(t.DownloadStartTimeout)
	t.DownloadCompleteTimeout = s(t.DownloadCompleteTimeout)
	t.BetweenTracksDelay = s(t.BetweenTracksDelay)
	return t
}

// Baselines derives every named baseline from base
func Baselines(base config.Timing) map[string]Baseline {
	patient := base
	patient.SoloClickTrack = 2 * base.SoloClickTrack
	patient.SoloRetryAttempts = base.SoloRetryAttempts + 2
	patient.DownloadStartTimeout = 2 * base.DownloadStartTimeout
	patient.DownloadCompleteTimeout = 2 * base.DownloadCompleteTimeout

	return map[string]Baseline{
		BaselineDefault: {
			Name:        BaselineDefault,
			Description: "configured timing",
			Timing:      base,
		},
		BaselineConservative: {
			Name:        BaselineConservative,
			Description: "every wait 1.5x longer",
			Timing:      Scale(base, 1.5),
		},
		BaselineFast: {
			Name:        BaselineFast,
			Description: "every wait 0.6x",
			Timing:      Scale(base, 0.6),
		},
		BaselinePatient: {
			Name:        BaselinePatient,
			Description: "long click-track and download windows, more solo retries",
			Timing:      patient,
		},
	}
}

// Names lists the baseline names, sorted
func Names() []string {
	names := []string{BaselineDefault, BaselineConservative, BaselineFast, BaselinePatient}
	slices.Sort(names)
	return names
}

// Lookup returns the named baseline derived from base
func Lookup(name string, base config.Timing) (Baseline, error) {
	b, ok := Baselines(base)[name]
	if !ok {
		return Baseline{}, fmt.Errorf("unknown baseline %q (available: %v)", name, Names())
	}
	return b, nil
}
