// Package mixer discovers a song's mixer tracks and drives the solo and
// pitch controls.
//
// The site gives no signal when the remote audio server has applied a
// change, so every operation here polls DOM state against the timings in
// config.Timing and reports what it observed rather than failing.
package mixer

import (
	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/metrics"
	"github.com/harun/kvstems/pkg/browser"
	"github.com/rs/zerolog"
)

// Options configures a Mixer
type Options struct {
	Selectors config.Selectors
	Timing    config.Timing
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Mixer operates the mixer of the song page currently open in page
type Mixer struct {
	page    browser.Page
	sel     config.Selectors
	timing  config.Timing
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a mixer bound to page
func New(page browser.Page, opts Options) *Mixer {
	return &Mixer{
		page:    page,
		sel:     opts.Selectors,
		timing:  opts.Timing,
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "mixer").Logger(),
	}
}

// WithTiming returns a copy of the mixer using t
func (m *Mixer) WithTiming(t config.Timing) *Mixer {
	c := *m
	c.timing = t
	return &c
}
