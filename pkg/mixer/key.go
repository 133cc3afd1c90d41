package mixer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/harun/kvstems/pkg/browser"
)

var keyPattern = regexp.MustCompile(`[+-]?\d+`)

// KeyResult reports a pitch adjustment
type KeyResult struct {
	Requested int `json:"requested"`
	Clicks    int `json:"clicks"`
	// Displayed is the value read back from the pitch display, when found
	Displayed *int `json:"displayed,omitempty"`
}

// Verified reports whether the display confirmed the requested key
func (r KeyResult) Verified() bool {
	return r.Displayed != nil && *r.Displayed == r.Requested
}

// ParseKeyDisplay reads a semitone offset such as "+2", "-3" or "Key: 0"
func ParseKeyDisplay(text string) (int, error) {
	m := keyPattern.FindString(strings.TrimSpace(text))
	if m == "" {
		return 0, fmt.Errorf("no key value in %q", text)
	}
	return strconv.Atoi(strings.TrimPrefix(m, "+"))
}

// AdjustKey clicks the pitch control |key| times in the direction of key.
// A mismatch with the pitch display is logged, not returned.
func (m *Mixer) AdjustKey(ctx context.Context, key int) (KeyResult, error) {
	res := KeyResult{Requested: key}
	if key == 0 {
		return res, nil
	}

	candidates, direction := m.sel.PitchUp, "up"
	steps := key
	if key < 0 {
		candidates, direction = m.sel.PitchDown, "down"
		steps = -key
	}

	logger := m.logger.With().Int("key", key).Str("direction", direction).Logger()

	for i := 0; i < steps; i++ {
		// Re-resolve each step, the control re-renders after a pitch change
		el, sel, err := browser.FirstPresent(m.page, candidates)
		if err != nil {
			return res, fmt.Errorf("pitch %s control not found: %w", direction, err)
		}
		if _, err := browser.ClickWithFallback(el); err != nil {
			return res, fmt.Errorf("failed to click pitch %s control %s: %w", direction, sel, err)
		}
		res.Clicks++
		if err := browser.Sleep(ctx, m.timing.KeyStepDelay); err != nil {
			return res, err
		}
	}

	if el, _, err := browser.FirstPresent(m.page, m.sel.PitchDisplay); err == nil {
		if text, err := el.Text(); err == nil {
			if shown, err := ParseKeyDisplay(text); err == nil {
				res.Displayed = &shown
			}
		}
	}

	switch {
	case res.Displayed == nil:
		logger.Debug().Int("clicks", res.Clicks).Msg("Key adjusted, no pitch display to verify")
	case !res.Verified():
		logger.Warn().Int("displayed", *res.Displayed).Msg("Pitch display does not match requested key")
	default:
		logger.Info().Int("clicks", res.Clicks).Msg("Key adjusted")
	}
	return res, nil
}
