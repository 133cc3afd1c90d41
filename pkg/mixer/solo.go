package mixer

import (
	"context"
	"strings"
	"time"

	"github.com/harun/kvstems/pkg/browser"
)

// SoloState is a step of the solo state machine
type SoloState string

const (
	SoloIdle     SoloState = "idle"
	SoloClicked  SoloState = "clicked"
	SoloPolling  SoloState = "polling"
	SoloActive   SoloState = "active"
	SoloTimedOut SoloState = "timeout"
	SoloRetrying SoloState = "retrying"
	SoloFailed   SoloState = "failed"
)

// SoloResult is the outcome of soloing one track
type SoloResult struct {
	Track    Track         `json:"track"`
	Type     TrackType     `json:"track_type"`
	State    SoloState     `json:"state"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	UsedJS   bool          `json:"used_js"`
	// Synced is false when the active signal dropped during the audio sync window
	Synced bool `json:"synced"`
	// MixerConfirmed is true when a mixer node or an active solo was seen
	MixerConfirmed bool        `json:"mixer_confirmed"`
	Transitions    []SoloState `json:"transitions"`
}

// Active reports whether the solo registered
func (r SoloResult) Active() bool {
	return r.State == SoloActive
}

func (r *SoloResult) enter(s SoloState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

var activeDataStates = map[string]bool{
	"active":  true,
	"on":      true,
	"soloed":  true,
	"pressed": true,
	"true":    true,
}

// IsActive reports whether a solo control shows any active signal: an
// active class token, aria-pressed="true" or an active data-state
func IsActive(el browser.Element) bool {
	if class, ok, err := el.Attribute("class"); err == nil && ok {
		for _, token := range strings.Fields(strings.ToLower(class)) {
			if strings.Contains(token, "active") && !strings.Contains(token, "inactive") {
				return true
			}
		}
	}
	if pressed, ok, err := el.Attribute("aria-pressed"); err == nil && ok && strings.EqualFold(pressed, "true") {
		return true
	}
	if state, ok, err := el.Attribute("data-state"); err == nil && ok && activeDataStates[strings.ToLower(strings.TrimSpace(state))] {
		return true
	}
	return false
}

// soloActive re-resolves the control so re-rendered buttons are seen
func (m *Mixer) soloActive(track Track) bool {
	el, err := track.ResolveSolo(m.page, m.sel)
	if err != nil {
		return false
	}
	return IsActive(el)
}

// Solo activates the solo of track and waits until the mixer shows it. It
// never returns an error: every outcome, including a missing control or a
// cancelled context, is reported in the result.
func (m *Mixer) Solo(ctx context.Context, track Track, total int) (res SoloResult) {
	start := time.Now()
	res = SoloResult{Track: track, Type: ClassifyTrack(track.Name, total)}
	res.enter(SoloIdle)

	logger := m.logger.With().
		Str("track", track.Name).
		Str("index", track.Index).
		Str("track_type", string(res.Type)).
		Logger()

	defer func() {
		res.Elapsed = time.Since(start)
		m.metrics.ObserveSolo(string(res.Type), string(res.State), res.Elapsed)
	}()

	el, err := track.ResolveSolo(m.page, m.sel)
	if err != nil {
		logger.Error().Err(err).Str("selector", track.SoloSelector(m.sel)).Msg("Solo button not found")
		res.enter(SoloFailed)
		return res
	}

	res.Attempts = 1
	usedJS, err := browser.ClickWithFallback(el)
	res.UsedJS = usedJS
	if err != nil {
		logger.Warn().Err(err).Msg("Solo click failed")
	} else {
		res.enter(SoloClicked)
	}

	timeout := SoloTimeout(track.Name, total, m.timing)
	res.enter(SoloPolling)
	active, err := browser.WaitUntil(ctx, timeout, m.timing.PollInterval, func() bool {
		return m.soloActive(track)
	})
	if err != nil {
		res.enter(SoloFailed)
		return res
	}

	if !active {
		res.enter(SoloTimedOut)
		logger.Warn().Dur("timeout", timeout).Msg("Solo not active, retrying")

		for i := 0; i < m.timing.SoloRetryAttempts && !active; i++ {
			res.enter(SoloRetrying)
			if el, err := track.ResolveSolo(m.page, m.sel); err == nil {
				res.Attempts++
				if err := el.JSClick(); err != nil {
					logger.Debug().Err(err).Int("attempt", res.Attempts).Msg("Solo re-click failed")
				}
				res.UsedJS = true
			}
			active, err = browser.WaitUntil(ctx, m.timing.SoloRetryTimeout, m.timing.PollInterval, func() bool {
				return m.soloActive(track)
			})
			if err != nil {
				res.enter(SoloFailed)
				return res
			}
		}
	}

	if !active {
		res.enter(SoloFailed)
		class := ""
		if el, err := track.ResolveSolo(m.page, m.sel); err == nil {
			class, _, _ = el.Attribute("class")
		}
		logger.Error().
			Int("attempts", res.Attempts).
			Str("class", class).
			Msg("Solo did not activate")
		return res
	}

	res.enter(SoloActive)
	res.Synced = m.waitAudioSync(ctx, track)
	if !res.Synced {
		logger.Warn().Msg("Solo signal dropped during audio sync")
	}

	res.MixerConfirmed = m.mixerResponding()
	if !res.MixerConfirmed {
		logger.Debug().Msg("No mixer node confirmed the solo")
	}

	if err := browser.Sleep(ctx, m.timing.SoloSettleDelay); err != nil {
		return res
	}

	logger.Info().
		Int("attempts", res.Attempts).
		Dur("elapsed", time.Since(start)).
		Msg("Solo active")
	return res
}

// waitAudioSync watches the active signal for the sync window and reports
// whether it held
func (m *Mixer) waitAudioSync(ctx context.Context, track Track) bool {
	if m.timing.AudioSyncWindow <= 0 {
		return true
	}
	dropped := false
	_, _ = browser.WaitUntil(ctx, m.timing.AudioSyncWindow, m.timing.PollInterval, func() bool {
		if !m.soloActive(track) {
			dropped = true
		}
		return dropped
	})
	return !dropped
}

// mixerResponding cross-checks the mixer container and the solo controls
func (m *Mixer) mixerResponding() bool {
	for _, sel := range m.sel.MixerNodes {
		if ok, err := m.page.Exists(sel); err == nil && ok {
			return true
		}
	}
	return m.ActiveSolos() > 0
}

// soloButtons returns every solo control in the mixer
func (m *Mixer) soloButtons() []browser.Element {
	els, err := m.page.Elements(m.sel.Track + " " + m.sel.SoloButton)
	if err != nil {
		return nil
	}
	return els
}

// ActiveSolos counts the solo controls showing an active signal
func (m *Mixer) ActiveSolos() int {
	n := 0
	for _, el := range m.soloButtons() {
		if IsActive(el) {
			n++
		}
	}
	return n
}

// ClearSolos turns off every active solo and waits for the mixer to show
// none. It returns how many solos were cleared.
func (m *Mixer) ClearSolos(ctx context.Context) (int, error) {
	cleared := 0
	for _, el := range m.soloButtons() {
		if !IsActive(el) {
			continue
		}
		if _, err := browser.ClickWithFallback(el); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear solo")
			continue
		}
		cleared++
	}
	if cleared == 0 {
		return 0, nil
	}

	ok, err := browser.WaitUntil(ctx, m.timing.SoloRetryTimeout, m.timing.PollInterval, func() bool {
		return m.ActiveSolos() == 0
	})
	if err != nil {
		return cleared, err
	}
	if !ok {
		m.logger.Warn().Int("still_active", m.ActiveSolos()).Msg("Solos still active after clearing")
	}
	m.logger.Debug().Int("cleared", cleared).Msg("Solos cleared")
	return cleared, nil
}
