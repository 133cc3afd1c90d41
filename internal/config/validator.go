package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/harun/kvstems/pkg/browser"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSiteURL validates a site URL against the browser URL policy
func (v *Validator) ValidateSiteURL(name, rawURL string, security browser.SecurityConfig) error {
	if rawURL == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if err := browser.NewSecurityValidator(security).ValidateURL(rawURL); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ValidateSearchURL checks the search template has exactly one %s verb
func (v *Validator) ValidateSearchURL(template string) error {
	if template == "" {
		return nil // Converter falls back to the site search page
	}
	if strings.Count(template, "%s") != 1 {
		return fmt.Errorf("search_url must contain exactly one %%s, got %q", template)
	}
	if _, err := url.Parse(fmt.Sprintf(template, "x")); err != nil {
		return fmt.Errorf("invalid search_url: %w", err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateExtensions checks download extensions are dotted
func (v *Validator) ValidateExtensions(exts []string) error {
	if len(exts) == 0 {
		return fmt.Errorf("download.extensions cannot be empty")
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid download extension: %q (must start with a dot)", ext)
		}
	}
	return nil
}

// ValidateTiming checks every duration is positive and the solo timeouts
// keep their ordering
func (v *Validator) ValidateTiming(t Timing) []error {
	var errors []error

	positive := map[string]time.Duration{
		"poll_interval":             t.PollInterval,
		"login_timeout":             t.LoginTimeout,
		"track_discovery_timeout":   t.TrackDiscoveryTimeout,
		"solo_click_track":          t.SoloClickTrack,
		"solo_rhythm":               t.SoloRhythm,
		"solo_simple":               t.SoloSimple,
		"solo_complex":              t.SoloComplex,
		"solo_retry_timeout":        t.SoloRetryTimeout,
		"download_poll_interval":    t.DownloadPollInterval,
		"download_start_timeout":    t.DownloadStartTimeout,
		"download_complete_timeout": t.DownloadCompleteTimeout,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			errors = append(errors, fmt.Errorf("timing.%s must be positive", name))
		}
	}

	nonNegative := map[string]time.Duration{
		"audio_sync_window":    t.AudioSyncWindow,
		"solo_settle_delay":    t.SoloSettleDelay,
		"key_step_delay":       t.KeyStepDelay,
		"between_tracks_delay": t.BetweenTracksDelay,
	}
	for _, name := range sortedKeys(nonNegative) {
		if nonNegative[name] < 0 {
			errors = append(errors, fmt.Errorf("timing.%s must be >= 0", name))
		}
	}

	if t.SoloRetryAttempts < 0 {
		errors = append(errors, fmt.Errorf("timing.solo_retry_attempts must be >= 0"))
	}

	// Click tracks take the longest to remix, rhythm tracks sit in between
	if t.SoloClickTrack < t.SoloRhythm {
		errors = append(errors, fmt.Errorf("timing.solo_click_track (%s) must be >= solo_rhythm (%s)", t.SoloClickTrack, t.SoloRhythm))
	}
	if t.SoloRhythm < t.SoloSimple || t.SoloRhythm < t.SoloComplex {
		errors = append(errors, fmt.Errorf("timing.solo_rhythm (%s) must be >= solo_simple and solo_complex", t.SoloRhythm))
	}

	return errors
}

// ValidateSelectors checks the configured selectors are usable
func (v *Validator) ValidateSelectors(s Selectors) []error {
	var errors []error

	single := map[string]string{
		"track":         s.Track,
		"track_caption": s.TrackCaption,
		"solo_button":   s.SoloButton,
	}
	for _, name := range sortedKeys(single) {
		if !browser.IsValidSelector(single[name]) {
			errors = append(errors, fmt.Errorf("selectors.%s is invalid: %q", name, single[name]))
		}
	}

	lists := map[string][]string{
		"download": s.Download,
		"username": s.Username,
		"password": s.Password,
		"submit":   s.Submit,
	}
	for _, name := range sortedKeys(lists) {
		if len(lists[name]) == 0 {
			errors = append(errors, fmt.Errorf("selectors.%s needs at least one candidate", name))
			continue
		}
		for _, sel := range lists[name] {
			if !browser.IsValidSelector(sel) {
				errors = append(errors, fmt.Errorf("selectors.%s has invalid candidate %q", name, sel))
			}
		}
	}

	return errors
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	security := cfg.Browser.Security
	if err := v.ValidateSiteURL("login_url", cfg.Site.LoginURL, security); err != nil {
		errors = append(errors, err)
	}
	if cfg.Site.AccountURL != "" {
		if err := v.ValidateSiteURL("account_url", cfg.Site.AccountURL, security); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateSearchURL(cfg.Site.SearchURL); err != nil {
		errors = append(errors, err)
	}

	if cfg.Session.TTL <= 0 {
		errors = append(errors, fmt.Errorf("session.ttl must be positive"))
	}
	if cfg.Automation.MaxTracks < 0 {
		errors = append(errors, fmt.Errorf("automation.max_tracks must be >= 0"))
	}
	if cfg.Download.NameLengthThreshold < 0 {
		errors = append(errors, fmt.Errorf("download.name_length_threshold must be >= 0"))
	}
	if err := v.ValidateExtensions(cfg.Download.Extensions); err != nil {
		errors = append(errors, err)
	}

	errors = append(errors, v.ValidateTiming(cfg.Timing)...)
	errors = append(errors, v.ValidateSelectors(cfg.Selectors)...)

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
