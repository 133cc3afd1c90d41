package config

import (
	"testing"
	"time"

	"github.com/harun/kvstems/pkg/browser"
	"github.com/stretchr/testify/assert"
)

func TestValidateSiteURL(t *testing.T) {
	v := NewValidator()
	site := browser.SecurityConfig{AllowedDomains: []string{"*.karaoke-version.com"}}

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"login page", "https://www.karaoke-version.com/my/login.html", false},
		{"empty", "", true},
		{"other domain", "https://evil.example.com/login", true},
		{"not a URL", "karaoke-version", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSiteURL("login_url", tt.url, site)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSearchURL(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateSearchURL(""))
	assert.NoError(t, v.ValidateSearchURL("https://www.karaoke-version.com/search/?q=%s"))
	assert.Error(t, v.ValidateSearchURL("https://www.karaoke-version.com/search/"))
	assert.Error(t, v.ValidateSearchURL("https://x/%s/%s"))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("verbose"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidateExtensions(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateExtensions([]string{".mp3", ".crdownload"}))
	assert.Error(t, v.ValidateExtensions(nil))
	assert.Error(t, v.ValidateExtensions([]string{"mp3"}))
	assert.Error(t, v.ValidateExtensions([]string{"."}))
}

func TestValidateTiming(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateTiming(DefaultTiming()))
	})

	t.Run("zero poll interval", func(t *testing.T) {
		timing := DefaultTiming()
		timing.PollInterval = 0
		errs := v.ValidateTiming(timing)
		assert.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "poll_interval")
	})

	t.Run("click track shorter than rhythm", func(t *testing.T) {
		timing := DefaultTiming()
		timing.SoloClickTrack = time.Second
		errs := v.ValidateTiming(timing)
		assert.NotEmpty(t, errs)
	})

	t.Run("negative settle delay", func(t *testing.T) {
		timing := DefaultTiming()
		timing.SoloSettleDelay = -time.Second
		assert.Len(t, v.ValidateTiming(timing), 1)
	})
}

func TestValidateSelectors(t *testing.T) {
	v := NewValidator()
	assert.Empty(t, v.ValidateSelectors(DefaultSelectors()))

	s := DefaultSelectors()
	s.Track = ""
	s.Download = nil
	s.Submit = []string{"button[onerror=alert(1)]"}
	assert.Len(t, v.ValidateSelectors(s), 3)
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("default config", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Site.LoginURL = "https://phishing.example.com/login"
		cfg.Session.TTL = 0
		cfg.Logging.Level = "loud"
		cfg.Download.Extensions = []string{"mp3"}

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 4)
	})
}
