package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://www.karaoke-version.com/my/login.html", cfg.Site.LoginURL)
	assert.Equal(t, "songs.yaml", cfg.SongsFile)
	assert.Equal(t, ".cache/session_data.json", cfg.Session.Path)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{".mp3", ".aif", ".crdownload"}, cfg.Download.Extensions)
	assert.Equal(t, 30, cfg.Download.NameLengthThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "logs", cfg.LogsDir)
	assert.Equal(t, []string{"*.karaoke-version.com"}, cfg.Browser.Security.AllowedDomains)
	assert.Equal(t, ".track", cfg.Selectors.Track)
	assert.Equal(t, "data-index", cfg.Selectors.TrackIndexAttr)
}

func TestDefaultTimingOrdering(t *testing.T) {
	timing := DefaultTiming()

	assert.Greater(t, timing.SoloClickTrack, timing.SoloRhythm)
	assert.Greater(t, timing.SoloRhythm, timing.SoloComplex)
	assert.GreaterOrEqual(t, timing.SoloComplex, timing.SoloSimple)
	assert.Less(t, timing.SoloRetryTimeout, timing.SoloSimple)
	assert.Equal(t, 3, timing.SoloRetryAttempts)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Site.Username = "singer@example.com"
		cfg.Site.Password = "hunter2"
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing username", func(t *testing.T) {
		cfg := valid()
		cfg.Site.Username = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "KV_USERNAME")
	})

	t.Run("missing password", func(t *testing.T) {
		cfg := valid()
		cfg.Site.Password = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "KV_PASSWORD")
	})

	t.Run("missing download folder", func(t *testing.T) {
		cfg := valid()
		cfg.DownloadFolder = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative max tracks", func(t *testing.T) {
		cfg := valid()
		cfg.Automation.MaxTracks = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Site.Username = "singer@example.com"
	cfg.Site.Password = "hunter2"

	str := cfg.String()
	assert.Contains(t, str, "singer@example.com")
	assert.Contains(t, str, "download_folder")
	assert.False(t, strings.Contains(str, "hunter2"))
}
