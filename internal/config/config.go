package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/kvstems/pkg/browser"
)

// Config represents the main kvstems configuration
type Config struct {
	// Site credentials and URLs
	Site SiteConfig `json:"site" mapstructure:"site"`

	// Songs file
	SongsFile string `json:"songs_file" mapstructure:"songs_file"`

	// Download folder, one sub-folder per song
	DownloadFolder string `json:"download_folder" mapstructure:"download_folder"`

	// Session persistence
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Browser launch and URL policy
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Automation behaviour
	Automation AutomationConfig `json:"automation" mapstructure:"automation"`

	// Download handling
	Download DownloadConfig `json:"download" mapstructure:"download"`

	// Timing constants for polling loops
	Timing Timing `json:"timing" mapstructure:"timing"`

	// DOM selectors for the karaoke site
	Selectors Selectors `json:"selectors" mapstructure:"selectors"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Reports directory (stats, metrics, perf results)
	LogsDir string `json:"logs_dir" mapstructure:"logs_dir"`
}

// SiteConfig holds credentials and site URLs
type SiteConfig struct {
	Username   string `json:"username" mapstructure:"username"`
	Password   string `json:"-" mapstructure:"password"`
	LoginURL   string `json:"login_url" mapstructure:"login_url"`
	AccountURL string `json:"account_url" mapstructure:"account_url"`
	SearchURL  string `json:"search_url" mapstructure:"search_url"`
}

// SessionConfig holds session snapshot settings
type SessionConfig struct {
	Path string        `json:"path" mapstructure:"path"`
	TTL  time.Duration `json:"ttl" mapstructure:"ttl"`
}

// BrowserConfig holds browser launch settings
type BrowserConfig struct {
	Launch   browser.LaunchOptions  `json:"launch" mapstructure:"launch"`
	Security browser.SecurityConfig `json:"security" mapstructure:"security"`
}

// AutomationConfig holds per-run behaviour
type AutomationConfig struct {
	MaxTracks    int  `json:"max_tracks" mapstructure:"max_tracks"`
	ForceLogin   bool `json:"force_login" mapstructure:"force_login"`
	ClearSession bool `json:"clear_session" mapstructure:"clear_session"`
}

// DownloadConfig holds download detection settings
type DownloadConfig struct {
	Extensions []string `json:"extensions" mapstructure:"extensions"`
	// Names longer than this are assumed to be site downloads
	NameLengthThreshold int  `json:"name_length_threshold" mapstructure:"name_length_threshold"`
	TagID3              bool `json:"tag_id3" mapstructure:"tag_id3"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
	File   string `json:"file" mapstructure:"file"`
}

// Timing is every delay and timeout the automation uses. It is passed by
// value; baselines replace it wholesale.
type Timing struct {
	PollInterval          time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	LoginTimeout          time.Duration `json:"login_timeout" mapstructure:"login_timeout"`
	TrackDiscoveryTimeout time.Duration `json:"track_discovery_timeout" mapstructure:"track_discovery_timeout"`

	SoloClickTrack    time.Duration `json:"solo_click_track" mapstructure:"solo_click_track"`
	SoloRhythm        time.Duration `json:"solo_rhythm" mapstructure:"solo_rhythm"`
	SoloSimple        time.Duration `json:"solo_simple" mapstructure:"solo_simple"`
	SoloComplex       time.Duration `json:"solo_complex" mapstructure:"solo_complex"`
	SoloRetryAttempts int           `json:"solo_retry_attempts" mapstructure:"solo_retry_attempts"`
	SoloRetryTimeout  time.Duration `json:"solo_retry_timeout" mapstructure:"solo_retry_timeout"`
	AudioSyncWindow   time.Duration `json:"audio_sync_window" mapstructure:"audio_sync_window"`
	SoloSettleDelay   time.Duration `json:"solo_settle_delay" mapstructure:"solo_settle_delay"`

	KeyStepDelay time.Duration `json:"key_step_delay" mapstructure:"key_step_delay"`

	DownloadPollInterval    time.Duration `json:"download_poll_interval" mapstructure:"download_poll_interval"`
	DownloadStartTimeout    time.Duration `json:"download_start_timeout" mapstructure:"download_start_timeout"`
	DownloadCompleteTimeout time.Duration `json:"download_complete_timeout" mapstructure:"download_complete_timeout"`
	BetweenTracksDelay      time.Duration `json:"between_tracks_delay" mapstructure:"between_tracks_delay"`
}

// Selectors are the site's DOM conventions. Lists are tried in order.
type Selectors struct {
	Track          string   `json:"track" mapstructure:"track"`
	TrackCaption   string   `json:"track_caption" mapstructure:"track_caption"`
	TrackIndexAttr string   `json:"track_index_attr" mapstructure:"track_index_attr"`
	SoloButton     string   `json:"solo_button" mapstructure:"solo_button"`
	MixerNodes     []string `json:"mixer_nodes" mapstructure:"mixer_nodes"`
	PitchUp        []string `json:"pitch_up" mapstructure:"pitch_up"`
	PitchDown      []string `json:"pitch_down" mapstructure:"pitch_down"`
	PitchDisplay   []string `json:"pitch_display" mapstructure:"pitch_display"`
	Download       []string `json:"download" mapstructure:"download"`
	Username       []string `json:"username" mapstructure:"username"`
	Password       []string `json:"password" mapstructure:"password"`
	Submit         []string `json:"submit" mapstructure:"submit"`
	SearchResult   string   `json:"search_result" mapstructure:"search_result"`
	ResultSong     string   `json:"result_song" mapstructure:"result_song"`
	ResultArtist   string   `json:"result_artist" mapstructure:"result_artist"`
}

// DefaultTiming returns the timing used when no baseline is selected
func DefaultTiming() Timing {
	return Timing{
		PollInterval:          250 * time.Millisecond,
		LoginTimeout:          15 * time.Second,
		TrackDiscoveryTimeout: 20 * time.Second,

		SoloClickTrack:    20 * time.Second,
		SoloRhythm:        12 * time.Second,
		SoloSimple:        6 * time.Second,
		SoloComplex:       9 * time.Second,
		SoloRetryAttempts: 3,
		SoloRetryTimeout:  3 * time.Second,
		AudioSyncWindow:   2 * time.Second,
		SoloSettleDelay:   time.Second,

		KeyStepDelay: 300 * time.Millisecond,

		DownloadPollInterval:    time.Second,
		DownloadStartTimeout:    30 * time.Second,
		DownloadCompleteTimeout: 3 * time.Minute,
		BetweenTracksDelay:      time.Second,
	}
}

// DefaultSelectors returns the selectors matching the current site markup
func DefaultSelectors() Selectors {
	return Selectors{
		Track:          ".track",
		TrackCaption:   ".track__caption",
		TrackIndexAttr: "data-index",
		SoloButton:     "button.track__solo",
		MixerNodes:     []string{".mixer", "#mixer", "[class*='mixer']"},
		PitchUp:        []string{"button.pitch__button--up", "button[title*='up' i]", ".key-up"},
		PitchDown:      []string{"button.pitch__button--down", "button[title*='down' i]", ".key-down"},
		PitchDisplay:   []string{".pitch__current", ".pitch__value", "#pitch-value"},
		Download: []string{
			"a.download",
			"button.download",
			"a[href*='download']",
			".btn--download",
		},
		Username: []string{
			"#frm_login",
			"input[name='frm_login']",
			"input[name='username']",
			"input[type='email']",
		},
		Password: []string{
			"#frm_password",
			"input[name='frm_password']",
			"input[type='password']",
		},
		Submit: []string{
			"#sbm",
			"button[type='submit']",
			"input[type='submit']",
			"form button",
		},
		SearchResult: ".song-list__item, .search-result",
		ResultSong:   ".song__title, .song-name",
		ResultArtist: ".song__artist, .artist-name",
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			LoginURL:   "https://www.karaoke-version.com/my/login.html",
			AccountURL: "https://www.karaoke-version.com/my/index.html",
			SearchURL:  "https://www.karaoke-version.com/search/?q=%s",
		},
		SongsFile:      "songs.yaml",
		DownloadFolder: "downloads",
		Session: SessionConfig{
			Path: ".cache/session_data.json",
			TTL:  24 * time.Hour,
		},
		Browser: BrowserConfig{
			Launch: browser.LaunchOptions{
				Headless:      false,
				WindowWidth:   1920,
				WindowHeight:  1080,
				ActionTimeout: 10 * time.Second,
				NavTimeout:    30 * time.Second,
			},
			Security: browser.SecurityConfig{
				AllowedDomains: []string{"*.karaoke-version.com"},
			},
		},
		Download: DownloadConfig{
			Extensions:          []string{".mp3", ".aif", ".crdownload"},
			NameLengthThreshold: 30,
		},
		Timing:    DefaultTiming(),
		Selectors: DefaultSelectors(),
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		LogsDir: "logs",
	}
}

// String returns a JSON representation of the config. The password is never
// included.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the settings a run cannot start without
func (c *Config) Validate() error {
	if c.Site.Username == "" {
		return fmt.Errorf("no credentials configured: KV_USERNAME is required")
	}
	if c.Site.Password == "" {
		return fmt.Errorf("no credentials configured: KV_PASSWORD is required")
	}
	if c.Site.LoginURL == "" {
		return fmt.Errorf("login URL is required")
	}
	if c.DownloadFolder == "" {
		return fmt.Errorf("download folder is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Automation.MaxTracks < 0 {
		return fmt.Errorf("max_tracks must be >= 0")
	}
	return nil
}
