package browser

import (
	"errors"
	"time"
)

// LaunchOptions describes how the controlled Chrome instance is started
type LaunchOptions struct {
	Headless      bool          `json:"headless" mapstructure:"headless"`
	NoSandbox     bool          `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath    string        `json:"chrome_path,omitempty" mapstructure:"chrome_path"`
	UserDataDir   string        `json:"user_data_dir,omitempty" mapstructure:"user_data_dir"`
	WindowWidth   int           `json:"window_width" mapstructure:"window_width"`
	WindowHeight  int           `json:"window_height" mapstructure:"window_height"`
	DownloadDir   string        `json:"download_dir" mapstructure:"-"`
	ActionTimeout time.Duration `json:"action_timeout" mapstructure:"action_timeout"`
	NavTimeout    time.Duration `json:"nav_timeout" mapstructure:"nav_timeout"`
}

// Cookie represents a browser cookie
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	HTTPOnly bool      `json:"httpOnly"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"sameSite,omitempty"`
}

// StorageKind selects window.localStorage or window.sessionStorage
type StorageKind string

const (
	LocalStorage   StorageKind = "localStorage"
	SessionStorage StorageKind = "sessionStorage"
)

// Size is a window size in CSS pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SecurityConfig restricts which URLs the automation may open
type SecurityConfig struct {
	AllowFileUrls      bool     `json:"allowFileUrls" mapstructure:"allow_file_urls"`
	AllowLocalhostUrls bool     `json:"allowLocalhostUrls" mapstructure:"allow_localhost_urls"`
	AllowedDomains     []string `json:"allowedDomains,omitempty" mapstructure:"allowed_domains"`
	BlockedDomains     []string `json:"blockedDomains,omitempty" mapstructure:"blocked_domains"`
}

// Error types
type BrowserError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *BrowserError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNavigation      = "NAVIGATION_ERROR"
	ErrCodeTimeout         = "TIMEOUT_ERROR"
	ErrCodeElementNotFound = "ELEMENT_NOT_FOUND"
	ErrCodeScriptExecution = "SCRIPT_EXECUTION_ERROR"
	ErrCodeSecurity        = "SECURITY_ERROR"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
)

// HasCode reports whether err is a BrowserError with the given code
func HasCode(err error, code string) bool {
	var be *BrowserError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsNotFound reports a missing element
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeElementNotFound)
}

// IsTimeout reports an operation that ran out of time
func IsTimeout(err error) bool {
	return HasCode(err, ErrCodeTimeout)
}

func notFound(selector string) error {
	return &BrowserError{
		Code:    ErrCodeElementNotFound,
		Message: "Element not found: " + selector,
		Details: map[string]interface{}{
			"selector": selector,
		},
	}
}
