package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// SecurityValidator keeps the automation on the karaoke site
type SecurityValidator struct {
	config SecurityConfig
}

// NewSecurityValidator creates a new security validator
func NewSecurityValidator(config SecurityConfig) *SecurityValidator {
	return &SecurityValidator{
		config: config,
	}
}

// ValidateURL validates a URL and checks security policies
func (sv *SecurityValidator) ValidateURL(urlStr string) error {
	parsedURL, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil || parsedURL.Scheme == "" {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("Invalid URL format: %s", urlStr),
		}
	}

	switch parsedURL.Scheme {
	case "http", "https":
	case "file":
		if !sv.config.AllowFileUrls {
			sv.logSecurityViolation("file_url_blocked", urlStr)
			return &BrowserError{
				Code:    ErrCodeSecurity,
				Message: "file:// URLs are not allowed",
				Details: map[string]interface{}{
					"url": urlStr,
				},
			}
		}
		return nil
	default:
		sv.logSecurityViolation("scheme_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("URL scheme not allowed: %s", parsedURL.Scheme),
		}
	}

	if parsedURL.Host == "" {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("URL has no host: %s", urlStr),
		}
	}

	if sv.isLocalhostURL(parsedURL) && !sv.config.AllowLocalhostUrls {
		sv.logSecurityViolation("localhost_url_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: "localhost URLs are not allowed",
			Details: map[string]interface{}{
				"url": urlStr,
			},
		}
	}

	if len(sv.config.AllowedDomains) > 0 && !sv.isDomainAllowed(parsedURL.Host) {
		sv.logSecurityViolation("domain_not_allowed", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("Domain not in allowed list: %s", parsedURL.Host),
			Details: map[string]interface{}{
				"url":    urlStr,
				"domain": parsedURL.Host,
			},
		}
	}

	if len(sv.config.BlockedDomains) > 0 && sv.isDomainBlocked(parsedURL.Host) {
		sv.logSecurityViolation("domain_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("Domain is blocked: %s", parsedURL.Host),
			Details: map[string]interface{}{
				"url":    urlStr,
				"domain": parsedURL.Host,
			},
		}
	}

	return nil
}

// isLocalhostURL checks if a URL points to localhost
func (sv *SecurityValidator) isLocalhostURL(parsedURL *url.URL) bool {
	host := strings.ToLower(parsedURL.Hostname())

	return host == "localhost" ||
		host == "::1" ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(host, "localhost.")
}

func (sv *SecurityValidator) isDomainAllowed(host string) bool {
	host = stripPort(host)
	for _, allowed := range sv.config.AllowedDomains {
		if matchDomain(host, allowed) {
			return true
		}
	}
	return false
}

func (sv *SecurityValidator) isDomainBlocked(host string) bool {
	host = stripPort(host)
	for _, blocked := range sv.config.BlockedDomains {
		if matchDomain(host, blocked) {
			return true
		}
	}
	return false
}

func stripPort(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		return strings.ToLower(host[:idx])
	}
	return strings.ToLower(host)
}

// matchDomain checks if a host matches a domain pattern.
// "*.example.com" and ".example.com" match the apex and any subdomain.
func matchDomain(host, pattern string) bool {
	pattern = strings.ToLower(pattern)
	if host == pattern {
		return true
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[2:]
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}

	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern) || host == pattern[1:]
	}

	return false
}

func (sv *SecurityValidator) logSecurityViolation(violationType, details string) {
	log.Warn().
		Str("component", "browser").
		Str("violation", violationType).
		Str("url", details).
		Msg("URL rejected by security policy")
}

// Origin returns scheme://host of a URL, used to scope cookie replay
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("Invalid URL format: %s", rawURL),
		}
	}
	return u.Scheme + "://" + u.Host, nil
}

// ValidateCookie rejects cookies that cannot be replayed into a fresh context
func ValidateCookie(cookie Cookie) error {
	if cookie.Name == "" {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: "Cookie name is required",
		}
	}

	if cookie.Domain == "" {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: "Cookie domain is required",
		}
	}

	if cookie.SameSite != "" {
		validSameSite := map[string]bool{
			"Strict": true,
			"Lax":    true,
			"None":   true,
		}
		if !validSameSite[cookie.SameSite] {
			return &BrowserError{
				Code:    ErrCodeValidation,
				Message: fmt.Sprintf("Invalid SameSite value: %s", cookie.SameSite),
			}
		}
	}

	return nil
}

// IsValidSelector checks if a configured selector is usable
func IsValidSelector(selector string) bool {
	if strings.TrimSpace(selector) == "" {
		return false
	}

	dangerous := []string{"<script", "javascript:", "onerror=", "onload="}
	lowerSelector := strings.ToLower(selector)
	for _, pattern := range dangerous {
		if strings.Contains(lowerSelector, pattern) {
			return false
		}
	}

	return true
}
