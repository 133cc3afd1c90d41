// Package session saves the logged-in browser state to disk and replays it
// into a fresh browser so most runs skip the interactive login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harun/kvstems/internal/fsutil"
	"github.com/harun/kvstems/pkg/browser"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a saved session is trusted
const DefaultTTL = 24 * time.Hour

var (
	// ErrNoSnapshot means no session file exists
	ErrNoSnapshot = errors.New("no saved session")
	// ErrExpired means the saved session was older than the TTL and has been deleted
	ErrExpired = errors.New("saved session expired")
)

// Snapshot is the persisted browser state
type Snapshot struct {
	Cookies        []browser.Cookie  `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	Timestamp      time.Time         `json:"timestamp"`
	UserAgent      string            `json:"user_agent"`
	WindowSize     browser.Size      `json:"window_size"`
	// Origin the storage maps were captured on
	Origin string `json:"origin"`
}

// Expired reports whether the snapshot is older than ttl at now
func (s *Snapshot) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.Timestamp) > ttl
}

// RestoreResult describes how a restore attempt ended
type RestoreResult string

const (
	RestoreOK       RestoreResult = "restored"
	RestoreMissing  RestoreResult = "missing"
	RestoreExpired  RestoreResult = "expired"
	RestoreInvalid  RestoreResult = "invalid"
	RestoreFailed   RestoreResult = "failed"
	RestoreRejected RestoreResult = "rejected"
)

// OK reports a usable restored session
func (r RestoreResult) OK() bool {
	return r == RestoreOK
}

// Store persists a single session snapshot
type Store struct {
	path   string
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a store backed by path
func NewStore(path string, ttl time.Duration, logger zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		path:   path,
		ttl:    ttl,
		logger: logger.With().Str("component", "session").Logger(),
		now:    time.Now,
	}
}

// Path returns the session file path
func (s *Store) Path() string {
	return s.path
}

// Capture reads the current browser state from page
func (s *Store) Capture(page browser.Page) (*Snapshot, error) {
	cookies, err := page.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	local, err := page.Storage(browser.LocalStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to read localStorage: %w", err)
	}
	sess, err := page.Storage(browser.SessionStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessionStorage: %w", err)
	}

	snap := &Snapshot{
		Cookies:        cookies,
		LocalStorage:   local,
		SessionStorage: sess,
		Timestamp:      s.now(),
	}

	// Informational fields; a failure here does not spoil the snapshot
	if ua, err := page.UserAgent(); err == nil {
		snap.UserAgent = ua
	}
	if size, err := page.WindowSize(); err == nil {
		snap.WindowSize = size
	}
	if u, err := page.URL(); err == nil {
		if origin, err := browser.Origin(u); err == nil {
			snap.Origin = origin
		}
	}

	return snap, nil
}

// Save captures the page state and writes it with owner-only permissions
func (s *Store) Save(page browser.Page) error {
	snap, err := s.Capture(page)
	if err != nil {
		return err
	}
	return s.Write(snap)
}

// Write persists a snapshot atomically
func (s *Store) Write(snap *Snapshot) error {
	if err := fsutil.WriteJSON(s.path, snap, 0600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info().
		Str("path", s.path).
		Int("cookies", len(snap.Cookies)).
		Int("local_storage", len(snap.LocalStorage)).
		Int("session_storage", len(snap.SessionStorage)).
		Msg("Session saved")

	return nil
}

// Load reads the saved snapshot. Expired or undecodable files are deleted.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.remove()
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if snap.Timestamp.IsZero() {
		s.remove()
		return nil, fmt.Errorf("failed to decode session: missing timestamp")
	}

	if snap.Expired(s.now(), s.ttl) {
		s.logger.Info().
			Time("saved_at", snap.Timestamp).
			Dur("ttl", s.ttl).
			Msg("Saved session expired")
		s.remove()
		return nil, ErrExpired
	}

	return &snap, nil
}

// Clear deletes the saved session
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info().Str("path", s.path).Msg("Session cleared")
	return nil
}

func (s *Store) remove() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to delete session file")
	}
}

// Restore replays the saved session into page and asks verify whether the
// site accepted it. It never fails the run; any problem is reported in the
// result so the caller can fall back to an interactive login.
func (s *Store) Restore(ctx context.Context, page browser.Page, verify func(context.Context) bool) RestoreResult {
	snap, err := s.Load()
	switch {
	case errors.Is(err, ErrNoSnapshot):
		s.logger.Debug().Msg("No saved session")
		return RestoreMissing
	case errors.Is(err, ErrExpired):
		return RestoreExpired
	case err != nil:
		s.logger.Warn().Err(err).Msg("Discarding unreadable session")
		return RestoreInvalid
	}

	origin := snap.Origin
	if origin == "" {
		origin = originFromCookies(snap.Cookies)
	}
	if origin == "" {
		s.logger.Warn().Msg("Saved session has no origin")
		s.remove()
		return RestoreInvalid
	}

	// Storage is per origin, so the page must be on the site first
	if err := page.Navigate(ctx, origin); err != nil {
		s.logger.Warn().Err(err).Str("origin", origin).Msg("Failed to open site for session restore")
		return RestoreFailed
	}

	now := s.now()
	var cookies []browser.Cookie
	for _, c := range snap.Cookies {
		if err := browser.ValidateCookie(c); err != nil {
			s.logger.Debug().Str("cookie", c.Name).Err(err).Msg("Skipping cookie")
			continue
		}
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, c)
	}
	if err := page.SetCookies(cookies); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to restore cookies")
		return RestoreFailed
	}
	if err := page.SetStorage(browser.LocalStorage, snap.LocalStorage); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to restore localStorage")
		return RestoreFailed
	}
	if err := page.SetStorage(browser.SessionStorage, snap.SessionStorage); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to restore sessionStorage")
		return RestoreFailed
	}

	if err := page.Reload(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to reload after session restore")
		return RestoreFailed
	}

	if verify != nil && !verify(ctx) {
		s.logger.Info().Msg("Site rejected saved session")
		return RestoreRejected
	}

	s.logger.Info().
		Int("cookies", len(cookies)).
		Dur("age", now.Sub(snap.Timestamp).Round(time.Minute)).
		Msg("Session restored")
	return RestoreOK
}

func originFromCookies(cookies []browser.Cookie) string {
	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == "" {
			continue
		}
		if !strings.Contains(domain, ".") || strings.HasPrefix(domain, "www.") {
			return "https://" + domain
		}
		return "https://www." + domain
	}
	return ""
}
