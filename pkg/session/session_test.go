package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harun/kvstems/pkg/browser"
	"github.com/harun/kvstems/pkg/browser/browsertest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountURL = "https://www.karaoke-version.com/my/index.html"

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), ".cache", "session_data.json"), DefaultTTL, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func writeSnapshot(t *testing.T, s *Store, snap Snapshot) {
	t.Helper()
	require.NoError(t, s.Write(&snap))
}

func loggedInPage(t *testing.T) *browsertest.Page {
	t.Helper()
	page := browsertest.New(`<html><body><a href="/my/">My Account</a></body></html>`)
	require.NoError(t, page.Navigate(context.Background(), accountURL))
	require.NoError(t, page.SetCookies([]browser.Cookie{
		{Name: "PHPSESSID", Value: "abc123", Domain: ".karaoke-version.com", Path: "/"},
	}))
	require.NoError(t, page.SetStorage(browser.LocalStorage, map[string]string{"mixer.volume": "0.8"}))
	require.NoError(t, page.SetStorage(browser.SessionStorage, map[string]string{"cart": "[]"}))
	return page
}

func TestSnapshotExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, (&Snapshot{Timestamp: now.Add(-25 * time.Hour)}).Expired(now, DefaultTTL))
	assert.False(t, (&Snapshot{Timestamp: now.Add(-1 * time.Hour)}).Expired(now, DefaultTTL))
	assert.False(t, (&Snapshot{Timestamp: now.Add(-24 * time.Hour)}).Expired(now, DefaultTTL))
}

func TestSaveAndLoad(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	require.NoError(t, s.Save(loggedInPage(t)))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://www.karaoke-version.com", snap.Origin)
	assert.Equal(t, "PHPSESSID", snap.Cookies[0].Name)
	assert.Equal(t, "0.8", snap.LocalStorage["mixer.volume"])
	assert.Equal(t, "[]", snap.SessionStorage["cart"])
	assert.Equal(t, 1920, snap.WindowSize.Width)
	assert.NotEmpty(t, snap.UserAgent)
	assert.True(t, now.Equal(snap.Timestamp))
}

func TestLoadTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("25 hours old is invalid and deleted", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{Timestamp: now.Add(-25 * time.Hour), Origin: "https://www.karaoke-version.com"})

		snap, err := s.Load()
		assert.ErrorIs(t, err, ErrExpired)
		assert.Nil(t, snap)

		_, err = os.Stat(s.Path())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("1 hour old is valid", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{Timestamp: now.Add(-1 * time.Hour), Origin: "https://www.karaoke-version.com"})

		snap, err := s.Load()
		require.NoError(t, err)
		assert.NotNil(t, snap)

		_, err = os.Stat(s.Path())
		assert.NoError(t, err)
	})
}

func TestLoadErrors(t *testing.T) {
	now := time.Now()

	t.Run("missing file", func(t *testing.T) {
		_, err := newTestStore(t, now).Load()
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("corrupt file is deleted", func(t *testing.T) {
		s := newTestStore(t, now)
		require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
		require.NoError(t, os.WriteFile(s.Path(), []byte("\x80\x04pickle"), 0600))

		_, err := s.Load()
		assert.Error(t, err)
		_, err = os.Stat(s.Path())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing timestamp is rejected", func(t *testing.T) {
		s := newTestStore(t, now)
		require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
		data, _ := json.Marshal(map[string]any{"cookies": []any{}})
		require.NoError(t, os.WriteFile(s.Path(), data, 0600))

		_, err := s.Load()
		assert.Error(t, err)
	})
}

func TestClear(t *testing.T) {
	s := newTestStore(t, time.Now())
	require.NoError(t, s.Clear(), "clearing a missing session is fine")

	writeSnapshot(t, s, Snapshot{Timestamp: time.Now()})
	require.NoError(t, s.Clear())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

// sitePage renders the account page only when the session cookie is present
func sitePage() *browsertest.Page {
	page := browsertest.New(`<html><body><form><input type="password" id="frm_password"></form></body></html>`)
	page.OnLoad(func(dom browsertest.DOM, url string) {
		for _, c := range dom.Cookies() {
			if c.Name == "PHPSESSID" && c.Value == "abc123" {
				dom.Load(`<html><body><a href="/my/">My Account</a></body></html>`)
				return
			}
		}
	})
	return page
}

func hasAccountLink(page *browsertest.Page) func(context.Context) bool {
	return func(ctx context.Context) bool {
		if err := page.Navigate(ctx, accountURL); err != nil {
			return false
		}
		text, _ := page.BodyText()
		return strings.Contains(text, "My Account")
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("replays cookies and storage", func(t *testing.T) {
		s := newTestStore(t, now)
		require.NoError(t, s.Save(loggedInPage(t)))

		page := sitePage()
		result := s.Restore(ctx, page, hasAccountLink(page))

		assert.Equal(t, RestoreOK, result)
		assert.True(t, result.OK())
		assert.Equal(t, "https://www.karaoke-version.com", page.Navigations()[0])

		local, err := page.Storage(browser.LocalStorage)
		require.NoError(t, err)
		assert.Equal(t, "0.8", local["mixer.volume"])
	})

	t.Run("missing session", func(t *testing.T) {
		s := newTestStore(t, now)
		page := sitePage()
		assert.Equal(t, RestoreMissing, s.Restore(ctx, page, hasAccountLink(page)))
		assert.Empty(t, page.Navigations())
	})

	t.Run("expired session", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{Timestamp: now.Add(-25 * time.Hour), Origin: "https://www.karaoke-version.com"})
		page := sitePage()
		assert.Equal(t, RestoreExpired, s.Restore(ctx, page, hasAccountLink(page)))
	})

	t.Run("site rejects stale cookie", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{
			Timestamp: now.Add(-time.Hour),
			Cookies:   []browser.Cookie{{Name: "PHPSESSID", Value: "revoked", Domain: ".karaoke-version.com"}},
		})
		page := sitePage()
		assert.Equal(t, RestoreRejected, s.Restore(ctx, page, hasAccountLink(page)))
		// Origin falls back to the cookie domain
		assert.Equal(t, "https://www.karaoke-version.com", page.Navigations()[0])
	})

	t.Run("expired and invalid cookies are skipped", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{
			Timestamp: now.Add(-time.Hour),
			Origin:    "https://www.karaoke-version.com",
			Cookies: []browser.Cookie{
				{Name: "PHPSESSID", Value: "abc123", Domain: ".karaoke-version.com"},
				{Name: "old", Value: "x", Domain: ".karaoke-version.com", Expires: now.Add(-time.Minute)},
				{Name: "", Value: "nameless", Domain: ".karaoke-version.com"},
			},
		})
		page := sitePage()
		assert.Equal(t, RestoreOK, s.Restore(ctx, page, nil))

		cookies, err := page.Cookies()
		require.NoError(t, err)
		require.Len(t, cookies, 1)
		assert.Equal(t, "PHPSESSID", cookies[0].Name)
	})

	t.Run("navigation failure", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{Timestamp: now.Add(-time.Hour), Origin: "https://www.karaoke-version.com"})
		page := sitePage().FailNavigation(assert.AnError)
		assert.Equal(t, RestoreFailed, s.Restore(ctx, page, nil))
	})

	t.Run("snapshot without origin", func(t *testing.T) {
		s := newTestStore(t, now)
		writeSnapshot(t, s, Snapshot{Timestamp: now.Add(-time.Hour)})
		assert.Equal(t, RestoreInvalid, s.Restore(ctx, sitePage(), nil))
	})
}
