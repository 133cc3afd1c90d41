package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/metrics"
	"github.com/harun/kvstems/pkg/browser"
	"github.com/harun/kvstems/pkg/browser/browsertest"
	"github.com/harun/kvstems/pkg/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	loginURL   = "https://www.karaoke-version.com/my/login.html"
	accountURL = "https://www.karaoke-version.com/my/index.html"

	loginHTML = `<html><body>
<form id="login">
  <input type="text" id="frm_login" name="frm_login">
  <input type="password" id="frm_password" name="frm_password">
  <button type="submit" id="sbm">Log in</button>
</form>
</body></html>`

	accountHTML = `<html><body><nav><a href="/my/">My Account</a> <a href="/logout">Log out</a></nav></body></html>`
)

func testTiming() config.Timing {
	timing := config.DefaultTiming()
	timing.PollInterval = 5 * time.Millisecond
	timing.LoginTimeout = 200 * time.Millisecond
	return timing
}

func testSite() config.SiteConfig {
	return config.SiteConfig{
		Username:   "singer@example.com",
		Password:   "hunter22",
		LoginURL:   loginURL,
		AccountURL: accountURL,
	}
}

// fakeSite serves the login form until the right credentials are submitted,
// then the account page for as long as the session cookie is set
func fakeSite(delay time.Duration) *browsertest.Page {
	page := browsertest.New("<html><body></body></html>")
	page.OnLoad(func(dom browsertest.DOM, url string) {
		for _, c := range dom.Cookies() {
			if c.Name == "PHPSESSID" && c.Value == "valid" {
				dom.Load(accountHTML)
				return
			}
		}
		dom.Load(loginHTML)
	})
	page.OnClick("#sbm", func(dom browsertest.DOM, _ *goquery.Selection) {
		user := dom.Find("#frm_login").AttrOr("value", "")
		pass := dom.Find("#frm_password").AttrOr("value", "")
		if user != "singer@example.com" || pass != "hunter22" {
			dom.Find("form").AppendHtml(`<p class="error">Invalid credentials</p>`)
			return
		}
		dom.After(delay, func(dom browsertest.DOM) {
			dom.SetCookie(browser.Cookie{Name: "PHPSESSID", Value: "valid", Domain: ".karaoke-version.com", Path: "/"})
			dom.Load(accountHTML)
		})
	})
	return page
}

func newAuth(page browser.Page, store *session.Store, m *metrics.Metrics) *Authenticator {
	return New(page, Options{
		Site:      testSite(),
		Selectors: config.DefaultSelectors(),
		Timing:    testTiming(),
		Store:     store,
		Metrics:   m,
		Logger:    zerolog.Nop(),
	})
}

func TestIsLoggedIn(t *testing.T) {
	passwords := config.DefaultSelectors().Password

	tests := []struct {
		name string
		html string
		want bool
	}{
		{"account link", accountHTML, true},
		{"lowercase logout", `<body><a>logout</a></body>`, true},
		{"login form", loginHTML, false},
		{"marker but password field visible", `<body>My Account<input type="password"></body>`, false},
		{"marker with hidden password field", `<body>My Account<div style="display: none"><input type="password"></div></body>`, true},
		{"anonymous page", `<body><h1>Custom Backing Tracks</h1></body>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoggedIn(browsertest.New(tt.html), passwords))
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login", func(t *testing.T) {
		page := fakeSite(20 * time.Millisecond)
		m := metrics.NewMetrics()
		a := newAuth(page, nil, m)

		require.NoError(t, a.Login(ctx))
		assert.True(t, a.IsLoggedIn())
		assert.Equal(t, loginURL, page.Navigations()[0])
		assert.Contains(t, page.Clicks(), "native:button#sbm")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	})

	t.Run("overlay forces script click", func(t *testing.T) {
		page := fakeSite(0).Intercept("#sbm")
		a := newAuth(page, nil, nil)

		require.NoError(t, a.Login(ctx))
		assert.Contains(t, page.Clicks(), "js:button#sbm")
	})

	t.Run("wrong password times out", func(t *testing.T) {
		page := fakeSite(0)
		m := metrics.NewMetrics()
		a := New(page, Options{
			Site:      config.SiteConfig{Username: "singer@example.com", Password: "wrong-pass", LoginURL: loginURL},
			Selectors: config.DefaultSelectors(),
			Timing:    testTiming(),
			Metrics:   m,
			Logger:    zerolog.Nop(),
		})

		err := a.Login(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not confirmed")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failed")))
	})

	t.Run("form missing", func(t *testing.T) {
		page := browsertest.New(`<body><h1>Maintenance</h1></body>`)
		err := newAuth(page, nil, nil).Login(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "username field not found")
	})

	t.Run("missing credentials", func(t *testing.T) {
		a := New(fakeSite(0), Options{Site: config.SiteConfig{LoginURL: loginURL}, Logger: zerolog.Nop()})
		assert.Error(t, a.Login(ctx))
	})
}

func TestEnsureLoggedIn(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh login is saved then restored", func(t *testing.T) {
		store := session.NewStore(filepath.Join(t.TempDir(), "session_data.json"), session.DefaultTTL, zerolog.Nop())

		first := fakeSite(0)
		require.NoError(t, newAuth(first, store, nil).EnsureLoggedIn(ctx, false))
		snap, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "PHPSESSID", snap.Cookies[0].Name)

		// A new browser restores the session without touching the form
		second := fakeSite(0)
		m := metrics.NewMetrics()
		require.NoError(t, newAuth(second, store, m).EnsureLoggedIn(ctx, false))
		assert.Empty(t, second.Clicks())
		assert.NotContains(t, second.Navigations(), loginURL)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRestoresTotal.WithLabelValues("restored")))
	})

	t.Run("force skips the saved session", func(t *testing.T) {
		store := session.NewStore(filepath.Join(t.TempDir(), "session_data.json"), session.DefaultTTL, zerolog.Nop())
		require.NoError(t, newAuth(fakeSite(0), store, nil).EnsureLoggedIn(ctx, false))

		page := fakeSite(0)
		require.NoError(t, newAuth(page, store, nil).EnsureLoggedIn(ctx, true))
		assert.Equal(t, loginURL, page.Navigations()[0])
	})

	t.Run("login failure is returned", func(t *testing.T) {
		page := browsertest.New(`<body>down for maintenance</body>`)
		store := session.NewStore(filepath.Join(t.TempDir(), "session_data.json"), session.DefaultTTL, zerolog.Nop())
		assert.Error(t, newAuth(page, store, nil).EnsureLoggedIn(ctx, false))
	})
}
