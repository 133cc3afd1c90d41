// Package auth logs into the karaoke site, preferring a saved session over
// the interactive form.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/metrics"
	"github.com/harun/kvstems/pkg/browser"
	"github.com/harun/kvstems/pkg/session"
	"github.com/rs/zerolog"
)

// Markers in the page text that only appear for a signed-in user
var loggedInMarkers = []string{"my account", "log out", "logout", "sign out"}

// Options configures an Authenticator
type Options struct {
	Site      config.SiteConfig
	Selectors config.Selectors
	Timing    config.Timing
	Store     *session.Store
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Authenticator drives the login flow on one page
type Authenticator struct {
	page    browser.Page
	site    config.SiteConfig
	sel     config.Selectors
	timing  config.Timing
	store   *session.Store
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an authenticator for page
func New(page browser.Page, opts Options) *Authenticator {
	return &Authenticator{
		page:    page,
		site:    opts.Site,
		sel:     opts.Selectors,
		timing:  opts.Timing,
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "auth").Logger(),
	}
}

// IsLoggedIn applies the signed-in heuristic to the current page: an
// account or logout marker in the text and no visible password field.
func IsLoggedIn(page browser.Page, passwordSelectors []string) bool {
	for _, sel := range passwordSelectors {
		el, err := page.Element(sel)
		if err != nil {
			continue
		}
		if visible, err := el.Visible(); err == nil && visible {
			return false
		}
	}

	text, err := page.BodyText()
	if err != nil {
		return false
	}
	text = strings.ToLower(text)
	for _, marker := range loggedInMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// IsLoggedIn checks the current page
func (a *Authenticator) IsLoggedIn() bool {
	return IsLoggedIn(a.page, a.sel.Password)
}

// CheckAccount opens the account page and checks the signed-in heuristic
func (a *Authenticator) CheckAccount(ctx context.Context) bool {
	target := a.site.AccountURL
	if target == "" {
		target = a.site.LoginURL
	}
	if err := a.page.Navigate(ctx, target); err != nil {
		a.logger.Warn().Err(err).Str("url", target).Msg("Failed to open account page")
		return false
	}
	return a.IsLoggedIn()
}

// Login fills and submits the login form, then waits for the signed-in
// heuristic to hold
func (a *Authenticator) Login(ctx context.Context) error {
	if a.site.Username == "" || a.site.Password == "" {
		return fmt.Errorf("missing credentials: set KV_USERNAME and KV_PASSWORD")
	}

	a.logger.Info().Str("url", a.site.LoginURL).Msg("Logging in")

	if err := a.page.Navigate(ctx, a.site.LoginURL); err != nil {
		a.metrics.ObserveLogin("failed")
		return fmt.Errorf("failed to open login page: %w", err)
	}

	if a.IsLoggedIn() {
		a.logger.Info().Msg("Already logged in")
		a.metrics.ObserveLogin("success")
		return nil
	}

	if err := a.fill(a.sel.Username, a.site.Username, "username"); err != nil {
		a.metrics.ObserveLogin("failed")
		return err
	}
	if err := a.fill(a.sel.Password, a.site.Password, "password"); err != nil {
		a.metrics.ObserveLogin("failed")
		return err
	}

	submit, sel, err := browser.FirstPresent(a.page, a.sel.Submit)
	if err != nil {
		a.metrics.ObserveLogin("failed")
		return fmt.Errorf("login submit control not found: %w", err)
	}
	usedJS, err := browser.ClickWithFallback(submit)
	if err != nil {
		a.metrics.ObserveLogin("failed")
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	a.logger.Debug().Str("selector", sel).Bool("js_click", usedJS).Msg("Login form submitted")

	ok, err := browser.WaitUntil(ctx, a.timing.LoginTimeout, a.timing.PollInterval, a.IsLoggedIn)
	if err != nil {
		return err
	}
	if !ok {
		a.metrics.ObserveLogin("failed")
		current, _ := a.page.URL()
		return fmt.Errorf("login not confirmed within %s (page %s)", a.timing.LoginTimeout, current)
	}

	a.metrics.ObserveLogin("success")
	a.logger.Info().Msg("Login successful")
	return nil
}

func (a *Authenticator) fill(selectors []string, value, field string) error {
	el, sel, err := browser.FirstPresent(a.page, selectors)
	if err != nil {
		return fmt.Errorf("login %s field not found: %w", field, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("failed to fill %s field: %w", field, err)
	}
	a.logger.Debug().Str("field", field).Str("selector", sel).Msg("Filled login field")
	return nil
}

// EnsureLoggedIn restores the saved session unless force is set, and falls
// back to an interactive login. A fresh login is saved for the next run.
func (a *Authenticator) EnsureLoggedIn(ctx context.Context, force bool) error {
	if !force && a.store != nil {
		result := a.store.Restore(ctx, a.page, a.CheckAccount)
		a.metrics.ObserveSessionRestore(string(result))
		if result.OK() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		a.logger.Info().Str("result", string(result)).Msg("Saved session not usable, logging in")
	}

	if err := a.Login(ctx); err != nil {
		return err
	}

	if a.store != nil {
		if err := a.store.Save(a.page); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to save session")
		}
	}
	return nil
}
