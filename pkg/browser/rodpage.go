package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const navigateAttempts = 3

// RodPage implements Page on top of a go-rod page
type RodPage struct {
	page          *rod.Page
	actionTimeout time.Duration
	navTimeout    time.Duration
}

// NewRodPage wraps a rod page
func NewRodPage(page *rod.Page, actionTimeout, navTimeout time.Duration) *RodPage {
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &RodPage{
		page:          page,
		actionTimeout: actionTimeout,
		navTimeout:    navTimeout,
	}
}

// Raw exposes the underlying rod page
func (p *RodPage) Raw() *rod.Page {
	return p.page
}

// Navigate navigates to a URL with retry logic
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 1; attempt <= navigateAttempts; attempt++ {
		page := p.page.Context(ctx).Timeout(p.navTimeout)
		err := page.Navigate(url)
		if err == nil {
			err = page.WaitLoad()
		}
		page.CancelTimeout()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < navigateAttempts {
			// Exponential backoff
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(1<<uint(attempt)) * time.Second):
			}
		}
	}

	return &BrowserError{
		Code:    ErrCodeNavigation,
		Message: fmt.Sprintf("Failed to navigate to %s after %d attempts: %v", url, navigateAttempts, lastErr),
		Details: map[string]interface{}{
			"url": url,
		},
	}
}

// Reload reloads the current page and waits for the load event
func (p *RodPage) Reload(ctx context.Context) error {
	page := p.page.Context(ctx).Timeout(p.navTimeout)
	defer page.CancelTimeout()
	if err := page.Reload(); err != nil {
		return &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to reload: %v", err),
		}
	}
	if err := page.WaitLoad(); err != nil {
		return &BrowserError{
			Code:    ErrCodeTimeout,
			Message: fmt.Sprintf("Page load timeout: %v", err),
		}
	}
	return nil
}

// URL returns the current page URL
func (p *RodPage) URL() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to read page info: %v", err),
		}
	}
	return info.URL, nil
}

// HTML extracts page HTML content
func (p *RodPage) HTML() (string, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	html, err := page.HTML()
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to extract HTML: %v", err),
		}
	}
	return html, nil
}

// BodyText extracts visible text without tags
func (p *RodPage) BodyText() (string, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	text, err := page.Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to extract text: %v", err),
		}
	}
	return text.Value.String(), nil
}

// Element returns the first element matching selector without waiting
func (p *RodPage) Element(selector string) (Element, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	has, el, err := page.Has(selector)
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to query %s: %v", selector, err),
		}
	}
	if !has {
		return nil, notFound(selector)
	}
	return p.element(el), nil
}

// Elements returns every element matching selector
func (p *RodPage) Elements(selector string) ([]Element, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	els, err := page.Elements(selector)
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to query %s: %v", selector, err),
		}
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, p.element(el))
	}
	return out, nil
}

// Exists checks whether selector matches anything
func (p *RodPage) Exists(selector string) (bool, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	has, _, err := page.Has(selector)
	if err != nil {
		return false, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to query %s: %v", selector, err),
		}
	}
	return has, nil
}

// Cookies retrieves all cookies visible to the page
func (p *RodPage) Cookies() ([]Cookie, error) {
	cookies, err := p.page.Cookies([]string{})
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to get cookies: %v", err),
		}
	}

	result := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
		// Session cookies report -1
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		result = append(result, cookie)
	}

	return result, nil
}

// SetCookies sets cookies
func (p *RodPage) SetCookies(cookies []Cookie) error {
	protoCookies := make([]*proto.NetworkCookieParam, len(cookies))
	for i, c := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if !c.Expires.IsZero() {
			param.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		protoCookies[i] = param
	}

	if err := p.page.SetCookies(protoCookies); err != nil {
		return &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to set cookies: %v", err),
		}
	}

	return nil
}

// Storage dumps window.localStorage or window.sessionStorage
func (p *RodPage) Storage(kind StorageKind) (map[string]string, error) {
	script := fmt.Sprintf(`() => {
		const s = window[%q];
		const out = {};
		if (!s) return out;
		for (let i = 0; i < s.length; i++) {
			const k = s.key(i);
			out[k] = s.getItem(k);
		}
		return out;
	}`, string(kind))

	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	result, err := page.Eval(script)
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to read %s: %v", kind, err),
		}
	}

	items := make(map[string]string)
	if err := result.Value.Unmarshal(&items); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to decode %s: %v", kind, err),
		}
	}
	return items, nil
}

// SetStorage writes items into window.localStorage or window.sessionStorage
func (p *RodPage) SetStorage(kind StorageKind, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	script := fmt.Sprintf(`(items) => {
		const s = window[%q];
		for (const [k, v] of Object.entries(items)) s.setItem(k, v);
	}`, string(kind))

	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	if _, err := page.Eval(script, items); err != nil {
		return &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to write %s: %v", kind, err),
		}
	}
	return nil
}

// UserAgent returns navigator.userAgent
func (p *RodPage) UserAgent() (string, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	result, err := page.Eval(`() => navigator.userAgent`)
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to read user agent: %v", err),
		}
	}
	return result.Value.String(), nil
}

// WindowSize returns the outer window size
func (p *RodPage) WindowSize() (Size, error) {
	page := p.page.Timeout(p.actionTimeout)
	defer page.CancelTimeout()
	result, err := page.Eval(`() => ({ width: window.outerWidth, height: window.outerHeight })`)
	if err != nil {
		return Size{}, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: fmt.Sprintf("Failed to read window size: %v", err),
		}
	}
	var size Size
	if err := result.Value.Unmarshal(&size); err != nil {
		return Size{}, err
	}
	return size, nil
}

// element detaches el from the query's timeout so it outlives the call
func (p *RodPage) element(el *rod.Element) *rodElement {
	return &rodElement{el: el.Context(p.page.GetContext()), timeout: p.actionTimeout}
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) Click() error {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) JSClick() error {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	_, err := el.Eval(`() => this.click()`)
	return err
}

func (e *rodElement) Input(text string) error {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(text)
}

func (e *rodElement) Text() (string, error) {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	return el.Text()
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Visible() (bool, error) {
	el := e.el.Timeout(e.timeout)
	defer el.CancelTimeout()
	return el.Visible()
}
