// Package browsertest provides an in-memory browser.Page for tests.
//
// The document is a goquery tree. Tests script the site's behaviour with
// click handlers, load hooks and delayed mutations; everything runs under one
// mutex so delayed mutations can race the code under test safely.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/harun/kvstems/pkg/browser"
)

// DOM gives callbacks access to the document. It is only valid inside the
// callback it was passed to.
type DOM struct {
	p *Page
}

// Find runs a selector against the current document
func (d DOM) Find(selector string) *goquery.Selection {
	return d.p.doc.Find(selector)
}

// Load replaces the document
func (d DOM) Load(html string) {
	d.p.loadLocked(html)
}

// URL returns the current URL
func (d DOM) URL() string {
	return d.p.url
}

// Cookies returns the cookie jar
func (d DOM) Cookies() []browser.Cookie {
	return append([]browser.Cookie(nil), d.p.cookies...)
}

// SetCookie adds or replaces a cookie by name
func (d DOM) SetCookie(c browser.Cookie) {
	d.p.setCookieLocked(c)
}

// After schedules a further mutation from inside a callback
func (d DOM) After(delay time.Duration, fn func(DOM)) {
	d.p.afterLocked(delay, fn)
}

type clickHandler struct {
	selector string
	fn       func(DOM, *goquery.Selection)
}

// Page is a scripted, goquery-backed implementation of browser.Page
type Page struct {
	mu          sync.Mutex
	doc         *goquery.Document
	url         string
	routes      map[string]string
	handlers    []clickHandler
	onLoad      []func(DOM, string)
	intercepted []string
	timers      []*time.Timer
	cookies     []browser.Cookie
	storage     map[browser.StorageKind]map[string]string
	userAgent   string
	size        browser.Size
	navigations []string
	clicks      []string
	navErr      error
}

// New creates a page showing html
func New(html string) *Page {
	p := &Page{
		routes:    make(map[string]string),
		storage:   make(map[browser.StorageKind]map[string]string),
		userAgent: "Mozilla/5.0 (browsertest)",
		size:      browser.Size{Width: 1920, Height: 1080},
	}
	p.loadLocked(html)
	return p
}

// Route registers the document served for url
func (p *Page) Route(url, html string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = html
	return p
}

// OnClick runs fn whenever an element matching selector is clicked
func (p *Page) OnClick(selector string, fn func(DOM, *goquery.Selection)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, clickHandler{selector: selector, fn: fn})
	return p
}

// OnLoad runs fn after every navigation or reload
func (p *Page) OnLoad(fn func(DOM, string)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoad = append(p.onLoad, fn)
	return p
}

// Intercept makes native clicks on selector fail, as if an overlay covered
// the element. Script clicks still work.
func (p *Page) Intercept(selector string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intercepted = append(p.intercepted, selector)
	return p
}

// FailNavigation makes every Navigate call fail with err
func (p *Page) FailNavigation(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr = err
	return p
}

// After mutates the document once delay has elapsed
func (p *Page) After(delay time.Duration, fn func(DOM)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.afterLocked(delay, fn)
}

func (p *Page) afterLocked(delay time.Duration, fn func(DOM)) {
	t := time.AfterFunc(delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		fn(DOM{p: p})
	})
	p.timers = append(p.timers, t)
}

// Mutate changes the document immediately
func (p *Page) Mutate(fn func(DOM)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(DOM{p: p})
}

// Close stops pending delayed mutations
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
}

// Navigations lists every URL passed to Navigate, in order
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Clicks lists a description of every dispatched click, in order
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) loadLocked(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// goquery only fails on reader errors
		panic(err)
	}
	p.doc = doc
}

func (p *Page) setCookieLocked(c browser.Cookie) {
	for i := range p.cookies {
		if p.cookies[i].Name == c.Name {
			p.cookies[i] = c
			return
		}
	}
	p.cookies = append(p.cookies, c)
}

func (p *Page) runOnLoadLocked() {
	for _, fn := range p.onLoad {
		fn(DOM{p: p}, p.url)
	}
}

// Navigate implements browser.Page. Unrouted URLs keep the current document.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.navigations = append(p.navigations, url)
	if p.navErr != nil {
		return &browser.BrowserError{
			Code:    browser.ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to navigate to %s: %v", url, p.navErr),
		}
	}
	p.url = url
	if html, ok := p.routes[url]; ok {
		p.loadLocked(html)
	}
	p.runOnLoadLocked()
	return nil
}

// Reload implements browser.Page
func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if html, ok := p.routes[p.url]; ok {
		p.loadLocked(html)
	}
	p.runOnLoadLocked()
	return nil
}

// URL implements browser.Page
func (p *Page) URL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// HTML implements browser.Page
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

// BodyText implements browser.Page
func (p *Page) BodyText() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find("body").Text(), nil
}

// Element implements browser.Page
func (p *Page) Element(selector string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector)
	if sel.Length() == 0 {
		return nil, &browser.BrowserError{
			Code:    browser.ErrCodeElementNotFound,
			Message: "Element not found: " + selector,
		}
	}
	return &element{p: p, sel: sel.First()}, nil
}

// Elements implements browser.Page
func (p *Page) Elements(selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []browser.Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{p: p, sel: s})
	})
	return out, nil
}

// Exists implements browser.Page
func (p *Page) Exists(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(selector).Length() > 0, nil
}

// Cookies implements browser.Page
func (p *Page) Cookies() ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...), nil
}

// SetCookies implements browser.Page
func (p *Page) SetCookies(cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range cookies {
		p.setCookieLocked(c)
	}
	return nil
}

// Storage implements browser.Page
func (p *Page) Storage(kind browser.StorageKind) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.storage[kind]))
	for k, v := range p.storage[kind] {
		out[k] = v
	}
	return out, nil
}

// SetStorage implements browser.Page
func (p *Page) SetStorage(kind browser.StorageKind, items map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.storage[kind] == nil {
		p.storage[kind] = make(map[string]string)
	}
	for k, v := range items {
		p.storage[kind][k] = v
	}
	return nil
}

// UserAgent implements browser.Page
func (p *Page) UserAgent() (string, error) {
	return p.userAgent, nil
}

// WindowSize implements browser.Page
func (p *Page) WindowSize() (browser.Size, error) {
	return p.size, nil
}

var errIntercepted = errors.New("element click intercepted: another element would receive the click")

type element struct {
	p   *Page
	sel *goquery.Selection
}

func (e *element) Click() error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	for _, s := range e.p.intercepted {
		if e.sel.Is(s) {
			return errIntercepted
		}
	}
	e.dispatchLocked("native")
	return nil
}

func (e *element) JSClick() error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.dispatchLocked("js")
	return nil
}

func (e *element) dispatchLocked(kind string) {
	desc := goquery.NodeName(e.sel)
	if id, ok := e.sel.Attr("id"); ok {
		desc += "#" + id
	}
	if class, ok := e.sel.Attr("class"); ok && class != "" {
		desc += "." + strings.Join(strings.Fields(class), ".")
	}
	e.p.clicks = append(e.p.clicks, kind+":"+desc)

	for _, h := range e.p.handlers {
		if e.sel.Is(h.selector) {
			h.fn(DOM{p: e.p}, e.sel)
		}
	}
}

func (e *element) Input(text string) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	e.sel.SetAttr("value", text)
	return nil
}

func (e *element) Text() (string, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.sel.Text(), nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) Visible() (bool, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	hidden := func(s *goquery.Selection) bool {
		if _, ok := s.Attr("hidden"); ok {
			return true
		}
		style := strings.ReplaceAll(s.AttrOr("style", ""), " ", "")
		return strings.Contains(style, "display:none")
	}
	if hidden(e.sel) {
		return false, nil
	}
	visible := true
	e.sel.Parents().Each(func(_ int, s *goquery.Selection) {
		if hidden(s) {
			visible = false
		}
	})
	return visible, nil
}
