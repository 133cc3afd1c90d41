package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/pkg/browser"
	"golang.org/x/time/rate"
)

// Result is one song on the site's search results page
type Result struct {
	Song   string `json:"song"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

// Searcher finds songs on the site
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// ParseResults extracts results from a search page. Relative links are
// resolved against pageURL.
func ParseResults(html, pageURL string, sel config.Selectors) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var results []Result
	doc.Find(sel.SearchResult).Each(func(_ int, s *goquery.Selection) {
		songSel := s.Find(sel.ResultSong).First()
		res := Result{
			Song:   clean(songSel.Text()),
			Artist: clean(s.Find(sel.ResultArtist).First().Text()),
		}

		// Prefer the link on the title
		href, ok := songSel.Find("a[href]").Attr("href")
		if !ok {
			href, ok = songSel.Closest("a[href]").Attr("href")
		}
		if !ok {
			href, ok = s.Find("a[href]").First().Attr("href")
		}
		if !ok || res.Song == "" {
			return
		}
		res.URL = resolve(base, href)
		results = append(results, res)
	})
	return results, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SearcherOptions configures a PageSearcher
type SearcherOptions struct {
	// URLTemplate holds one %s for the escaped query
	URLTemplate string
	Selectors   config.Selectors
	// Interval is the minimum time between two searches
	Interval time.Duration
	// Wait bounds how long results may take to render
	Wait         time.Duration
	PollInterval time.Duration
}

// PageSearcher searches by opening the site's search page in the browser
type PageSearcher struct {
	page    browser.Page
	opts    SearcherOptions
	limiter *rate.Limiter
}

// NewPageSearcher creates a searcher driving page
func NewPageSearcher(page browser.Page, opts SearcherOptions) *PageSearcher {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	return &PageSearcher{
		page:    page,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
	}
}

// Search implements Searcher. A page without results is not an error.
func (s *PageSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := fmt.Sprintf(s.opts.URLTemplate, url.QueryEscape(query))
	if err := s.page.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("search for %q failed: %w", query, err)
	}

	if _, err := browser.WaitUntil(ctx, s.opts.Wait, s.opts.PollInterval, func() bool {
		ok, err := s.page.Exists(s.opts.Selectors.SearchResult)
		return err == nil && ok
	}); err != nil {
		return nil, err
	}

	html, err := s.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read search page: %w", err)
	}
	return ParseResults(html, target, s.opts.Selectors)
}
