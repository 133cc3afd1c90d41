package mixer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/pkg/browser"
)

// ErrNoTracks means the mixer never rendered any track
var ErrNoTracks = errors.New("no mixer tracks found")

// Track describes one mixer track. It holds no DOM handle; the solo control
// is resolved by selector whenever it is needed.
type Track struct {
	Name string `json:"name"`
	// Index is the site-assigned track index, or the position when absent
	Index    string `json:"index"`
	Position int    `json:"position"`
	// indexed is false when Index was derived from Position
	indexed bool
	// button is the position of the track's solo control among all solo
	// controls in the mixer, -1 when the track has none
	button int
}

// SoloSelector returns the selector of the track's solo control. Without a
// site index it matches every solo control; ResolveSolo picks the track's own.
func (t Track) SoloSelector(sel config.Selectors) string {
	if t.indexed {
		return fmt.Sprintf(`%s[%s=%q] %s`, sel.Track, sel.TrackIndexAttr, t.Index, sel.SoloButton)
	}
	return sel.Track + " " + sel.SoloButton
}

// ResolveSolo finds the track's solo control on page
func (t Track) ResolveSolo(page browser.Page, sel config.Selectors) (browser.Element, error) {
	selector := t.SoloSelector(sel)
	if t.indexed {
		return page.Element(selector)
	}
	if t.button < 0 {
		return nil, fmt.Errorf("track %q has no solo control", t.Name)
	}
	els, err := page.Elements(selector)
	if err != nil {
		return nil, err
	}
	if t.button >= len(els) {
		return nil, fmt.Errorf("solo control %d of track %q not found (%d present)", t.button+1, t.Name, len(els))
	}
	return els[t.button], nil
}

// TrackType groups tracks by how long the remote mixer takes to solo them
type TrackType string

const (
	TrackClick   TrackType = "click"
	TrackRhythm  TrackType = "rhythm"
	TrackSimple  TrackType = "simple"
	TrackComplex TrackType = "complex"
)

// Arrangements with more tracks than this take longer to remix
const simpleArrangementMax = 8

// ClassifyTrack picks the track type from its name and the number of
// tracks in the song
func ClassifyTrack(name string, total int) TrackType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "click"), strings.Contains(n, "metronome"), strings.Contains(n, "count"):
		return TrackClick
	case strings.Contains(n, "bass"), strings.Contains(n, "drum"):
		return TrackRhythm
	case total <= simpleArrangementMax:
		return TrackSimple
	default:
		return TrackComplex
	}
}

// SoloTimeout is how long to wait for a solo to register
func SoloTimeout(name string, total int, t config.Timing) time.Duration {
	switch ClassifyTrack(name, total) {
	case TrackClick:
		return t.SoloClickTrack
	case TrackRhythm:
		return t.SoloRhythm
	case TrackSimple:
		return t.SoloSimple
	default:
		return t.SoloComplex
	}
}

// ParseTracks extracts the tracks from mixer HTML
func ParseTracks(html string, sel config.Selectors) ([]Track, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse mixer HTML: %w", err)
	}

	var tracks []Track
	buttons := 0
	doc.Find(sel.Track).Each(func(i int, s *goquery.Selection) {
		t := Track{
			Name:     trackName(s, sel),
			Position: i,
			button:   -1,
		}
		if n := s.Find(sel.SoloButton).Length(); n > 0 {
			t.button = buttons
			buttons += n
		}
		if idx, ok := s.Attr(sel.TrackIndexAttr); ok && strings.TrimSpace(idx) != "" {
			t.Index = strings.TrimSpace(idx)
			t.indexed = true
		} else {
			t.Index = strconv.Itoa(i)
		}
		if t.Name == "" {
			t.Name = "Track " + strconv.Itoa(i+1)
		}
		tracks = append(tracks, t)
	})
	return tracks, nil
}

func trackName(s *goquery.Selection, sel config.Selectors) string {
	if sel.TrackCaption != "" {
		if name := clean(s.Find(sel.TrackCaption).First().Text()); name != "" {
			return name
		}
	}
	for _, attr := range []string{"data-name", "title", "aria-label"} {
		if v := clean(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return clean(s.Text())
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Discover waits for the mixer to render and returns its tracks
func (m *Mixer) Discover(ctx context.Context) ([]Track, error) {
	var tracks []Track
	var parseErr error

	found, err := browser.WaitUntil(ctx, m.timing.TrackDiscoveryTimeout, m.timing.PollInterval, func() bool {
		html, err := m.page.HTML()
		if err != nil {
			parseErr = err
			return false
		}
		tracks, parseErr = ParseTracks(html, m.sel)
		return len(tracks) > 0
	})
	if err != nil {
		return nil, err
	}
	if !found {
		ev := m.logger.Warn().Dur("timeout", m.timing.TrackDiscoveryTimeout).Str("selector", m.sel.Track)
		if parseErr != nil {
			ev = ev.Err(parseErr)
		}
		ev.Msg("No tracks found")
		return nil, ErrNoTracks
	}

	names := make([]string, len(tracks))
	for i, t := range tracks {
		names[i] = t.Name
	}
	m.logger.Info().Int("tracks", len(tracks)).Strs("names", names).Msg("Tracks discovered")
	return tracks, nil
}

// Limit returns at most max tracks; max <= 0 means all
func Limit(tracks []Track, max int) []Track {
	if max <= 0 || max >= len(tracks) {
		return tracks
	}
	return tracks[:max]
}
