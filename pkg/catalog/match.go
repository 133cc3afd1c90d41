package catalog

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Confidence grades a match
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Score weights
const (
	songWeight   = 0.6
	artistWeight = 0.4
)

// Match is the best site result for a CSV row
type Match struct {
	Row           Row        `json:"row"`
	SongScore     float64    `json:"song_score"`
	ArtistScore   float64    `json:"artist_score"`
	CombinedScore float64    `json:"combined_score"`
	Confidence    Confidence `json:"confidence"`
	SearchSong    string     `json:"search_song"`
	SearchArtist  string     `json:"search_artist"`
	ResultSong    string     `json:"result_song,omitempty"`
	ResultArtist  string     `json:"result_artist,omitempty"`
	ResultURL     string     `json:"result_url,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Accepted reports whether the match goes into the songs file
func (m Match) Accepted() bool {
	return m.ResultURL != "" && (m.Confidence == ConfidenceHigh || m.Confidence == ConfidenceMedium)
}

// Classify grades the scores. A near-exact title is enough for MEDIUM even
// when the artist differs.
func Classify(song, artist, combined float64) Confidence {
	switch {
	case combined >= 0.85 && song >= 0.70 && artist >= 0.50:
		return ConfidenceHigh
	case combined >= 0.70:
		return ConfidenceMedium
	case song >= 0.95:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

var (
	bracketed   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	featuring   = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+.*$`)
	apostrophes = regexp.MustCompile(`['’]`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// Normalize reduces a title or artist to the form the scores compare
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = bracketed.ReplaceAllString(s, " ")
	s = featuring.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", " and ")
	s = apostrophes.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimPrefix(s, "the ")
}

// Similarity is the Jaro-Winkler similarity of the normalized strings
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, metrics.NewJaroWinkler())
}

// Score compares a row against one search result
func Score(row Row, res Result) Match {
	m := Match{
		Row:          row,
		SearchSong:   row.Song,
		SearchArtist: row.Artist,
		ResultSong:   res.Song,
		ResultArtist: res.Artist,
		ResultURL:    res.URL,
	}
	m.SongScore = round3(Similarity(row.Song, res.Song))
	if row.Artist == "" {
		// Nothing to compare, do not penalise the result
		m.ArtistScore = 0.5
	} else {
		m.ArtistScore = round3(Similarity(row.Artist, res.Artist))
	}
	m.CombinedScore = round3(songWeight*m.SongScore + artistWeight*m.ArtistScore)
	m.Confidence = Classify(m.SongScore, m.ArtistScore, m.CombinedScore)
	return m
}

// BestMatch scores every result and returns the highest combined score
func BestMatch(row Row, results []Result) (Match, bool) {
	best := Match{Row: row, SearchSong: row.Song, SearchArtist: row.Artist, Confidence: ConfidenceLow}
	found := false
	for _, res := range results {
		m := Score(row, res)
		if !found || m.CombinedScore > best.CombinedScore {
			best, found = m, true
		}
	}
	return best, found
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
