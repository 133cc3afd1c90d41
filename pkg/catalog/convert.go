package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/harun/kvstems/pkg/songs"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
)

// Converter matches CSV rows against site search results
type Converter struct {
	searcher Searcher
	logger   zerolog.Logger
}

// NewConverter creates a converter using searcher
func NewConverter(searcher Searcher, logger zerolog.Logger) *Converter {
	return &Converter{
		searcher: searcher,
		logger:   logger.With().Str("component", "catalog").Logger(),
	}
}

// Outcome is the result of a conversion
type Outcome struct {
	Songs   []songs.Song `json:"songs"`
	Matches []Match      `json:"matches"`
}

// Counts tallies the matches by confidence
func (o Outcome) Counts() map[Confidence]int {
	counts := make(map[Confidence]int)
	for _, m := range o.Matches {
		counts[m.Confidence]++
	}
	return counts
}

// Convert searches every row. HIGH and MEDIUM matches become songs; a
// failed search is recorded on its match and the conversion continues.
func (c *Converter) Convert(ctx context.Context, rows []Row) (Outcome, error) {
	var out Outcome
	seen := make(map[string]bool)

	for _, row := range rows {
		logger := c.logger.With().Int("line", row.Line).Str("song", row.Song).Str("artist", row.Artist).Logger()

		results, err := c.searcher.Search(ctx, row.Query())
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			logger.Warn().Err(err).Msg("Search failed")
			out.Matches = append(out.Matches, Match{
				Row:          row,
				SearchSong:   row.Song,
				SearchArtist: row.Artist,
				Confidence:   ConfidenceLow,
				Error:        err.Error(),
			})
			continue
		}

		m, ok := BestMatch(row, results)
		if !ok {
			m.Error = "no results"
		}
		out.Matches = append(out.Matches, m)

		logger.Debug().
			Str("result", m.ResultSong).
			Float64("combined", m.CombinedScore).
			Str("confidence", string(m.Confidence)).
			Msg("Matched")

		if !m.Accepted() || seen[m.ResultURL] {
			continue
		}
		seen[m.ResultURL] = true
		out.Songs = append(out.Songs, songs.Song{
			URL:  m.ResultURL,
			Name: songName(m),
			Key:  row.Key,
		})
	}

	counts := out.Counts()
	c.logger.Info().
		Int("rows", len(rows)).
		Int("high", counts[ConfidenceHigh]).
		Int("medium", counts[ConfidenceMedium]).
		Int("low", counts[ConfidenceLow]).
		Int("songs", len(out.Songs)).
		Msg("Conversion finished")
	return out, nil
}

func songName(m Match) string {
	song, artist := m.ResultSong, m.ResultArtist
	if song == "" {
		song = m.SearchSong
	}
	if artist == "" {
		artist = m.SearchArtist
	}
	if artist == "" {
		return song
	}
	return artist + " - " + song
}

// WriteReport renders every row's match as a table
func WriteReport(w io.Writer, out Outcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Line", "Search", "Result", "Song", "Artist", "Combined", "Confidence"})
	table.SetAutoWrapText(false)

	for _, m := range out.Matches {
		result := m.ResultSong
		if m.ResultArtist != "" {
			result = m.ResultArtist + " - " + result
		}
		if m.Error != "" {
			result = m.Error
		}
		search := m.SearchSong
		if m.SearchArtist != "" {
			search = m.SearchArtist + " - " + search
		}
		table.Append([]string{
			strconv.Itoa(m.Row.Line),
			search,
			result,
			fmt.Sprintf("%.2f", m.SongScore),
			fmt.Sprintf("%.2f", m.ArtistScore),
			fmt.Sprintf("%.2f", m.CombinedScore),
			string(m.Confidence),
		})
	}

	counts := out.Counts()
	table.SetFooter([]string{"", "", "", "", "",
		fmt.Sprintf("%d songs", len(out.Songs)),
		fmt.Sprintf("%d/%d/%d", counts[ConfidenceHigh], counts[ConfidenceMedium], counts[ConfidenceLow]),
	})
	table.Render()
}
