// Package catalog turns a CSV list of songs into a songs.yaml file by
// searching the karaoke site and fuzzy-matching the results.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harun/kvstems/pkg/songs"
	"github.com/rs/zerolog"
)

// Row is one line of the input CSV
type Row struct {
	Line   int    `json:"line"`
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Key    int    `json:"key"`
}

// Query is the site search string for the row
func (r Row) Query() string {
	return strings.TrimSpace(r.Song + " " + r.Artist)
}

var columnAliases = map[string][]string{
	"song":   {"song", "title", "track", "song title", "song name", "name"},
	"artist": {"artist", "singer", "performer", "band"},
	"key":    {"key", "pitch", "transpose"},
}

// ReadCSV reads rows from a CSV with a header line. A song column is
// required; artist and key are optional. Invalid keys become 0.
func ReadCSV(r io.Reader, logger zerolog.Logger) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := mapColumns(header)
	songCol, ok := cols["song"]
	if !ok {
		return nil, fmt.Errorf("CSV header has no song column: %v", header)
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		row := Row{Line: line, Song: field(record, songCol)}
		if row.Song == "" {
			continue
		}
		if c, ok := cols["artist"]; ok {
			row.Artist = field(record, c)
		}
		if c, ok := cols["key"]; ok {
			if raw := field(record, c); raw != "" {
				key, err := songs.ParseKey(raw)
				if err != nil {
					logger.Warn().Err(err).Int("line", line).Str("key", raw).Msg("Invalid key, using 0")
				}
				row.Key = key
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for canonical, aliases := range columnAliases {
			if _, seen := cols[canonical]; seen {
				continue
			}
			for _, alias := range aliases {
				if h == alias {
					cols[canonical] = i
				}
			}
		}
	}
	return cols
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
