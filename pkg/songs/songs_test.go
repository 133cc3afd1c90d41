package songs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int
		wantErr bool
	}{
		{"int", 5, 5, false},
		{"negative int", -12, -12, false},
		{"upper bound", 12, 12, false},
		{"plus string", "+3", 3, false},
		{"minus string", "-2", -2, false},
		{"padded string", " 7 ", 7, false},
		{"integral float", 4.0, 4, false},
		{"float string", "-1.0", -1, false},
		{"int64", int64(-6), -6, false},
		{"nil", nil, 0, false},
		{"too high", 13, 0, true},
		{"too low", -13, 0, true},
		{"too high string", "+15", 0, true},
		{"fraction", 2.5, 0, true},
		{"word", "up", 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeKeyRange(t *testing.T) {
	for k := MinKey; k <= MaxKey; k++ {
		assert.Equal(t, k, NormalizeKey(k))
		assert.Equal(t, k, NormalizeKey(float64(k)))
	}
	for _, k := range []int{-100, -13, 13, 100} {
		assert.Equal(t, 0, NormalizeKey(k))
	}
}

func TestParse(t *testing.T) {
	l := NewLoader(zerolog.Nop())

	doc := `
songs:
  - url: https://www.karaoke-version.com/custombackingtrack/queen/bohemian-rhapsody.html
    name: Bohemian Rhapsody
    key: -2
  - url: https://www.karaoke-version.com/custombackingtrack/toto/africa.html
    key: "+3"
  - url: https://www.karaoke-version.com/custombackingtrack/a-ha/take-on-me.html
    name: Take On Me
    key: 40
  - name: Missing URL
  - url: ftp://example.com/song
    name: Wrong Scheme
  - just a string
  - url: https://www.karaoke-version.com/custombackingtrack/queen/bohemian-rhapsody.html
    name: Duplicate
`
	songs, err := l.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, songs, 3)

	assert.Equal(t, Song{
		URL:  "https://www.karaoke-version.com/custombackingtrack/queen/bohemian-rhapsody.html",
		Name: "Bohemian Rhapsody",
		Key:  -2,
	}, songs[0])

	assert.Equal(t, "Africa", songs[1].Name)
	assert.Equal(t, 3, songs[1].Key)

	assert.Equal(t, "Take On Me", songs[2].Name)
	assert.Equal(t, 0, songs[2].Key, "out-of-range key defaults to 0")
}

func TestParseNameFallback(t *testing.T) {
	doc := `
songs:
  - url: https://www.karaoke-version.com/
  - url: https://www.karaoke-version.com
    key: 1
`
	songs, err := NewLoader(zerolog.Nop()).Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "www.karaoke-version.com", songs[0].Name)
	assert.Equal(t, "www.karaoke-version.com", songs[1].Name)
	assert.Equal(t, 1, songs[1].Key)

	assert.Equal(t, DefaultSongName, fallbackName("not a url"))
}

func TestParseErrors(t *testing.T) {
	l := NewLoader(zerolog.Nop())

	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "songs: [unclosed"},
		{"missing songs key", "tracks: []"},
		{"songs not a list", "songs: bohemian"},
		{"top level list", "- url: https://www.karaoke-version.com/x.html"},
		{"empty document", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyList(t *testing.T) {
	songs, err := NewLoader(zerolog.Nop()).Parse([]byte("songs:\n"))
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://www.karaoke-version.com/custombackingtrack/queen/bohemian-rhapsody.html": "Bohemian Rhapsody",
		"https://www.karaoke-version.com/custombackingtrack/toto/africa/":                 "Africa",
		"https://www.karaoke-version.com/":                                               "",
		"https://www.karaoke-version.com/song_with_underscores.html":                     "Song With Underscores",
	}
	for in, want := range tests {
		assert.Equal(t, want, NameFromURL(in), in)
	}
}

func TestFolderName(t *testing.T) {
	tests := []struct {
		song Song
		want string
	}{
		{Song{Name: "Bohemian Rhapsody"}, "Bohemian Rhapsody"},
		{Song{Name: "AC/DC: Back In Black?"}, "AC_DC_ Back In Black_"},
		{Song{Name: "  Spaced   Out.  "}, "Spaced Out"},
		{Song{URL: "https://www.karaoke-version.com/custombackingtrack/toto/africa.html"}, "Africa"},
		{Song{}, "song"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FolderName(tt.song))
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songs.yaml")
	in := []Song{
		{URL: "https://www.karaoke-version.com/custombackingtrack/queen/bohemian-rhapsody.html", Name: "Bohemian Rhapsody", Key: -2},
		{URL: "https://www.karaoke-version.com/custombackingtrack/toto/africa.html", Name: "Africa"},
	}

	require.NoError(t, Save(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "songs:")

	out, err := NewLoader(zerolog.Nop()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(zerolog.Nop()).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
