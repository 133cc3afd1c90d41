// Package songs loads and writes the songs.yaml list the automation works
// through.
package songs

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Key bounds in semitones
const (
	MinKey = -12
	MaxKey = 12
)

// DefaultSongName names a song when neither its entry nor its URL does
const DefaultSongName = "song"

// ErrKeyOutOfRange is returned by ParseKey for integers outside [-12, 12]
var ErrKeyOutOfRange = errors.New("key out of range")

// Song is one entry of songs.yaml
type Song struct {
	URL  string `yaml:"url" json:"url" validate:"required,http_url"`
	Name string `yaml:"name" json:"name" validate:"required"`
	Key  int    `yaml:"key" json:"key" validate:"min=-12,max=12"`
}

type rawSong struct {
	URL  string    `yaml:"url"`
	Name string    `yaml:"name"`
	Key  yaml.Node `yaml:"key"`
}

type document struct {
	Songs []yaml.Node `yaml:"songs"`
}

// Loader loads and validates song lists
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
	validate     *validator.Validate
}

// NewLoader creates a new songs loader
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:       logger.With().Str("component", "songs").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(DocumentSchema),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load reads a songs file. Invalid entries are dropped with a warning; an
// unreadable or malformed document is an error.
func (l *Loader) Load(filePath string) ([]Song, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read songs file: %w", err)
	}
	songs, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	l.logger.Info().
		Str("path", filePath).
		Int("songs", len(songs)).
		Msg("Loaded songs")
	return songs, nil
}

// Parse parses a songs document
func (l *Loader) Parse(data []byte) ([]Song, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse songs YAML: %w", err)
	}
	if err := l.validateSchema(generic); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse songs YAML: %w", err)
	}

	seen := make(map[string]bool)
	var songs []Song
	for i, node := range doc.Songs {
		song, err := l.parseEntry(&node)
		if err != nil {
			l.logger.Warn().
				Int("entry", i+1).
				Int("line", node.Line).
				Err(err).
				Msg("Dropping invalid song entry")
			continue
		}
		if seen[song.URL] {
			l.logger.Warn().
				Int("entry", i+1).
				Str("url", song.URL).
				Msg("Dropping duplicate song entry")
			continue
		}
		seen[song.URL] = true
		songs = append(songs, song)
	}

	return songs, nil
}

func (l *Loader) validateSchema(doc any) error {
	result, err := gojsonschema.Validate(l.schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}

func (l *Loader) parseEntry(node *yaml.Node) (Song, error) {
	if node.Kind != yaml.MappingNode {
		return Song{}, fmt.Errorf("entry is not a mapping")
	}

	var raw rawSong
	if err := node.Decode(&raw); err != nil {
		return Song{}, err
	}

	song := Song{
		URL:  strings.TrimSpace(raw.URL),
		Name: strings.TrimSpace(raw.Name),
	}

	if !raw.Key.IsZero() {
		var keyValue any
		if err := raw.Key.Decode(&keyValue); err != nil {
			return Song{}, fmt.Errorf("key: %w", err)
		}
		key, err := ParseKey(keyValue)
		if err != nil {
			l.logger.Warn().
				Str("url", song.URL).
				Str("key", raw.Key.Value).
				Err(err).
				Msg("Invalid key, using 0")
		}
		song.Key = key
	}

	if song.Name == "" {
		song.Name = NameFromURL(song.URL)
	}
	if song.Name == "" {
		song.Name = fallbackName(song.URL)
	}

	if err := l.validate.Struct(song); err != nil {
		return Song{}, err
	}
	return song, nil
}

// ParseKey converts an integer-like value to a key in [-12, 12]. Invalid
// values yield 0 together with the reason.
func ParseKey(v any) (int, error) {
	var n int64
	switch k := v.(type) {
	case nil:
		return 0, nil
	case int:
		n = int64(k)
	case int64:
		n = k
	case int32:
		n = int64(k)
	case uint64:
		if k > math.MaxInt64 {
			return 0, ErrKeyOutOfRange
		}
		n = int64(k)
	case float64:
		if k != math.Trunc(k) || math.IsInf(k, 0) {
			return 0, fmt.Errorf("key %v is not an integer", k)
		}
		if k < MinKey || k > MaxKey {
			return 0, fmt.Errorf("%w: %v", ErrKeyOutOfRange, k)
		}
		n = int64(k)
	case string:
		s := strings.TrimSpace(k)
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0, fmt.Errorf("key %q is not a number", k)
			}
			return ParseKey(f)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("key of type %T is not a number", v)
	}

	if n < MinKey || n > MaxKey {
		return 0, fmt.Errorf("%w: %d", ErrKeyOutOfRange, n)
	}
	return int(n), nil
}

// NormalizeKey is ParseKey without the reason
func NormalizeKey(v any) int {
	key, _ := ParseKey(v)
	return key
}

// NameFromURL derives a readable song name from the last path segment of a
// song page URL, e.g. ".../queen/bohemian-rhapsody.html" -> "Bohemian Rhapsody"
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))

	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// fallbackName names a song whose URL has no usable path
func fallbackName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return DefaultSongName
}

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// FolderName returns a filesystem-safe folder name for a song
func FolderName(song Song) string {
	name := song.Name
	if name == "" {
		name = NameFromURL(song.URL)
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if name == "" {
		return DefaultSongName
	}
	return name
}

// Save writes songs as a songs.yaml document
func Save(filePath string, songs []Song) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Songs []Song `yaml:"songs"`
	}{Songs: songs}); err != nil {
		return fmt.Errorf("failed to encode songs: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode songs: %w", err)
	}
	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write songs file: %w", err)
	}
	return nil
}
