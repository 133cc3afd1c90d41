package download

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
)

// Tag holds the ID3 frames written to a stem
type Tag struct {
	Title  string
	Artist string
	Album  string
}

// TagStem writes tag into an .mp3 stem. Other formats are left untouched.
func TagStem(path string, tag Tag) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil
	}

	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", path, err)
	}
	defer t.Close()

	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tag.Title != "" {
		t.SetTitle(tag.Title)
	}
	if tag.Artist != "" {
		t.SetArtist(tag.Artist)
	}
	if tag.Album != "" {
		t.SetAlbum(tag.Album)
	}

	if err := t.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	return nil
}
