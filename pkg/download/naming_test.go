package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikeKaraokeDownload(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		track string
		want  bool
	}{
		{"site suffix", "Artist_Song(Bass_Custom_Backing_Track).mp3", "", true},
		{"karaoke keyword", "song-karaoke.mp3", "", true},
		{"track name", "Bass.mp3", "bass", true},
		{"track name with underscores", "Lead_Vocal.aif", "Lead Vocal", true},
		{"long name", "abcdefghijklmnopqrstuvwxyz0123456789.mp3", "", true},
		{"short unrelated", "notes.mp3", "Bass", false},
		{"partial marker ignored in length", "short.mp3.crdownload", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeKaraokeDownload(tt.file, tt.track, 30))
		})
	}
}

func TestCleanTrackName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bass", "Bass"},
		{"Bass_Custom_Backing_Track", "Bass"},
		{"Lead_Vocal", "Lead Vocal"},
		{"Bass(Bass)", "Bass"},
		{"Artist_Song(Bass_Custom_Backing_Track)(Bass_Custom_Backing_Track)", "Artist Song (Bass)"},
		{"(Drums_Custom_Backing_Track)", "Drums"},
		{"Piano Backing Track", "Piano"},
		{"Guitar: Rhythm?", "Guitar Rhythm"},
		{"Song_Karaoke_Version", "Song"},
		{"()", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTrackName(tt.in))
		})
	}
}

func TestDeriveTrackName(t *testing.T) {
	assert.Equal(t, "Bass", DeriveTrackName("Artist_Song(Bass_Custom_Backing_Track).mp3"))
	assert.Equal(t, "Drum Kit", DeriveTrackName("Queen_Bohemian_Rhapsody(Live)(Drum_Kit_Custom_Backing_Track).mp3.crdownload"))
	assert.Equal(t, "", DeriveTrackName("plain.mp3"))
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "Bass.mp3", TargetName("Artist_Song(Bass_Custom_Backing_Track).mp3", "Bass"))
	assert.Equal(t, "Bass.mp3", TargetName("Artist_Song(Bass_Custom_Backing_Track)(Bass_Custom_Backing_Track).mp3", ""))
	assert.Equal(t, "Lead Vocal.aif", TargetName("Artist_Song(Lead_Vocal_Custom_Backing_Track).AIF", "Lead Vocal"))
	assert.Equal(t, "Some Long Name.mp3", TargetName("Some_Long_Name_Custom_Backing_Track.mp3", ""))
}
