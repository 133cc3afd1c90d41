package download

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultNameLengthThreshold is the stem length above which a file is taken
// for a site download
const DefaultNameLengthThreshold = 30

var downloadKeywords = []string{
	"custom_backing_track",
	"custom backing track",
	"backing_track",
	"backing track",
	"karaoke",
}

// LooksLikeKaraokeDownload reports whether a file in the download folder is
// probably the stem for track: it carries a site keyword or the track name,
// or its name is longer than threshold
func LooksLikeKaraokeDownload(name, track string, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultNameLengthThreshold
	}
	stem := stemOf(name)
	lower := strings.ToLower(stem)

	for _, kw := range downloadKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if t := strings.ToLower(strings.TrimSpace(track)); t != "" {
		if strings.Contains(lower, t) || strings.Contains(lower, strings.ReplaceAll(t, " ", "_")) {
			return true
		}
	}
	return len(stem) > threshold
}

// Substitutions applied in order by CleanTrackName
var cleanupRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)[\s_-]*custom[\s_-]*backing[\s_-]*track`), ""},
	{regexp.MustCompile(`(?i)[\s_-]*karaoke[\s_-]*version(?:\.com)?`), ""},
	{regexp.MustCompile(`(?i)[\s_-]*backing[\s_-]*track`), ""},
	{regexp.MustCompile(`\([\s_-]*\)`), ""},
	{regexp.MustCompile(`[<>:"/\\|?*]`), ""},
	{regexp.MustCompile(`_+`), " "},
	{regexp.MustCompile(`\s+`), " "},
}

var parenGroup = regexp.MustCompile(`\(([^()]*)\)`)

// CleanTrackName strips site tags from a track or file stem. Parenthetical
// groups that repeat the name or each other are dropped, so tags the site
// appends more than once never accumulate.
func CleanTrackName(s string) string {
	for _, rule := range cleanupRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}

	base := trimSeparators(parenGroup.ReplaceAllString(s, " "))
	var groups []string
	seen := map[string]bool{strings.ToLower(base): true}
	for _, m := range parenGroup.FindAllStringSubmatch(s, -1) {
		g := trimSeparators(m[1])
		key := strings.ToLower(g)
		if g == "" || seen[key] {
			continue
		}
		seen[key] = true
		groups = append(groups, g)
	}

	if base == "" && len(groups) > 0 {
		base, groups = groups[0], groups[1:]
	}
	for _, g := range groups {
		base += " (" + g + ")"
	}
	return base
}

// DeriveTrackName recovers the track from a site filename such as
// "Artist_Song(Bass_Custom_Backing_Track).mp3", which names it in the last
// parenthetical group
func DeriveTrackName(filename string) string {
	matches := parenGroup.FindAllStringSubmatch(stemOf(filename), -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if name := CleanTrackName(matches[i][1]); name != "" {
			return name
		}
	}
	return ""
}

// TargetName is the final file name for a download: the clean track name
// with the download's extension
func TargetName(filename, track string) string {
	name := CleanTrackName(track)
	if name == "" {
		name = DeriveTrackName(filename)
	}
	if name == "" {
		name = CleanTrackName(stemOf(filename))
	}
	if name == "" {
		name = "track"
	}
	return name + strings.ToLower(filepath.Ext(strings.TrimSuffix(filename, PartialExt)))
}

// stemOf strips the partial marker and the extension
func stemOf(name string) string {
	name = filepath.Base(name)
	if IsPartial(name) {
		name = name[:len(name)-len(PartialExt)]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func trimSeparators(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -_.")
}
