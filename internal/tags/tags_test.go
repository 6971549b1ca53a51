package tags

import "testing"

func TestParseTrackNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"5", 5},
		{"5/12", 5},
		{"05", 5},
		{"", 0},
		{"A", 0},
		{"3of12", 0},
		{"-4", 0},
		{" 7 ", 7},
	}
	for _, c := range cases {
		if got := parseTrackNumber(c.in); got != c.want {
			t.Errorf("parseTrackNumber(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"2016", 2016},
		{"2016-01-22", 2016},
		{"1994", 1994},
		{"", 0},
		{"20xx", 0},
		{"bad", 0},
	}
	for _, c := range cases {
		if got := parseYear(c.in); got != c.want {
			t.Errorf("parseYear(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestClean(t *testing.T) {
	if got := clean("  Artist\x00\x00"); got != "Artist" {
		t.Errorf("clean() = %q, want %q", got, "Artist")
	}
	if got := clean("\x00"); got != "" {
		t.Errorf("clean() = %q, want empty", got)
	}
}

func TestIsMusicFile(t *testing.T) {
	for _, p := range []string{"a.mp3", "b.OGG", "c.opus", "d.m4a", "e.flac", "dir/f.Mp3"} {
		if !IsMusicFile(p) {
			t.Errorf("IsMusicFile(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"a.txt", "cover.jpg", "noext", "a.mp3.bak"} {
		if IsMusicFile(p) {
			t.Errorf("IsMusicFile(%q) = true, want false", p)
		}
	}
}

func TestTaglibTagsGet(t *testing.T) {
	tt := taglibTags{
		"ARTIST": {"Someone "},
		"DATE":   {},
	}
	if got := tt.get("ARTIST"); got != "Someone" {
		t.Errorf("get(ARTIST) = %q, want Someone", got)
	}
	if got := tt.get("DATE", "YEAR"); got != "" {
		t.Errorf("get(DATE, YEAR) = %q, want empty", got)
	}
}
