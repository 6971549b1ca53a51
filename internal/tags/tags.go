// Package tags extracts a normalized metadata record from a single audio
// file: the tag fields the catalog cares about, stream properties, and a
// content hash used for move detection.
package tags

import (
	"errors"
	"strconv"
	"strings"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtOGG  = ".ogg"
	ExtOPUS = ".opus"
	ExtM4A  = ".m4a"
	ExtFLAC = ".flac"
)

// FileType identifies the audio container family of a file.
type FileType string

const (
	TypeMP3  FileType = "mp3"
	TypeOGG  FileType = "ogg"
	TypeOPUS FileType = "opus"
	TypeM4A  FileType = "m4a"
	TypeFLAC FileType = "flac"
)

// Mode is the bitrate mode of an audio stream.
type Mode string

const (
	CBR Mode = "CBR"
	ABR Mode = "ABR"
	VBR Mode = "VBR"
)

// Validation and format errors. Callers distinguish these from plain I/O
// errors: an unreadable file is a soft skip, these are reported per item.
var (
	ErrUnknownFormat  = errors.New("unrecognized audio format")
	ErrMissingArtist  = errors.New("artist tag is missing")
	ErrMissingTitle   = errors.New("title tag is missing")
	ErrReservedArtist = errors.New(`artist name "Various" is reserved`)
)

// ReservedArtistName cannot appear as a literal artist tag; it names the
// compilation sentinel in the catalog.
const ReservedArtistName = "Various"

// File is the extracted record for one audio file.
type File struct {
	Path string // library-relative path

	// Tagged names, raw (pre-normalization). Group, Conductor and
	// Composer are optional and may be empty.
	Artist    string
	Group     string
	Conductor string
	Composer  string
	Album     string
	Title     string

	TrackNumber int
	Year        int

	// Technical fields
	Type    FileType
	Bitrate int // bits per second
	Mode    Mode
	Length  int // seconds
	Size    int64
	Mtime   int64

	SHA256 string
}

// IsMusicFile returns true if the path has a supported audio extension.
func IsMusicFile(path string) bool {
	switch extOf(path) {
	case ExtMP3, ExtOGG, ExtOPUS, ExtM4A, ExtFLAC:
		return true
	}
	return false
}

func extOf(path string) string {
	ext := strings.ToLower(path)
	if idx := strings.LastIndex(ext, "."); idx >= 0 {
		return ext[idx:]
	}
	return ""
}

// clean trims surrounding whitespace and trailing NUL padding from a raw
// tag value.
func clean(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// parseTrackNumber parses a track number like "5" or "5/12".
// Non-numeric values normalize to 0.
func parseTrackNumber(s string) int {
	s = clean(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseYear parses a year from a raw tag value, which may be a bare year
// or a full date ("2016" or "2016-01-01"). Non-numeric values normalize
// to 0.
func parseYear(s string) int {
	s = clean(s)
	if len(s) > 4 {
		s = s[:4]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// taglibTags wraps a taglib result map with lookup helpers.
type taglibTags map[string][]string

// get returns the first value for any of the given keys, or empty string.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return clean(values[0])
		}
	}
	return ""
}
