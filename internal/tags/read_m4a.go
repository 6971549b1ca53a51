package tags

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// readM4A reads MP4 atom metadata. The atom layout has no conductor or
// group/ensemble fields, so those stay empty for this family.
func readM4A(path string, f *File) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	m, err := tag.ReadFrom(fh)
	if err != nil {
		// Some encoders (notably ffmpeg) produce atom orderings
		// dhowden/tag cannot walk; TagLib copes with those.
		return readM4AWithTaglib(path, f)
	}

	f.Artist = clean(m.Artist())
	f.Composer = clean(m.Composer())
	f.Album = clean(m.Album())
	f.Title = clean(m.Title())
	track, _ := m.Track()
	if track > 0 {
		f.TrackNumber = track
	}
	if m.Year() > 0 {
		f.Year = m.Year()
	} else {
		f.Year = parseYear(rawM4AString(m, "\xa9day"))
	}

	return nil
}

func readM4AWithTaglib(path string, f *File) error {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	t := taglibTags(rawTags)

	f.Artist = t.get(taglib.Artist)
	f.Composer = t.get(taglib.Composer)
	f.Album = t.get(taglib.Album)
	f.Title = t.get(taglib.Title)
	f.TrackNumber = parseTrackNumber(t.get(taglib.TrackNumber))
	f.Year = parseYear(t.get(taglib.Date))

	return nil
}

// rawM4AString pulls an atom value out of dhowden/tag's raw map, for the
// few fields the typed accessors normalize away.
func rawM4AString(m tag.Metadata, key string) string {
	v, ok := m.Raw()[key]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	}
	return ""
}
