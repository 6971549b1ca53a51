package tags

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/bogem/id3v2/v2"
)

// ID3v2 frame mapping for the fields carried into the catalog. Year tags
// are tried in priority order: TYER (v2.3) first, then the v2.4
// release/recording dates.
func readID3(path string, f *File) error {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer id3tag.Close()

	f.Artist = clean(getID3TextFrame(id3tag, "TPE1"))
	f.Group = clean(getID3TextFrame(id3tag, "TPE2"))
	f.Conductor = clean(getID3TextFrame(id3tag, "TPE3"))
	f.Composer = clean(getID3TextFrame(id3tag, "TCOM"))
	f.Album = clean(getID3TextFrame(id3tag, "TALB"))
	f.Title = clean(getID3TextFrame(id3tag, "TIT2"))
	f.TrackNumber = parseTrackNumber(getID3TextFrame(id3tag, "TRCK"))

	for _, frameID := range []string{"TYER", "TDRL", "TDRC"} {
		if v := getID3TextFrame(id3tag, frameID); v != "" {
			f.Year = parseYear(v)
			break
		}
	}

	return nil
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}

// detectMP3Mode inspects the first mpeg frame's Xing/Info/VBRI header to
// classify the stream's bitrate mode. A LAME extension header refines the
// Xing case into ABR vs VBR. Streams without any VBR header are CBR.
func detectMP3Mode(path string) Mode {
	f, err := os.Open(path)
	if err != nil {
		return CBR
	}
	defer f.Close()

	// The Xing/Info header sits inside the first mpeg frame, always well
	// within the first few KB after any ID3v2 tag. 128KB covers even
	// pathologically large leading tags.
	buf := make([]byte, 128*1024)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return CBR
	}
	buf = buf[:n]

	if idx := bytes.Index(buf, []byte("VBRI")); idx >= 0 {
		return VBR
	}

	header := "Xing"
	idx := bytes.Index(buf, []byte(header))
	if idx < 0 {
		header = "Info"
		idx = bytes.Index(buf, []byte(header))
	}
	if idx < 0 {
		return CBR
	}

	// LAME extension: the byte after the 9-char encoder version string
	// carries the tag revision (high nibble) and VBR method (low nibble).
	if lame := bytes.Index(buf[idx:], []byte("LAME")); lame >= 0 && idx+lame+9 < len(buf) {
		switch buf[idx+lame+9] & 0x0f {
		case 1, 8:
			return CBR
		case 2, 9:
			return ABR
		case 3, 4, 5, 6:
			return VBR
		}
	}

	if header == "Info" {
		return CBR
	}
	return VBR
}
