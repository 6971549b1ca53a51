package tags

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// Extract reads the full metadata record for the file at fullPath, which
// lives at relPath inside the library root. sum may carry a precomputed
// SHA-256 hex digest to skip rehashing; pass "" to compute it here.
//
// I/O errors (including permission errors) are returned as-is so callers
// can treat them as soft skips. Format and validation failures are wrapped
// around the sentinel errors in this package.
func Extract(fullPath, relPath, sum string) (*File, error) {
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}

	ftype, err := sniffType(fullPath)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:  relPath,
		Type:  ftype,
		Size:  info.Size(),
		Mtime: info.ModTime().Unix(),
	}

	switch ftype {
	case TypeMP3:
		err = readID3(fullPath, f)
	case TypeOGG, TypeOPUS:
		err = readOggComments(fullPath, f)
	case TypeFLAC:
		err = readFLACComments(fullPath, f)
	case TypeM4A:
		err = readM4A(fullPath, f)
	}
	if err != nil {
		return nil, err
	}

	readProperties(fullPath, f)

	if f.Artist == "" {
		return nil, fmt.Errorf("%s: %w", relPath, ErrMissingArtist)
	}
	if f.Title == "" {
		return nil, fmt.Errorf("%s: %w", relPath, ErrMissingTitle)
	}
	if f.Artist == ReservedArtistName {
		return nil, fmt.Errorf("%s: %w", relPath, ErrReservedArtist)
	}

	if sum == "" {
		sum, err = Checksum(fullPath)
		if err != nil {
			return nil, err
		}
	}
	f.SHA256 = sum

	return f, nil
}

// sniffType determines the container family of a file, preferring content
// inspection over the file extension. The extension only breaks the tie
// between Ogg Vorbis and Ogg Opus, which share a container.
func sniffType(path string) (FileType, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, fileType, err := tag.Identify(f)
	if err == nil {
		switch fileType {
		case tag.MP3:
			return TypeMP3, nil
		case tag.OGG:
			if extOf(path) == ExtOPUS {
				return TypeOPUS, nil
			}
			return TypeOGG, nil
		case tag.FLAC:
			return TypeFLAC, nil
		case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
			return TypeM4A, nil
		}
	}

	// Content sniffing failed or gave something we don't catalog; fall
	// back to the extension so that e.g. headerless mp3 streams still get
	// a reader, which will then fail with a tag-level error if unusable.
	switch extOf(path) {
	case ExtMP3:
		return TypeMP3, nil
	case ExtOGG:
		return TypeOGG, nil
	case ExtOPUS:
		return TypeOPUS, nil
	case ExtM4A:
		return TypeM4A, nil
	case ExtFLAC:
		return TypeFLAC, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// readProperties fills in stream properties (bitrate, length) and the
// bitrate mode. Property extraction is best-effort: the catalog prefers a
// row with zero bitrate over no row at all.
func readProperties(path string, f *File) {
	props, err := taglib.ReadProperties(path)
	if err == nil {
		f.Bitrate = int(props.Bitrate) * 1000
		f.Length = int(props.Length.Seconds())
	}

	switch f.Type {
	case TypeMP3:
		// The frame header tells us directly.
		f.Mode = detectMP3Mode(path)
	case TypeOGG, TypeOPUS, TypeFLAC:
		// Vorbis-family codecs are inherently variable-rate.
		f.Mode = VBR
	case TypeM4A:
		// AAC has no CBR/VBR distinction we can read; default to constant.
		f.Mode = CBR
	}
}
