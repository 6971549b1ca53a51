package tags

import (
	"fmt"

	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
	"go.senan.xyz/taglib"
)

// Vorbis-comment field names used by the catalog. Ogg, Opus and FLAC all
// share this mapping; DATE falls back to the legacy YEAR field.
const (
	vcArtist    = "ARTIST"
	vcGroup     = "ENSEMBLE"
	vcConductor = "CONDUCTOR"
	vcComposer  = "COMPOSER"
	vcAlbum     = "ALBUM"
	vcTitle     = "TITLE"
	vcTrack     = "TRACKNUMBER"
	vcDate      = "DATE"
	vcYear      = "YEAR"
)

// readOggComments reads Vorbis comments from an Ogg Vorbis or Opus file.
func readOggComments(path string, f *File) error {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	t := taglibTags(rawTags)

	f.Artist = t.get(vcArtist)
	f.Group = t.get(vcGroup)
	f.Conductor = t.get(vcConductor)
	f.Composer = t.get(vcComposer)
	f.Album = t.get(vcAlbum)
	f.Title = t.get(vcTitle)
	f.TrackNumber = parseTrackNumber(t.get(vcTrack))
	f.Year = parseYear(t.get(vcDate, vcYear))

	return nil
}

// readFLACComments reads the VORBIS_COMMENT block of a FLAC file.
func readFLACComments(path string, f *File) error {
	flacFile, err := goflac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	var cmt *flacvorbis.MetaDataBlockVorbisComment
	for _, meta := range flacFile.Meta {
		if meta.Type == goflac.VorbisComment {
			cmt, err = flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
			}
			break
		}
	}
	if cmt == nil {
		// A FLAC file without comments is still a valid container; the
		// missing-artist check in Extract reports it.
		return nil
	}

	f.Artist = vorbisField(cmt, vcArtist)
	f.Group = vorbisField(cmt, vcGroup)
	f.Conductor = vorbisField(cmt, vcConductor)
	f.Composer = vorbisField(cmt, vcComposer)
	f.Album = vorbisField(cmt, vcAlbum)
	f.Title = vorbisField(cmt, vcTitle)
	f.TrackNumber = parseTrackNumber(vorbisField(cmt, vcTrack))
	f.Year = parseYear(vorbisField(cmt, vcDate))
	if f.Year == 0 {
		f.Year = parseYear(vorbisField(cmt, vcYear))
	}

	return nil
}

func vorbisField(cmt *flacvorbis.MetaDataBlockVorbisComment, key string) string {
	values, err := cmt.Get(key)
	if err != nil || len(values) == 0 {
		return ""
	}
	return clean(values[0])
}
