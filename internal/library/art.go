package library

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
)

// ArtSize names a derivative variant; its resolution comes from config.
type ArtSize string

const (
	ArtSizeAlbum ArtSize = "album"
	ArtSizeList  ArtSize = "list"
)

// Derivatives are always re-encoded to one output format regardless of
// the source image.
const derivativeMime = "image/jpeg"

// artMimeByFormat classifies a decoded image. The decoded content wins
// over the on-disk extension for MIME typing, but the stored filename
// keeps the extension found on disk.
var artMimeByFormat = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

func (l *Library) artResolution(size ArtSize) int {
	if size == ArtSizeList {
		return l.cfg.Art.ListSize
	}
	return l.cfg.Art.AlbumSize
}

// locateArt returns the library-relative path of the best cover image for
// the album, anchored to the directory of its first song. Miscellaneous
// albums never have art.
func (l *Library) locateArt(a *Album) (string, error) {
	if a.Miscellaneous {
		return "", nil
	}
	first, err := l.albumFirstSongPath(a.ID)
	if err != nil || first == "" {
		return "", err
	}
	return l.findDirectoryCover(filepath.Dir(first)), nil
}

// importArt validates and records source as the album's cover. The file
// must carry an allowed extension and decode to a recognized format.
func (l *Library) importArt(a *Album, source string) error {
	if imageExtRank(source) < 0 {
		return fmt.Errorf("%s: unsupported image extension", source)
	}

	full := l.fullPath(source)
	fh, err := os.Open(full)
	if err != nil {
		return err
	}
	cfgErr := func() error {
		defer fh.Close()
		_, format, err := image.DecodeConfig(fh)
		if err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
		mime, ok := artMimeByFormat[format]
		if !ok {
			return fmt.Errorf("%s: unrecognized image format %q", source, format)
		}
		a.ArtMime = mime
		return nil
	}()
	if cfgErr != nil {
		return cfgErr
	}

	info, err := os.Stat(full)
	if err != nil {
		return err
	}

	a.ArtFilename = source
	a.ArtExt = strings.TrimPrefix(strings.ToLower(filepath.Ext(source)), ".")
	a.ArtMtime = info.ModTime().Unix()
	return l.saveAlbumArt(a.ID, a.ArtFilename, a.ArtExt, a.ArtMime, a.ArtMtime)
}

// refreshArt re-resolves the album's cover. With force unset, a
// descriptor whose source file still carries the recorded mtime is left
// alone; otherwise the cover is located and imported anew, or the
// descriptor cleared when no cover remains.
func (l *Library) refreshArt(a *Album, force bool) error {
	if !force && a.HasArt() {
		info, err := os.Stat(l.fullPath(a.ArtFilename))
		if err == nil && info.ModTime().Unix() == a.ArtMtime {
			return nil
		}
	}

	source, err := l.locateArt(a)
	if err != nil {
		return err
	}
	if source == "" {
		if a.HasArt() {
			if err := l.clearAlbumArt(a.ID); err != nil {
				return err
			}
			a.ArtFilename, a.ArtExt, a.ArtMime, a.ArtMtime = "", "", "", 0
		}
		return nil
	}
	return l.importArt(a, source)
}

// artSweep refreshes cover art across a set of albums, reporting but not
// propagating per-album failures.
func (l *Library) artSweep(r reporter, albums []*Album) error {
	for _, a := range albums {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if a.Miscellaneous {
			continue
		}
		had := a.ArtFilename
		if err := l.refreshArt(a, false); err != nil {
			r.errorf("Album art for %q: %v", a.Name, err)
			continue
		}
		if a.ArtFilename != had && a.HasArt() {
			r.infof("Found album art for %q: %s", a.Name, a.ArtFilename)
		}
	}
	return nil
}

// ArtDerivative returns the resized cover for an album in the given size
// variant, generating and caching it when absent or stale. A cached copy
// is reused only while both the source mtime and the configured
// resolution still match. Albums without art yield nil.
func (l *Library) ArtDerivative(albumID int64, size ArtSize) ([]byte, string, error) {
	a, err := l.albumByID(albumID)
	if err != nil || a == nil {
		return nil, "", err
	}
	res := l.artResolution(size)

	var (
		cachedRes   int
		cachedMtime int64
		img         []byte
	)
	err = l.db.QueryRow(`
		SELECT resolution, from_mtime, image FROM album_art
		WHERE album_id = ? AND size = ?
	`, albumID, string(size)).Scan(&cachedRes, &cachedMtime, &img)
	switch {
	case err == nil:
		if cachedRes == res && cachedMtime == a.ArtMtime && a.HasArt() {
			return img, derivativeMime, nil
		}
		if _, err := l.db.Exec(`
			DELETE FROM album_art WHERE album_id = ? AND size = ?
		`, albumID, string(size)); err != nil {
			return nil, "", err
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, "", err
	}

	if err := l.refreshArt(a, false); err != nil {
		return nil, "", err
	}
	if !a.HasArt() {
		return nil, "", nil
	}

	data, err := l.renderDerivative(a, res)
	if err != nil {
		return nil, "", err
	}
	if _, err := l.db.Exec(`
		INSERT INTO album_art (album_id, size, resolution, from_mtime, image)
		VALUES (?, ?, ?, ?, ?)
	`, albumID, string(size), res, a.ArtMtime, data); err != nil {
		return nil, "", err
	}
	return data, derivativeMime, nil
}

// renderDerivative decodes the source image, fits it within a square
// bounding box preserving aspect, and re-encodes it. The JPEG encoder
// converts whatever color model the source decoded to.
func (l *Library) renderDerivative(a *Album, res int) ([]byte, error) {
	fh, err := os.Open(l.fullPath(a.ArtFilename))
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	src, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ArtFilename, err)
	}
	thumb := resize.Thumbnail(uint(res), uint(res), src, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
