package library

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/llehouerou/crate/internal/db"
)

// nonAlbumFormat names the synthetic per-artist bucket for untagged-album
// tracks, keyed on the full (prefixed) artist name.
const nonAlbumFormat = "(Non-Album Tracks: %s)"

// Live shows are conventionally named with a leading show date.
var liveAlbumRe = regexp.MustCompile(`^(19|20)\d{2}[-.]\d{2}[-.]\d{2}`)

func miscAlbumName(artistFull string) string {
	return fmt.Sprintf(nonAlbumFormat, artistFull)
}

func isLiveName(name string) bool {
	return liveAlbumRe.MatchString(name)
}

const albumColumns = `id, artist_id, name, normname, year, miscellaneous, live, added_at,
	art_filename, art_ext, art_mime, art_mtime`

func scanAlbum(sc interface{ Scan(...any) error }) (*Album, error) {
	var a Album
	var filename, ext, mime sql.NullString
	var mtime sql.NullInt64
	err := sc.Scan(&a.ID, &a.ArtistID, &a.Name, &a.NormName, &a.Year, &a.Miscellaneous, &a.Live,
		&a.AddedAt, &filename, &ext, &mime, &mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ArtFilename = db.NullStringValue(filename)
	a.ArtExt = db.NullStringValue(ext)
	a.ArtMime = db.NullStringValue(mime)
	a.ArtMtime = db.NullInt64Value(mtime)
	return &a, nil
}

// albumByKey looks up an album by its uniqueness key. Miscellaneous albums
// are tracked by flag, never by name, so they can coexist with a real
// album that happens to share the synthetic title.
func (l *Library) albumByKey(artistID int64, norm string, misc bool) (*Album, error) {
	row := l.db.QueryRow(`
		SELECT `+albumColumns+` FROM albums
		WHERE artist_id = ? AND normname = ? AND miscellaneous = ?
	`, artistID, norm, boolToInt(misc))
	return scanAlbum(row)
}

// miscAlbumFor returns the artist's synthetic non-album-tracks bucket, or
// nil if it does not exist yet.
func (l *Library) miscAlbumFor(artistID int64) (*Album, error) {
	row := l.db.QueryRow(`
		SELECT `+albumColumns+` FROM albums
		WHERE artist_id = ? AND miscellaneous = 1
	`, artistID)
	return scanAlbum(row)
}

func (l *Library) albumByID(id int64) (*Album, error) {
	row := l.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	return scanAlbum(row)
}

// insertAlbum creates an album row, falling back to a re-read when a
// concurrent writer already created the same (artist, name) pair.
func (l *Library) insertAlbum(artistID int64, name string, year int, misc bool, addedAt int64) (*Album, error) {
	a := &Album{
		ArtistID:      artistID,
		Name:          name,
		NormName:      NormalizeName(name),
		Year:          year,
		Miscellaneous: misc,
		Live:          isLiveName(name),
		AddedAt:       addedAt,
	}

	err := db.WithTx(l.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO albums (artist_id, name, normname, year, miscellaneous, live, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, artistID, a.Name, a.NormName, year, boolToInt(misc), boolToInt(a.Live), addedAt)
		if err != nil {
			return err
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	if db.IsUniqueViolation(err) {
		existing, rerr := l.albumByKey(artistID, a.NormName, misc)
		if rerr != nil {
			return nil, rerr
		}
		if existing == nil {
			return nil, fmt.Errorf("album %q: %w", name, err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// updateAlbum rewrites the identity-bearing fields of an album in place,
// preserving its row id and added_at timestamp.
func (l *Library) updateAlbum(a *Album) error {
	_, err := l.db.Exec(`
		UPDATE albums SET artist_id = ?, name = ?, normname = ?, year = ?, live = ?
		WHERE id = ?
	`, a.ArtistID, a.Name, a.NormName, a.Year, boolToInt(a.Live), a.ID)
	return err
}

func (l *Library) setAlbumArtist(id, artistID int64) error {
	_, err := l.db.Exec(`UPDATE albums SET artist_id = ? WHERE id = ?`, artistID, id)
	return err
}

// saveAlbumArt persists the cover art descriptor.
func (l *Library) saveAlbumArt(id int64, filename, ext, mime string, mtime int64) error {
	_, err := l.db.Exec(`
		UPDATE albums SET art_filename = ?, art_ext = ?, art_mime = ?, art_mtime = ?
		WHERE id = ?
	`, filename, ext, mime, mtime, id)
	return err
}

func (l *Library) clearAlbumArt(id int64) error {
	_, err := l.db.Exec(`
		UPDATE albums SET art_filename = NULL, art_ext = NULL, art_mime = NULL, art_mtime = 0
		WHERE id = ?
	`, id)
	return err
}

func (l *Library) deleteAlbum(id int64) error {
	return db.WithTx(l.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM album_art WHERE album_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM albums WHERE id = ?`, id)
		return err
	})
}

func (l *Library) albumSongCount(id int64) (int, error) {
	var count int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM songs WHERE album_id = ?`, id).Scan(&count)
	return count, err
}

// allAlbums returns every album ordered by id, for full-catalog sweeps.
func (l *Library) allAlbums() ([]*Album, error) {
	rows, err := l.db.Query(`SELECT ` + albumColumns + ` FROM albums ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []*Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// albumFirstSongPath returns the lexicographically first song path of the
// album, used to anchor cover art lookup to a directory.
func (l *Library) albumFirstSongPath(id int64) (string, error) {
	var path string
	err := l.db.QueryRow(`
		SELECT path FROM songs WHERE album_id = ? ORDER BY path LIMIT 1
	`, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return path, err
}
