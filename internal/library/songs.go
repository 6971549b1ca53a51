package library

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/llehouerou/crate/internal/db"
	"github.com/llehouerou/crate/internal/tags"
)

const songColumns = `id, path, album_id, artist_id, group_id, conductor_id, composer_id,
	raw_artist, raw_group, raw_conductor, raw_composer,
	title, normtitle, year, tracknum, filetype, bitrate, mode, size, length,
	sha256sum, mtime, added_at`

func scanSong(sc interface{ Scan(...any) error }) (*Song, error) {
	var s Song
	var group, conductor, composer sql.NullInt64
	err := sc.Scan(&s.ID, &s.Path, &s.AlbumID, &s.ArtistID, &group, &conductor, &composer,
		&s.RawArtist, &s.RawGroup, &s.RawConductor, &s.RawComposer,
		&s.Title, &s.NormTitle, &s.Year, &s.TrackNumber, &s.Type, &s.Bitrate, &s.Mode,
		&s.Size, &s.Length, &s.SHA256, &s.Mtime, &s.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.GroupID = db.NullInt64ToPtr(group)
	s.ConductorID = db.NullInt64ToPtr(conductor)
	s.ComposerID = db.NullInt64ToPtr(composer)
	return &s, nil
}

// allSongs returns every cataloged song ordered by path.
func (l *Library) allSongs() ([]*Song, error) {
	rows, err := l.db.Query(`SELECT ` + songColumns + ` FROM songs ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func (l *Library) songByPath(path string) (*Song, error) {
	row := l.db.QueryRow(`SELECT `+songColumns+` FROM songs WHERE path = ?`, path)
	return scanSong(row)
}

// applyTags copies the per-file fields of an extracted record onto the
// song, leaving artist/album resolution to the engine.
func (s *Song) applyTags(f *tags.File) {
	s.Path = f.Path
	s.RawArtist = f.Artist
	s.RawGroup = f.Group
	s.RawConductor = f.Conductor
	s.RawComposer = f.Composer
	s.Title = f.Title
	s.NormTitle = NormalizeName(f.Title)
	s.Year = f.Year
	s.TrackNumber = f.TrackNumber
	s.Type = string(f.Type)
	s.Bitrate = f.Bitrate
	s.Mode = string(f.Mode)
	s.Size = f.Size
	s.Length = f.Length
	s.SHA256 = f.SHA256
	s.Mtime = f.Mtime
}

func newSong(f *tags.File) *Song {
	s := &Song{AddedAt: time.Now().Unix()}
	s.applyTags(f)
	return s
}

func (l *Library) insertSong(s *Song) error {
	res, err := l.db.Exec(`
		INSERT INTO songs (path, album_id, artist_id, group_id, conductor_id, composer_id,
			raw_artist, raw_group, raw_conductor, raw_composer,
			title, normtitle, year, tracknum, filetype, bitrate, mode, size, length,
			sha256sum, mtime, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Path, s.AlbumID, s.ArtistID, s.GroupID, s.ConductorID, s.ComposerID,
		s.RawArtist, s.RawGroup, s.RawConductor, s.RawComposer,
		s.Title, s.NormTitle, s.Year, s.TrackNumber, s.Type, s.Bitrate, s.Mode,
		s.Size, s.Length, s.SHA256, s.Mtime, s.AddedAt)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (l *Library) updateSong(s *Song) error {
	_, err := l.db.Exec(`
		UPDATE songs SET path = ?, album_id = ?, artist_id = ?, group_id = ?,
			conductor_id = ?, composer_id = ?,
			raw_artist = ?, raw_group = ?, raw_conductor = ?, raw_composer = ?,
			title = ?, normtitle = ?, year = ?, tracknum = ?, filetype = ?,
			bitrate = ?, mode = ?, size = ?, length = ?, sha256sum = ?, mtime = ?
		WHERE id = ?
	`, s.Path, s.AlbumID, s.ArtistID, s.GroupID, s.ConductorID, s.ComposerID,
		s.RawArtist, s.RawGroup, s.RawConductor, s.RawComposer,
		s.Title, s.NormTitle, s.Year, s.TrackNumber, s.Type, s.Bitrate, s.Mode,
		s.Size, s.Length, s.SHA256, s.Mtime, s.ID)
	return err
}

// updateSongPath records a detected move; nothing else about the row
// changes, preserving its identity.
func (l *Library) updateSongPath(id int64, path string) error {
	_, err := l.db.Exec(`UPDATE songs SET path = ? WHERE id = ?`, path, id)
	return err
}

func (l *Library) setSongAlbum(id, albumID int64) error {
	_, err := l.db.Exec(`UPDATE songs SET album_id = ? WHERE id = ?`, albumID, id)
	return err
}

func (l *Library) deleteSong(id int64) error {
	_, err := l.db.Exec(`DELETE FROM songs WHERE id = ?`, id)
	return err
}

// prefixColumns qualifies each column in a comma-separated list with a
// table alias, for join queries.
func prefixColumns(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// dirSong pairs a cataloged song with the normalized identity of its
// current artist and album, as needed by directory-level regrouping.
type dirSong struct {
	song *Song

	artistNorm string

	albumID            int64
	albumName          string
	albumNorm          string
	albumMisc          bool
	albumArtistID      int64
	albumArtistNorm    string
	albumArtistVarious bool
}

// songsByDir loads the whole catalog grouped by containing directory,
// with artist and album identity joined in.
func (l *Library) songsByDir() (map[string][]*dirSong, error) {
	rows, err := l.db.Query(`
		SELECT ` + prefixColumns(songColumns, "s") + `,
			ar.normname,
			al.id, al.name, al.normname, al.miscellaneous,
			al.artist_id, alar.normname, alar.various
		FROM songs s
		JOIN artists ar ON ar.id = s.artist_id
		JOIN albums al ON al.id = s.album_id
		JOIN artists alar ON alar.id = al.artist_id
		ORDER BY s.path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDir := make(map[string][]*dirSong)
	for rows.Next() {
		var s Song
		var group, conductor, composer sql.NullInt64
		ds := &dirSong{song: &s}
		err := rows.Scan(&s.ID, &s.Path, &s.AlbumID, &s.ArtistID, &group, &conductor, &composer,
			&s.RawArtist, &s.RawGroup, &s.RawConductor, &s.RawComposer,
			&s.Title, &s.NormTitle, &s.Year, &s.TrackNumber, &s.Type, &s.Bitrate, &s.Mode,
			&s.Size, &s.Length, &s.SHA256, &s.Mtime, &s.AddedAt,
			&ds.artistNorm,
			&ds.albumID, &ds.albumName, &ds.albumNorm, &ds.albumMisc,
			&ds.albumArtistID, &ds.albumArtistNorm, &ds.albumArtistVarious)
		if err != nil {
			return nil, err
		}
		s.GroupID = db.NullInt64ToPtr(group)
		s.ConductorID = db.NullInt64ToPtr(conductor)
		s.ComposerID = db.NullInt64ToPtr(composer)

		dir := filepath.Dir(s.Path)
		byDir[dir] = append(byDir[dir], ds)
	}
	return byDir, rows.Err()
}
