package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/llehouerou/crate/internal/db"
)

const variousArtistName = "Various"

func scanArtistRow(row *sql.Row) (*Artist, error) {
	var a Artist
	err := row.Scan(&a.ID, &a.Name, &a.Prefix, &a.NormName, &a.Various)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// artistByNorm returns the artist with the given comparison key, or nil.
func (l *Library) artistByNorm(norm string) (*Artist, error) {
	row := l.db.QueryRow(`
		SELECT id, name, prefix, normname, various FROM artists WHERE normname = ?
	`, norm)
	return scanArtistRow(row)
}

func (l *Library) artistByID(id int64) (*Artist, error) {
	row := l.db.QueryRow(`
		SELECT id, name, prefix, normname, various FROM artists WHERE id = ?
	`, id)
	return scanArtistRow(row)
}

// insertArtist creates an artist row. If a concurrent writer already
// created the same normalized name, the existing row is returned instead.
func (l *Library) insertArtist(name, prefix string, various bool) (*Artist, error) {
	norm := NormalizeName(name)
	a := &Artist{Name: name, Prefix: prefix, NormName: norm, Various: various}

	err := db.WithTx(l.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO artists (name, prefix, normname, various) VALUES (?, ?, ?, ?)
		`, name, prefix, norm, boolToInt(various))
		if err != nil {
			return err
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	if db.IsUniqueViolation(err) {
		existing, rerr := l.artistByNorm(norm)
		if rerr != nil {
			return nil, rerr
		}
		if existing == nil {
			return nil, fmt.Errorf("artist %q: %w", name, err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (l *Library) setArtistPrefix(id int64, prefix string) error {
	_, err := l.db.Exec(`UPDATE artists SET prefix = ? WHERE id = ?`, prefix, id)
	return err
}

func (l *Library) renameArtist(id int64, name string) error {
	_, err := l.db.Exec(`UPDATE artists SET name = ? WHERE id = ?`, name, id)
	return err
}

func (l *Library) deleteArtist(id int64) error {
	_, err := l.db.Exec(`DELETE FROM artists WHERE id = ?`, id)
	return err
}

// variousArtist returns the reserved compilation sentinel, or nil if it
// has not been created yet.
func (l *Library) variousArtist() (*Artist, error) {
	row := l.db.QueryRow(`
		SELECT id, name, prefix, normname, various FROM artists WHERE various = 1
	`)
	return scanArtistRow(row)
}

// EnsureVariousArtist guarantees the sentinel exists. Returns true if it
// was created by this call.
func (l *Library) EnsureVariousArtist() (bool, error) {
	existing, err := l.variousArtist()
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	_, err = l.insertArtist(variousArtistName, "", true)
	if err != nil {
		return false, err
	}
	return true, nil
}

// artistSongRefCount counts song references to the artist across all four
// role slots.
func (l *Library) artistSongRefCount(id int64) (int, error) {
	var count int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM songs
		WHERE artist_id = ? OR group_id = ? OR conductor_id = ? OR composer_id = ?
	`, id, id, id, id).Scan(&count)
	return count, err
}

func (l *Library) artistAlbumCount(id int64) (int, error) {
	var count int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM albums WHERE artist_id = ?`, id).Scan(&count)
	return count, err
}

// artistRawNames returns the distinct raw (pre-normalization) tag strings
// currently referencing the artist in any role slot.
func (l *Library) artistRawNames(id int64) ([]string, error) {
	rows, err := l.db.Query(`
		SELECT DISTINCT raw_artist FROM songs WHERE artist_id = ?
		UNION SELECT DISTINCT raw_group FROM songs WHERE group_id = ?
		UNION SELECT DISTINCT raw_conductor FROM songs WHERE conductor_id = ?
		UNION SELECT DISTINCT raw_composer FROM songs WHERE composer_id = ?
	`, id, id, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
