package library

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS artists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			prefix TEXT NOT NULL DEFAULT '',
			normname TEXT NOT NULL UNIQUE,
			various INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS albums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			artist_id INTEGER NOT NULL REFERENCES artists(id),
			name TEXT NOT NULL,
			normname TEXT NOT NULL,
			year INTEGER NOT NULL DEFAULT 0,
			miscellaneous INTEGER NOT NULL DEFAULT 0,
			live INTEGER NOT NULL DEFAULT 0,
			added_at INTEGER NOT NULL,
			art_filename TEXT,
			art_ext TEXT,
			art_mime TEXT,
			art_mtime INTEGER NOT NULL DEFAULT 0,
			UNIQUE(artist_id, normname, miscellaneous)
		);

		CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);

		CREATE TABLE IF NOT EXISTS songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			album_id INTEGER NOT NULL REFERENCES albums(id),
			artist_id INTEGER NOT NULL REFERENCES artists(id),
			group_id INTEGER REFERENCES artists(id),
			conductor_id INTEGER REFERENCES artists(id),
			composer_id INTEGER REFERENCES artists(id),
			raw_artist TEXT NOT NULL,
			raw_group TEXT NOT NULL DEFAULT '',
			raw_conductor TEXT NOT NULL DEFAULT '',
			raw_composer TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			normtitle TEXT NOT NULL,
			year INTEGER NOT NULL DEFAULT 0,
			tracknum INTEGER NOT NULL DEFAULT 0,
			filetype TEXT NOT NULL,
			bitrate INTEGER NOT NULL DEFAULT 0,
			mode TEXT NOT NULL DEFAULT 'CBR',
			size INTEGER NOT NULL DEFAULT 0,
			length INTEGER NOT NULL DEFAULT 0,
			sha256sum TEXT NOT NULL,
			mtime INTEGER NOT NULL DEFAULT 0,
			added_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_songs_album ON songs(album_id);
		CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist_id);
		CREATE INDEX IF NOT EXISTS idx_songs_sha256 ON songs(sha256sum);

		CREATE TABLE IF NOT EXISTS album_art (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
			size TEXT NOT NULL,
			resolution INTEGER NOT NULL,
			from_mtime INTEGER NOT NULL,
			image BLOB NOT NULL,
			UNIQUE(album_id, size)
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
