package library

// Read-side queries for consumers of the catalog (the CLI, a browsing
// UI). All orderings are deterministic.

// Artists returns every artist ordered by normalized name, with the
// Various sentinel included.
func (l *Library) Artists() ([]*Artist, error) {
	rows, err := l.db.Query(`
		SELECT id, name, prefix, normname, various FROM artists ORDER BY normname
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artists []*Artist
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.Prefix, &a.NormName, &a.Various); err != nil {
			return nil, err
		}
		artists = append(artists, &a)
	}
	return artists, rows.Err()
}

// Albums returns every album ordered by name.
func (l *Library) Albums() ([]*Album, error) {
	return l.queryAlbums(`SELECT ` + albumColumns + ` FROM albums ORDER BY normname, id`)
}

// ArtistAlbums returns an artist's albums oldest first.
func (l *Library) ArtistAlbums(artistID int64) ([]*Album, error) {
	return l.queryAlbums(`
		SELECT `+albumColumns+` FROM albums
		WHERE artist_id = ? ORDER BY year, normname
	`, artistID)
}

func (l *Library) queryAlbums(query string, args ...any) ([]*Album, error) {
	rows, err := l.db.Query(query, args...)
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

// Album returns one album by id, or nil when it does not exist.
func (l *Library) Album(id int64) (*Album, error) {
	return l.albumByID(id)
}

// Artist returns one artist by id, or nil when it does not exist.
func (l *Library) Artist(id int64) (*Artist, error) {
	return l.artistByID(id)
}

// AlbumSongs returns an album's songs in track order, path as tiebreak.
func (l *Library) AlbumSongs(albumID int64) ([]*Song, error) {
	rows, err := l.db.Query(`
		SELECT `+songColumns+` FROM songs
		WHERE album_id = ? ORDER BY tracknum, path
	`, albumID)
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

// SongByPath returns one song by its library-relative path, or nil.
func (l *Library) SongByPath(path string) (*Song, error) {
	return l.songByPath(path)
}

// Counts returns the catalog totals.
func (l *Library) Counts() (artists, albums, songs int, err error) {
	if err = l.db.QueryRow(`SELECT COUNT(*) FROM artists`).Scan(&artists); err != nil {
		return
	}
	if err = l.db.QueryRow(`SELECT COUNT(*) FROM albums`).Scan(&albums); err != nil {
		return
	}
	err = l.db.QueryRow(`SELECT COUNT(*) FROM songs`).Scan(&songs)
	return
}
