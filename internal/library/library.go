// Package library maintains a normalized music catalog (artists, albums,
// songs, album art) in SQLite and keeps it converged with a directory tree
// of audio files across repeated scans. Row identity is stable: a scan
// only touches rows whose on-disk state actually changed.
package library

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/llehouerou/crate/internal/config"
)

// Artist is one credited name, shared across all four song roles.
type Artist struct {
	ID       int64
	Name     string // display name without prefix, original casing
	Prefix   string // leading article ("The"), stored separately
	NormName string // case/diacritic-folded comparison key, unique
	Various  bool   // the reserved compilation sentinel
}

// FullName returns the display name with its prefix reattached.
func (a *Artist) FullName() string {
	if a.Prefix != "" {
		return a.Prefix + " " + a.Name
	}
	return a.Name
}

// Album belongs to exactly one artist, which may be the Various sentinel.
type Album struct {
	ID            int64
	ArtistID      int64
	Name          string
	NormName      string
	Year          int
	Miscellaneous bool // synthetic per-artist non-album-tracks bucket
	Live          bool // name matches the live-show date pattern
	AddedAt       int64

	// Cover art descriptor; empty/zero when the album has no art.
	ArtFilename string // library-relative path of the source image
	ArtExt      string
	ArtMime     string
	ArtMtime    int64
}

// HasArt returns true if a cover art descriptor is present.
func (a *Album) HasArt() bool {
	return a.ArtFilename != ""
}

// Song is one cataloged file. GroupID, ConductorID and ComposerID are nil
// when the corresponding tag is absent.
type Song struct {
	ID       int64
	Path     string // library-relative, unique
	AlbumID  int64
	ArtistID int64

	GroupID     *int64
	ConductorID *int64
	ComposerID  *int64

	// Raw (pre-normalization) role strings as tagged in the file, kept
	// for display-name corrections.
	RawArtist    string
	RawGroup     string
	RawConductor string
	RawComposer  string

	Title       string
	NormTitle   string
	Year        int
	TrackNumber int

	Type    string
	Bitrate int
	Mode    string
	Size    int64
	Length  int
	SHA256  string
	Mtime   int64
	AddedAt int64
}

// Dir returns the library-relative directory containing the song.
func (s *Song) Dir() string {
	return filepath.Dir(s.Path)
}

// Library is the catalog store plus the reconciliation engine over it.
type Library struct {
	db  *sql.DB
	cfg *config.Config
}

// New wraps an already-open database. The schema must exist.
func New(db *sql.DB, cfg *config.Config) *Library {
	return &Library{db: db, cfg: cfg}
}

// Open opens (creating if needed) the catalog database for cfg.
func Open(cfg *config.Config) (*Library, error) {
	dbPath, err := cfg.ResolveDatabasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, cfg), nil
}

func (l *Library) Close() error {
	return l.db.Close()
}

// DB exposes the underlying handle for consumers with their own queries.
func (l *Library) DB() *sql.DB {
	return l.db
}

// fullPath resolves a library-relative path against the configured root.
func (l *Library) fullPath(rel string) string {
	return filepath.Join(l.cfg.LibraryPath, rel)
}
