package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateNoChanges(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)

	events := runUpdate(t, l)
	assert.False(t, hasEvent(events, LevelInfo, "Removed"))

	after, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.AlbumID, after.AlbumID)
}

func TestUpdateMoveDetection(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "old/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	before, err := l.SongByPath("old/song.mp3")
	require.NoError(t, err)

	// Move the file on disk without touching its bytes.
	newFull := l.fullPath("new/song.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(newFull), 0o755))
	require.NoError(t, os.Rename(l.fullPath("old/song.mp3"), newFull))

	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelInfo, "Detected moved file"))

	gone, err := l.SongByPath("old/song.mp3")
	require.NoError(t, err)
	assert.Nil(t, gone)

	moved, err := l.SongByPath("new/song.mp3")
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Equal(t, before.ID, moved.ID, "a move must preserve row identity")
	assert.Equal(t, before.AlbumID, moved.AlbumID)
	assert.Equal(t, before.SHA256, moved.SHA256)

	_, _, songs, err := l.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, songs)
}

func TestUpdateDeletionAndOrphanCleanup(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	require.NoError(t, os.Remove(l.fullPath("a/song.mp3")))
	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelInfo, "Removed a/song.mp3"))
	assert.True(t, hasEvent(events, LevelInfo, "Removed empty album"))
	assert.True(t, hasEvent(events, LevelInfo, "Removed orphan artist"))

	artists, albums, songs, err := l.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, artists, "only the Various sentinel survives")
	assert.Equal(t, 0, albums)
	assert.Equal(t, 0, songs)

	va, err := l.variousArtist()
	require.NoError(t, err)
	assert.NotNil(t, va)
}

func TestUpdateRetagTitle(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Old Title", "TRCK": "1",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)

	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "New Title", "TRCK": "7",
	})
	bumpMtime(t, l, "a/song.mp3")
	runUpdate(t, l)

	after, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "New Title", after.Title)
	assert.Equal(t, 7, after.TrackNumber)
	assert.Equal(t, before.AlbumID, after.AlbumID)
	assert.Equal(t, before.ArtistID, after.ArtistID)
}

func TestUpdateAlbumRenameFullCoverage(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "First", "TIT2": "One",
	})
	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "First", "TIT2": "Two",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/01.mp3")
	require.NoError(t, err)

	// Retag every track of the album.
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Second", "TIT2": "One",
	})
	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Second", "TIT2": "Two",
	})
	bumpMtime(t, l, "a/01.mp3")
	bumpMtime(t, l, "a/02.mp3")

	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelInfo, "Renamed album"))

	after, err := l.SongByPath("a/01.mp3")
	require.NoError(t, err)
	assert.Equal(t, before.AlbumID, after.AlbumID, "full coverage renames in place")

	a, err := l.Album(after.AlbumID)
	require.NoError(t, err)
	assert.Equal(t, "Second", a.Name)

	_, albums, _, err := l.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, albums)
}

func TestUpdateAlbumRenamePartialCoverage(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "First", "TIT2": "One",
	})
	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "First", "TIT2": "Two",
	})
	runAdd(t, l)

	s2Before, err := l.SongByPath("a/02.mp3")
	require.NoError(t, err)

	// Retag only one of two tracks.
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Second", "TIT2": "One",
	})
	bumpMtime(t, l, "a/01.mp3")
	runUpdate(t, l)

	s1, err := l.SongByPath("a/01.mp3")
	require.NoError(t, err)
	s2, err := l.SongByPath("a/02.mp3")
	require.NoError(t, err)

	assert.Equal(t, s2Before.AlbumID, s2.AlbumID, "untouched track keeps the old row")
	assert.NotEqual(t, s1.AlbumID, s2.AlbumID, "touched track moves to a new row")

	a1, err := l.Album(s1.AlbumID)
	require.NoError(t, err)
	assert.Equal(t, "Second", a1.Name)
	a2, err := l.Album(s2.AlbumID)
	require.NoError(t, err)
	assert.Equal(t, "First", a2.Name)
}

func TestUpdateArtistChange(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Old Artist", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)

	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "New Artist", "TALB": "Album", "TIT2": "Song",
	})
	bumpMtime(t, l, "a/song.mp3")
	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelInfo, "Removed orphan artist"))

	after, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	assert.NotEqual(t, before.ArtistID, after.ArtistID)
	assert.Equal(t, "New Artist", mustArtist(t, l, after.ArtistID).Name)

	// The album row survives and follows the new artist.
	assert.Equal(t, before.AlbumID, after.AlbumID)
	a, err := l.Album(after.AlbumID)
	require.NoError(t, err)
	assert.Equal(t, after.ArtistID, a.ArtistID)

	old, err := l.Artist(before.ArtistID)
	require.NoError(t, err)
	assert.Nil(t, old, "the dropped artist is swept")
}

func TestUpdateVariousConversionOnRetag(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "One",
	})
	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Two",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/01.mp3")
	require.NoError(t, err)

	// One track changes artist; the shared album becomes Various.
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Other Artist", "TALB": "Album", "TIT2": "One",
	})
	bumpMtime(t, l, "a/01.mp3")
	runUpdate(t, l)

	a, err := l.Album(before.AlbumID)
	require.NoError(t, err)
	require.NotNil(t, a)
	owner, err := l.Artist(a.ArtistID)
	require.NoError(t, err)
	assert.True(t, owner.Various)
}

func TestUpdateVariousReversionOnRetag(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "One",
	})
	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Other Artist", "TALB": "Album", "TIT2": "Two",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/01.mp3")
	require.NoError(t, err)
	a, err := l.Album(before.AlbumID)
	require.NoError(t, err)
	require.True(t, mustArtist(t, l, a.ArtistID).Various)

	// The divergent track comes back to the shared artist; the album
	// reverts from Various and the dropped contributor is swept.
	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Two",
	})
	bumpMtime(t, l, "a/02.mp3")
	runUpdate(t, l)

	after, err := l.Album(before.AlbumID)
	require.NoError(t, err)
	require.NotNil(t, after)
	owner := mustArtist(t, l, after.ArtistID)
	assert.False(t, owner.Various)
	assert.Equal(t, "Artist", owner.Name)

	gone, err := l.artistByNorm(NormalizeName("Other Artist"))
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUpdatePrefixKeptOnRetag(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "The Beatles", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	require.Equal(t, "The", mustArtist(t, l, before.ArtistID).Prefix)

	// The article disappears from the tag; the learned prefix stays.
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Beatles", "TALB": "Album", "TIT2": "Song",
	})
	bumpMtime(t, l, "a/song.mp3")
	runUpdate(t, l)

	after, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, before.ArtistID, after.ArtistID)
	a := mustArtist(t, l, after.ArtistID)
	assert.Equal(t, "Beatles", a.Name)
	assert.Equal(t, "The", a.Prefix)
}

func TestUpdateAlbumYearKeptWhenYearTagRemoved(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song", "TYER": "2005",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)

	// A missing year tag reads as zero, which never overwrites a known
	// album year.
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song",
	})
	bumpMtime(t, l, "a/song.mp3")
	runUpdate(t, l)

	a, err := l.Album(before.AlbumID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 2005, a.Year)
}

func TestUpdateAlbumRenameKeepsYear(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song", "TYER": "2005",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)

	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Other Album", "TIT2": "Song",
	})
	bumpMtime(t, l, "a/song.mp3")
	runUpdate(t, l)

	a, err := l.Album(before.AlbumID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Other Album", a.Name)
	assert.Equal(t, 2005, a.Year)
}

func TestUpdateAddsNewFiles(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/01.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "One",
	})
	runAdd(t, l)

	writeSong(t, l, "a/02.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Two",
	})
	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelSuccess, "Added 1 songs"))

	s, err := l.SongByPath("a/02.mp3")
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestUpdateArtistNameCorrection(t *testing.T) {
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "artist name", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	before, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)

	// Same identity, corrected casing.
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist Name", "TALB": "Album", "TIT2": "Song",
	})
	bumpMtime(t, l, "a/song.mp3")
	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelInfo, "Renamed artist"))

	after, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, before.ArtistID, after.ArtistID, "identity is preserved")
	assert.Equal(t, "Artist Name", mustArtist(t, l, after.ArtistID).Name)
}

func TestUpdateUnreadableFileRetained(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits are ignored for root")
	}
	l := setupTestLibrary(t)
	writeSong(t, l, "a/song.mp3", map[string]string{
		"TPE1": "Artist", "TALB": "Album", "TIT2": "Song",
	})
	runAdd(t, l)

	full := l.fullPath("a/song.mp3")
	bumpMtime(t, l, "a/song.mp3")
	require.NoError(t, os.Chmod(full, 0o000))
	t.Cleanup(func() { os.Chmod(full, 0o644) })

	events := runUpdate(t, l)
	assert.True(t, hasEvent(events, LevelError, "a/song.mp3"))

	s, err := l.SongByPath("a/song.mp3")
	require.NoError(t, err)
	assert.NotNil(t, s, "unreadable is transient, only absence deletes")
}
