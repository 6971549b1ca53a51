package library

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/crate/internal/tags"
)

// cleanupSet collects rows that may have lost their last reference during
// an update, for the orphan sweep at the end.
type cleanupSet struct {
	albums  map[int64]bool
	artists map[int64]bool
}

func newCleanupSet() *cleanupSet {
	return &cleanupSet{albums: make(map[int64]bool), artists: make(map[int64]bool)}
}

// song records every row a deleted song was holding a reference to.
func (c *cleanupSet) song(s *Song) {
	c.albums[s.AlbumID] = true
	c.artists[s.ArtistID] = true
	for _, id := range []*int64{s.GroupID, s.ConductorID, s.ComposerID} {
		if id != nil {
			c.artists[*id] = true
		}
	}
}

// Update reconciles the whole catalog against current disk state:
// detects moves by content hash, commits deletions, re-extracts files
// whose mtime changed, regroups albums in affected directories, adds new
// files, sweeps orphans, and refreshes art for the full catalog. The
// events channel is closed when the run finishes; the caller must drain
// it.
func (l *Library) Update(ctx context.Context, events chan<- Event) error {
	defer close(events)
	r := reporter{ctx: ctx, ch: events}

	if err := l.ensureSentinel(r); err != nil {
		return err
	}
	st := newBatchState(l, r)
	if err := st.load(); err != nil {
		return err
	}

	songs, err := l.allSongs()
	if err != nil {
		return err
	}

	// Liveness pass. Missing files become tentative deletions, indexed
	// by content hash for move detection; stat failures other than
	// absence leave the row alone.
	known := make(map[string]struct{}, len(songs))
	var missing []*Song
	byDigest := make(map[string]*Song)
	var stale []*Song
	for _, s := range songs {
		known[s.Path] = struct{}{}
		info, err := os.Stat(l.fullPath(s.Path))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, s)
				if _, ok := byDigest[s.SHA256]; !ok {
					byDigest[s.SHA256] = s
				}
			} else {
				r.errorf("Could not stat %s: %v", s.Path, err)
			}
			continue
		}
		if info.ModTime().Unix() != s.Mtime {
			stale = append(stale, s)
		}
	}

	// New-file pass. A new path whose hash matches a tentatively deleted
	// song is a move: the row keeps its identity and only the path
	// changes.
	paths, err := ListAudioFiles(l.cfg.LibraryPath, "")
	if err != nil {
		return err
	}
	moved := make(map[int64]bool)
	var toAdd []pendingFile
	var movedCount, checked int
	last := time.Now()
	for _, p := range paths {
		if _, ok := known[p]; ok {
			continue
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
		sum, err := tags.Checksum(l.fullPath(p))
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				r.debugf("Skipping unreadable file %s", p)
			} else {
				r.errorf("Could not hash %s: %v", p, err)
			}
			continue
		}
		if s, ok := byDigest[sum]; ok {
			if err := l.updateSongPath(s.ID, p); err != nil {
				return err
			}
			r.infof("Detected moved file: %s -> %s", s.Path, p)
			s.Path = p
			moved[s.ID] = true
			movedCount++
			delete(byDigest, sum)
			continue
		}
		toAdd = append(toAdd, pendingFile{path: p, sum: sum})

		checked++
		if checked%progressBatch == 0 && time.Since(last) >= progressInterval {
			r.infof("%s new files checksummed", humanize.Comma(int64(checked)))
			last = time.Now()
		}
	}

	// Deletion commit.
	cleanup := newCleanupSet()
	var removed int
	for _, s := range missing {
		if moved[s.ID] {
			continue
		}
		if err := l.deleteSong(s.ID); err != nil {
			return err
		}
		r.infof("Removed %s", s.Path)
		cleanup.song(s)
		removed++
	}

	// Re-extraction pass over mtime-changed files.
	extracted := make(map[int64]*tags.File)
	regroup := make(map[string]bool)
	staleNames := make(map[int64]bool)
	sort.Slice(stale, func(i, j int) bool { return stale[i].Path < stale[j].Path })
	for _, s := range stale {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		f, err := tags.Extract(l.fullPath(s.Path), s.Path, "")
		if err != nil {
			// Unreadable or corrupt now; keep the row as is. Only
			// absence deletes.
			r.errorf("Could not re-read %s: %v", s.Path, err)
			continue
		}

		album, err := l.albumByID(s.AlbumID)
		if err != nil {
			return err
		}

		oldArtist := s.ArtistID
		if err := l.reconcileRoles(st, s, f, cleanup, staleNames); err != nil {
			return err
		}
		s.applyTags(f)
		if err := l.updateSong(s); err != nil {
			return err
		}
		extracted[s.ID] = f
		r.debugf("Updated %s", s.Path)

		if s.ArtistID != oldArtist || (album != nil && albumMismatch(album, f)) {
			regroup[s.Dir()] = true
			cleanup.albums[s.AlbumID] = true
		}
	}

	// Album regroup over every flagged directory, siblings included.
	if len(regroup) > 0 {
		byDir, err := l.songsByDir()
		if err != nil {
			return err
		}
		for _, dir := range sortedKeys(regroup) {
			if err := l.regroupDirectory(r, st, byDir[dir], extracted, cleanup); err != nil {
				return err
			}
		}
	}

	// Genuinely new files run through the add pipeline before the orphan
	// sweep, so an artist regaining a reference keeps its row.
	if len(toAdd) > 0 {
		if err := l.addBatch(r, st, toAdd); err != nil {
			return err
		}
	}

	if err := l.orphanSweep(r, cleanup); err != nil {
		return err
	}
	if err := l.correctArtistNames(r, staleNames); err != nil {
		return err
	}

	// Full-catalog art sweep: an image can change with no song touched.
	albums, err := l.allAlbums()
	if err != nil {
		return err
	}
	if err := l.artSweep(r, albums); err != nil {
		return err
	}

	if removed > 0 {
		r.successf("Removed %s songs", humanize.Comma(int64(removed)))
	}
	if movedCount > 0 {
		r.successf("Moved %s songs", humanize.Comma(int64(movedCount)))
	}
	if len(extracted) > 0 {
		r.successf("Updated %s songs", humanize.Comma(int64(len(extracted))))
	}
	st.report()
	return nil
}

// albumMismatch reports whether a re-extracted file no longer agrees
// with its currently assigned album.
func albumMismatch(album *Album, f *tags.File) bool {
	if f.Album == "" {
		return !album.Miscellaneous
	}
	if album.Miscellaneous {
		return true
	}
	if f.Year != 0 && f.Year != album.Year {
		return true
	}
	return f.Album != album.Name
}

// reconcileRoles compares each of the four artist-role slots of a
// re-extracted file against the song's current assignments, resolving new
// artists and collecting dropped ones for the orphan sweep.
func (l *Library) reconcileRoles(st *batchState, s *Song, f *tags.File, cleanup *cleanupSet, staleNames map[int64]bool) error {
	id, err := l.reconcileRole(st, f.Artist, ptr(s.ArtistID), cleanup, staleNames)
	if err != nil {
		return err
	}
	s.ArtistID = *id
	if s.GroupID, err = l.reconcileRole(st, f.Group, s.GroupID, cleanup, staleNames); err != nil {
		return err
	}
	if s.ConductorID, err = l.reconcileRole(st, f.Conductor, s.ConductorID, cleanup, staleNames); err != nil {
		return err
	}
	s.ComposerID, err = l.reconcileRole(st, f.Composer, s.ComposerID, cleanup, staleNames)
	return err
}

// reconcileRole reconciles one role slot. Same normalized identity keeps
// the assignment, possibly backfilling a prefix and flagging the display
// name as stale; a different identity resolves anew and marks the old
// artist as an orphan candidate.
func (l *Library) reconcileRole(st *batchState, name string, cur *int64, cleanup *cleanupSet, staleNames map[int64]bool) (*int64, error) {
	if name == "" {
		if cur != nil {
			cleanup.artists[*cur] = true
		}
		return nil, nil
	}
	prefix, base := l.splitPrefix(name)
	norm := NormalizeName(base)

	if cur != nil {
		a, err := l.artistByID(*cur)
		if err != nil {
			return nil, err
		}
		if a != nil && a.NormName == norm {
			if prefix != "" && a.Prefix == "" {
				if err := l.setArtistPrefix(a.ID, prefix); err != nil {
					return nil, err
				}
				a.Prefix = prefix
			}
			if a.FullName() != strings.TrimSpace(name) {
				staleNames[a.ID] = true
			}
			return cur, nil
		}
		if a != nil {
			cleanup.artists[a.ID] = true
		}
	}

	a, err := st.resolveArtist(name)
	if err != nil {
		return nil, err
	}
	return ptr(a.ID), nil
}

// regroupDirectory recomputes album grouping for one directory, exactly
// as the add path does but over the directory's full current membership.
func (l *Library) regroupDirectory(r reporter, st *batchState, members []*dirSong, extracted map[int64]*tags.File, cleanup *cleanupSet) error {
	groups := make(map[string][]*dirSong)
	rawName := make(map[string]string)
	yearOf := make(map[string]int)
	var miscMembers []*dirSong

	for _, ds := range members {
		name, year := desiredAlbum(ds, extracted)
		if name == "" {
			miscMembers = append(miscMembers, ds)
			continue
		}
		n := NormalizeName(name)
		groups[n] = append(groups[n], ds)
		if _, ok := rawName[n]; !ok {
			rawName[n] = name
		}
		if yearOf[n] == 0 && year != 0 {
			yearOf[n] = year
		}
	}

	// Untagged-album tracks sit in their artist's bucket; only touched
	// songs move.
	for _, ds := range miscMembers {
		if _, touched := extracted[ds.song.ID]; !touched {
			continue
		}
		artist, err := l.artistByID(ds.song.ArtistID)
		if err != nil {
			return err
		}
		if artist == nil {
			continue
		}
		bucket, err := st.resolveMiscAlbum(artist)
		if err != nil {
			return err
		}
		if ds.song.AlbumID != bucket.ID {
			cleanup.albums[ds.song.AlbumID] = true
			if err := l.setSongAlbum(ds.song.ID, bucket.ID); err != nil {
				return err
			}
		}
	}

	for _, n := range sortedKeys(groups) {
		if err := l.regroupAlbum(r, st, n, rawName[n], yearOf[n], groups[n], extracted, cleanup); err != nil {
			return err
		}
	}
	return nil
}

// desiredAlbum returns the album name and year a song should end up
// with: the re-extracted tags for touched songs, the current assignment
// for untouched siblings.
func desiredAlbum(ds *dirSong, extracted map[int64]*tags.File) (string, int) {
	if f, ok := extracted[ds.song.ID]; ok {
		return f.Album, f.Year
	}
	if ds.albumMisc {
		return "", ds.song.Year
	}
	return ds.albumName, ds.song.Year
}

// regroupAlbum converges one (directory, normalized album name) group
// onto a target album row. An existing row is renamed in place only when
// every track that would belong to it is part of the current batch;
// partial coverage leaves untouched tracks on the old row and moves the
// touched ones to a found-or-created row.
func (l *Library) regroupAlbum(r reporter, st *batchState, norm, raw string, year int, members []*dirSong, extracted map[int64]*tags.File, cleanup *cleanupSet) error {
	// Album-level artist, as in the add grouping.
	artistNorms := make(map[string]bool)
	for _, ds := range members {
		artistNorms[ds.artistNorm] = true
	}
	var owner *Artist
	if len(artistNorms) > 1 {
		owner = st.various
	} else {
		var err error
		owner, err = l.artistByNorm(sortedKeys(artistNorms)[0])
		if err != nil {
			return err
		}
		if owner == nil {
			owner = st.various
		}
	}

	fullCoverage := true
	oldAlbums := make(map[int64]bool)
	var matchID int64
	for _, ds := range members {
		if _, ok := extracted[ds.song.ID]; !ok {
			fullCoverage = false
		}
		oldAlbums[ds.albumID] = true
		if !ds.albumMisc && ds.albumNorm == norm && (matchID == 0 || ds.albumID < matchID) {
			matchID = ds.albumID
		}
	}
	inPlace := fullCoverage && len(oldAlbums) == 1
	soleOld := sortedIDs(oldAlbums)[0]
	if inPlace {
		count, err := l.albumSongCount(soleOld)
		if err != nil {
			return err
		}
		inPlace = count == len(members)
	}

	var target *Album
	switch {
	case matchID != 0:
		// Some member already sits on a row with this name; keep it,
		// reassigning ownership when the grouping changed.
		a, err := l.albumByID(matchID)
		if err != nil {
			return err
		}
		if a != nil {
			if a.ArtistID != owner.ID {
				delete(st.albums, albumKey{a.ArtistID, a.NormName})
				if err := l.setAlbumArtist(a.ID, owner.ID); err != nil {
					return err
				}
				a.ArtistID = owner.ID
				r.infof("Reassigned album %q to %s", a.Name, owner.FullName())
			}
			if inPlace && matchID == soleOld && (a.Name != raw || (year != 0 && a.Year != year)) {
				a.Name = raw
				if year != 0 {
					a.Year = year
				}
				a.Live = isLiveName(raw)
				if err := l.updateAlbum(a); err != nil {
					return err
				}
				r.infof("Updated album %q", a.Name)
			}
			st.albums[albumKey{owner.ID, norm}] = a
			target = a
		}
	case inPlace:
		// Whole album retagged to a new name: same row, renamed.
		a, err := l.albumByID(soleOld)
		if err != nil {
			return err
		}
		if a != nil && !a.Miscellaneous {
			old := a.Name
			delete(st.albums, albumKey{a.ArtistID, a.NormName})
			a.ArtistID = owner.ID
			a.Name = raw
			a.NormName = norm
			if year != 0 {
				a.Year = year
			}
			a.Live = isLiveName(raw)
			if err := l.updateAlbum(a); err != nil {
				return err
			}
			r.infof("Renamed album %q to %q", old, raw)
			st.albums[albumKey{owner.ID, norm}] = a
			target = a
		}
	}
	if target == nil {
		var err error
		target, err = st.resolveAlbum(r, owner, norm, raw, year, nil)
		if err != nil {
			return err
		}
	}

	for _, ds := range members {
		if ds.song.AlbumID == target.ID {
			continue
		}
		if _, touched := extracted[ds.song.ID]; !touched {
			continue
		}
		cleanup.albums[ds.song.AlbumID] = true
		if err := l.setSongAlbum(ds.song.ID, target.ID); err != nil {
			return err
		}
	}
	st.flagArt(target)
	return nil
}

// orphanSweep deletes albums left with no songs, then artists (never the
// Various sentinel) left with no albums and no role references.
func (l *Library) orphanSweep(r reporter, cleanup *cleanupSet) error {
	for _, id := range sortedIDs(cleanup.albums) {
		count, err := l.albumSongCount(id)
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		a, err := l.albumByID(id)
		if err != nil {
			return err
		}
		if a == nil {
			continue
		}
		cleanup.artists[a.ArtistID] = true
		if err := l.deleteAlbum(id); err != nil {
			return err
		}
		r.infof("Removed empty album %q", a.Name)
	}

	for _, id := range sortedIDs(cleanup.artists) {
		a, err := l.artistByID(id)
		if err != nil {
			return err
		}
		if a == nil || a.Various {
			continue
		}
		refs, err := l.artistSongRefCount(id)
		if err != nil {
			return err
		}
		albums, err := l.artistAlbumCount(id)
		if err != nil {
			return err
		}
		if refs > 0 || albums > 0 {
			continue
		}
		if err := l.deleteArtist(id); err != nil {
			return err
		}
		r.infof("Removed orphan artist %q", a.FullName())
	}
	return nil
}

// correctArtistNames applies same-identity display-name corrections: when
// every raw tag currently referencing a flagged artist agrees on one
// string, the display name follows it; disagreement keeps the first-seen
// name.
func (l *Library) correctArtistNames(r reporter, staleNames map[int64]bool) error {
	for _, id := range sortedIDs(staleNames) {
		a, err := l.artistByID(id)
		if err != nil {
			return err
		}
		if a == nil || a.Various {
			continue
		}
		names, err := l.artistRawNames(id)
		if err != nil {
			return err
		}
		if len(names) != 1 || strings.TrimSpace(names[0]) == "" {
			continue
		}
		prefix, base := l.splitPrefix(names[0])
		if base != a.Name {
			if err := l.renameArtist(id, base); err != nil {
				return err
			}
			r.infof("Renamed artist %q to %q", a.Name, base)
		}
		// Prefixes are learned, never unlearned: a tag written without
		// the article does not erase one seen earlier.
		if prefix != "" && prefix != a.Prefix {
			if err := l.setArtistPrefix(id, prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
