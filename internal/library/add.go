package library

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/crate/internal/tags"
)

// Checksum progress notices are batched by count and throttled by wall
// time; the cadence has no correctness weight.
const (
	progressBatch    = 100
	progressInterval = 10 * time.Second
)

// pendingFile is one work-list entry, with an optional precomputed
// content hash carried over from move detection.
type pendingFile struct {
	path string
	sum  string
}

// Add catalogs every audio file under the library root that is not yet
// known, streaming progress to events. The channel is closed when the
// scan finishes; sends are synchronous, so the caller must drain it. A
// non-empty subtree restricts discovery to that directory.
func (l *Library) Add(ctx context.Context, events chan<- Event, subtree string) error {
	defer close(events)
	r := reporter{ctx: ctx, ch: events}

	if err := l.ensureSentinel(r); err != nil {
		return err
	}

	work, err := l.discoverNew(subtree)
	if err != nil {
		return err
	}
	if len(work) == 0 {
		r.successf("No new files found")
		return nil
	}

	st := newBatchState(l, r)
	if err := st.load(); err != nil {
		return err
	}
	if err := l.addBatch(r, st, work); err != nil {
		return err
	}
	if err := l.artSweep(r, st.needArtList()); err != nil {
		return err
	}
	st.report()
	return nil
}

func (l *Library) ensureSentinel(r reporter) error {
	created, err := l.EnsureVariousArtist()
	if err != nil {
		return err
	}
	if created {
		r.infof("Created special artist %q", variousArtistName)
	}
	return nil
}

// discoverNew walks the tree and returns the sorted paths not present in
// the catalog.
func (l *Library) discoverNew(subtree string) ([]pendingFile, error) {
	paths, err := ListAudioFiles(l.cfg.LibraryPath, subtree)
	if err != nil {
		return nil, err
	}
	known, err := l.knownPaths()
	if err != nil {
		return nil, err
	}

	var work []pendingFile
	for _, p := range paths {
		if _, ok := known[p]; !ok {
			work = append(work, pendingFile{path: p})
		}
	}
	return work, nil
}

func (l *Library) knownPaths() (map[string]struct{}, error) {
	rows, err := l.db.Query(`SELECT path FROM songs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		known[p] = struct{}{}
	}
	return known, rows.Err()
}

// addBatch runs the work list through checksum/extract, groups it by
// directory, resolves artists and albums, and writes the song rows.
func (l *Library) addBatch(r reporter, st *batchState, work []pendingFile) error {
	sort.Slice(work, func(i, j int) bool { return work[i].path < work[j].path })
	r.infof("Processing %s new files", humanize.Comma(int64(len(work))))

	files, err := l.extractBatch(r, work)
	if err != nil {
		return err
	}

	byDir := make(map[string][]*tags.File)
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		byDir[dir] = append(byDir[dir], f)
	}

	existing, err := l.songsByDir()
	if err != nil {
		return err
	}

	for _, dir := range sortedKeys(byDir) {
		if err := l.addDirectory(r, st, dir, byDir[dir], existing[dir]); err != nil {
			return err
		}
	}
	return nil
}

// extractBatch reads tags (hashing where needed) for the whole work list.
// Per-file failures are reported and skipped; they never abort the batch.
func (l *Library) extractBatch(r reporter, work []pendingFile) ([]*tags.File, error) {
	files := make([]*tags.File, 0, len(work))
	last := time.Now()
	for i, w := range work {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		f, err := tags.Extract(l.fullPath(w.path), w.path, w.sum)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				r.debugf("Skipping unreadable file %s", w.path)
			} else {
				r.errorf("Could not read %s: %v", w.path, err)
			}
			continue
		}
		files = append(files, f)

		if (i+1)%progressBatch == 0 && time.Since(last) >= progressInterval {
			r.infof("%s/%s files processed",
				humanize.Comma(int64(i+1)), humanize.Comma(int64(len(work))))
			last = time.Now()
		}
	}
	return files, nil
}

// addDirectory resolves and writes one directory's worth of new files.
// Album-level artist detection counts songs already cataloged in the
// directory, so a single new track can convert an existing album to
// Various.
func (l *Library) addDirectory(r reporter, st *batchState, dir string, files []*tags.File, existing []*dirSong) error {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	grouping := newDirGrouping(l)
	for _, ds := range existing {
		grouping.observeSong(ds)
	}
	for _, f := range files {
		grouping.observeFile(f)
	}

	for _, f := range files {
		artist, err := st.resolveArtist(f.Artist)
		if err != nil {
			return err
		}

		var album *Album
		if f.Album == "" {
			album, err = st.resolveMiscAlbum(artist)
		} else {
			owner := artist
			albNorm := NormalizeName(f.Album)
			if grouping.isVarious(albNorm) {
				owner = st.various
			}
			album, err = st.resolveAlbum(r, owner, albNorm, f.Album, f.Year, grouping.existingAlbum(albNorm))
		}
		if err != nil {
			return err
		}

		s := newSong(f)
		s.AlbumID = album.ID
		s.ArtistID = artist.ID
		if s.GroupID, err = st.resolveRoleID(f.Group); err != nil {
			return err
		}
		if s.ConductorID, err = st.resolveRoleID(f.Conductor); err != nil {
			return err
		}
		if s.ComposerID, err = st.resolveRoleID(f.Composer); err != nil {
			return err
		}

		if err := l.insertSong(s); err != nil {
			return err
		}
		st.songsAdded++
		r.debugf("Added %s", f.Path)
	}
	return nil
}

// dirGrouping decides the album-level artist for each normalized album
// name seen in one directory. A second distinct artist for the same album
// name demotes that album to the Various sentinel.
type dirGrouping struct {
	l        *Library
	artist   map[string]string // album norm -> sole artist norm
	various  map[string]bool
	existing map[string]*dirSong // album norm -> a cataloged song already on that album
}

func newDirGrouping(l *Library) *dirGrouping {
	return &dirGrouping{
		l:        l,
		artist:   make(map[string]string),
		various:  make(map[string]bool),
		existing: make(map[string]*dirSong),
	}
}

func (g *dirGrouping) observe(albNorm, artistNorm string) {
	if g.various[albNorm] {
		return
	}
	prev, ok := g.artist[albNorm]
	if !ok {
		g.artist[albNorm] = artistNorm
		return
	}
	if prev != artistNorm {
		g.various[albNorm] = true
	}
}

func (g *dirGrouping) observeSong(ds *dirSong) {
	if ds.albumMisc {
		return
	}
	if _, ok := g.existing[ds.albumNorm]; !ok {
		g.existing[ds.albumNorm] = ds
	}
	if ds.albumArtistVarious {
		g.various[ds.albumNorm] = true
		return
	}
	g.observe(ds.albumNorm, ds.artistNorm)
}

func (g *dirGrouping) observeFile(f *tags.File) {
	if f.Album == "" {
		return
	}
	_, base := g.l.splitPrefix(f.Artist)
	g.observe(NormalizeName(f.Album), NormalizeName(base))
}

func (g *dirGrouping) isVarious(albNorm string) bool {
	return g.various[albNorm]
}

func (g *dirGrouping) existingAlbum(albNorm string) *dirSong {
	return g.existing[albNorm]
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
