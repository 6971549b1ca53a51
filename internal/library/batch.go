package library

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

type albumKey struct {
	artistID int64
	norm     string
}

// batchState carries the per-batch entity caches between grouping,
// resolution and the song writes. Everything is keyed by normalized
// identity; one map per entity kind.
type batchState struct {
	l *Library
	r reporter

	various *Artist
	artists map[string]*Artist  // by normalized base name
	albums  map[albumKey]*Album // real albums
	misc    map[int64]*Album    // per-artist non-album buckets

	needArt map[int64]*Album

	artistsCreated int
	albumsCreated  int
	songsAdded     int
}

func newBatchState(l *Library, r reporter) *batchState {
	return &batchState{
		l:       l,
		r:       r,
		artists: make(map[string]*Artist),
		albums:  make(map[albumKey]*Album),
		misc:    make(map[int64]*Album),
		needArt: make(map[int64]*Album),
	}
}

// load pins the Various sentinel, which must exist before a batch runs.
func (st *batchState) load() error {
	va, err := st.l.variousArtist()
	if err != nil {
		return err
	}
	if va == nil {
		return fmt.Errorf("artist %q does not exist", variousArtistName)
	}
	st.various = va
	return nil
}

// resolveArtist looks up or creates the artist for a raw tagged name.
// The comparison key is taken over the name with its leading article
// split off, so "The Beatles" and "Beatles" resolve to one artist; a
// later-seen prefix is backfilled onto a prefixless row.
func (st *batchState) resolveArtist(name string) (*Artist, error) {
	prefix, base := st.l.splitPrefix(name)
	norm := NormalizeName(base)

	a, ok := st.artists[norm]
	if !ok {
		var err error
		a, err = st.l.artistByNorm(norm)
		if err != nil {
			return nil, err
		}
		if a == nil {
			a, err = st.l.insertArtist(base, prefix, false)
			if err != nil {
				return nil, err
			}
			st.artistsCreated++
			st.r.debugf("Created artist %q", a.FullName())
		}
		st.artists[norm] = a
	}

	if prefix != "" && a.Prefix == "" && !a.Various {
		if err := st.l.setArtistPrefix(a.ID, prefix); err != nil {
			return nil, err
		}
		a.Prefix = prefix
		st.r.debugf("Learned prefix %q for artist %q", prefix, a.Name)
	}
	return a, nil
}

// resolveRoleID resolves an optional role name (group, conductor,
// composer) to an artist id, or nil when the tag is absent.
func (st *batchState) resolveRoleID(name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	a, err := st.resolveArtist(name)
	if err != nil {
		return nil, err
	}
	id := a.ID
	return &id, nil
}

// resolveAlbum looks up or creates the album owned by owner. When a song
// already cataloged in the directory sits on an album with the same
// normalized name, that row is reused and, if the ownership computed for
// this batch differs, reassigned in place. Conversion to Various is the
// common case for that reassignment.
func (st *batchState) resolveAlbum(r reporter, owner *Artist, albNorm, rawName string, year int, current *dirSong) (*Album, error) {
	if current != nil {
		a, err := st.albumRow(current.albumID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			if a.ArtistID != owner.ID {
				if err := st.l.setAlbumArtist(a.ID, owner.ID); err != nil {
					return nil, err
				}
				a.ArtistID = owner.ID
				r.infof("Reassigned album %q to %s", a.Name, owner.FullName())
			}
			st.flagArt(a)
			return a, nil
		}
	}

	key := albumKey{owner.ID, albNorm}
	if a, ok := st.albums[key]; ok {
		return a, nil
	}
	a, err := st.l.albumByKey(owner.ID, albNorm, false)
	if err != nil {
		return nil, err
	}
	if a == nil {
		a, err = st.l.insertAlbum(owner.ID, rawName, year, false, time.Now().Unix())
		if err != nil {
			return nil, err
		}
		st.albumsCreated++
		st.r.debugf("Created album %q", a.Name)
	}
	st.albums[key] = a
	st.flagArt(a)
	return a, nil
}

// albumRow fetches an album by id through the batch caches.
func (st *batchState) albumRow(id int64) (*Album, error) {
	for _, a := range st.albums {
		if a.ID == id {
			return a, nil
		}
	}
	a, err := st.l.albumByID(id)
	if err != nil || a == nil {
		return nil, err
	}
	if !a.Miscellaneous {
		st.albums[albumKey{a.ArtistID, a.NormName}] = a
	}
	return a, nil
}

// resolveMiscAlbum returns the artist's synthetic non-album-tracks
// bucket, creating it on first use. Miscellaneous albums never carry art.
func (st *batchState) resolveMiscAlbum(artist *Artist) (*Album, error) {
	if a, ok := st.misc[artist.ID]; ok {
		return a, nil
	}
	a, err := st.l.miscAlbumFor(artist.ID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		a, err = st.l.insertAlbum(artist.ID, miscAlbumName(artist.FullName()), 0, true, time.Now().Unix())
		if err != nil {
			return nil, err
		}
		st.albumsCreated++
		st.r.debugf("Created album %q", a.Name)
	}
	st.misc[artist.ID] = a
	return a, nil
}

// flagArt queues an artless album for the post-batch art sweep.
func (st *batchState) flagArt(a *Album) {
	if a.Miscellaneous || a.HasArt() {
		return
	}
	st.needArt[a.ID] = a
}

func (st *batchState) needArtList() []*Album {
	out := make([]*Album, 0, len(st.needArt))
	for _, id := range sortedIDs(st.needArt) {
		out = append(out, st.needArt[id])
	}
	return out
}

// report emits the end-of-batch summary.
func (st *batchState) report() {
	if st.artistsCreated > 0 {
		st.r.successf("Added %s artists", humanize.Comma(int64(st.artistsCreated)))
	}
	if st.albumsCreated > 0 {
		st.r.successf("Added %s albums", humanize.Comma(int64(st.albumsCreated)))
	}
	st.r.successf("Added %s songs", humanize.Comma(int64(st.songsAdded)))
}
