package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/llehouerou/crate/internal/tags"
)

// ListAudioFiles walks root (following symlinks) and returns the
// library-relative paths of all supported audio files, sorted. A non-empty
// subtree restricts the walk to that directory under root. Unreadable
// subdirectories are skipped; only an unreadable start directory is an
// error.
func ListAudioFiles(root, subtree string) ([]string, error) {
	start := root
	if subtree != "" {
		start = filepath.Join(root, subtree)
	}

	var files []string
	if err := walkAudio(root, start, &files); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func walkAudio(root, dir string, files *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())

		if e.Type()&os.ModeSymlink != 0 {
			// Follow directory symlinks the way the walk itself does.
			info, statErr := os.Stat(p)
			if statErr != nil {
				continue
			}
			if info.IsDir() {
				_ = walkAudio(root, p, files)
				continue
			}
		} else if e.IsDir() {
			_ = walkAudio(root, p, files)
			continue
		}

		if !tags.IsMusicFile(p) {
			continue
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			*files = append(*files, rel)
		}
	}
	return nil
}

// coverExtPreference fixes the tie-break order between candidate images
// sharing a tier.
var coverExtPreference = []string{".jpg", ".jpeg", ".png", ".gif"}

func imageExtRank(name string) int {
	ext := strings.ToLower(filepath.Ext(name))
	for i, e := range coverExtPreference {
		if ext == e {
			return i
		}
	}
	return -1
}

// RankCoverImages orders candidate cover filenames by preference: an
// exact "cover.EXT" beats any other "cover*" image, which beats any other
// image; within a tier, the extension preference list wins, then
// alphabetical order. Non-image files are excluded.
func RankCoverImages(filenames []string) []string {
	type candidate struct {
		name    string
		tier    int
		extRank int
	}

	var candidates []candidate
	for _, name := range filenames {
		extRank := imageExtRank(name)
		if extRank < 0 {
			continue
		}
		lower := strings.ToLower(name)
		base := strings.TrimSuffix(lower, filepath.Ext(lower))
		tier := 2
		switch {
		case base == "cover":
			tier = 0
		case strings.HasPrefix(base, "cover"):
			tier = 1
		}
		candidates = append(candidates, candidate{name, tier, extRank})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.extRank != b.extRank {
			return a.extRank < b.extRank
		}
		return a.name < b.name
	})

	ranked := make([]string, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.name
	}
	return ranked
}

// findDirectoryCover returns the library-relative path of the best cover
// image for the given library-relative directory. When the directory has
// no candidates, the parent directory is tried exactly once, without ever
// escaping the library root.
func (l *Library) findDirectoryCover(dir string) string {
	if c := l.coverInDir(dir); c != "" {
		return c
	}
	if dir == "" || dir == "." {
		return ""
	}
	return l.coverInDir(filepath.Dir(dir))
}

func (l *Library) coverInDir(dir string) string {
	entries, err := os.ReadDir(l.fullPath(dir))
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	ranked := RankCoverImages(names)
	if len(ranked) == 0 {
		return ""
	}
	return filepath.Join(dir, ranked[0])
}
