package fs

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"supplyrag/internal/port"
)

// Walker selects source documents under a root with doublestar patterns.
// Patterns use forward slashes and are relative to the root.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns matching regular files sorted by path. Files inside hidden
// directories are skipped.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsys := os.DirFS(root)

	seen := make(map[string]port.FileInfo)
	for _, pattern := range w.includes {
		err := doublestar.GlobWalk(fsys, pattern, func(rel string, d iofs.DirEntry) error {
			if d.IsDir() || !d.Type().IsRegular() || isHidden(rel) || w.excluded(rel) {
				return nil
			}
			if _, dup := seen[rel]; dup {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			seen[rel] = port.FileInfo{
				Path:    filepath.Join(root, filepath.FromSlash(rel)),
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			}
			return nil
		}, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
	}

	files := make([]port.FileInfo, 0, len(seen))
	for _, f := range seen {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (w *Walker) excluded(rel string) bool {
	for _, pattern := range w.excludes {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func isHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
