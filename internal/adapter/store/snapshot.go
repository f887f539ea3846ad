package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"supplyrag/internal/domain"
)

const (
	snapshotsDir = "snapshots"
	currentFile  = "CURRENT"

	IndexFile    = "index.hnsw"
	MetaFile     = "meta.jsonl"
	ManifestFile = "manifest.json"
)

// ErrNoSnapshot is returned when no snapshot has been committed yet.
var ErrNoSnapshot = errors.New("no index snapshot found; run build first")

// Snapshots manages versioned index snapshots under one index directory.
// A snapshot becomes visible only when CURRENT is switched to it.
type Snapshots struct {
	root string
}

func NewSnapshots(indexDir string) *Snapshots {
	return &Snapshots{root: indexDir}
}

// Root returns the index directory.
func (s *Snapshots) Root() string {
	return s.root
}

// Dir returns the directory of snapshot id.
func (s *Snapshots) Dir(id string) string {
	return filepath.Join(s.root, snapshotsDir, id)
}

// Create allocates a new, empty snapshot directory.
func (s *Snapshots) Create() (string, string, error) {
	id := ulid.Make().String()
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return id, dir, nil
}

// Commit points CURRENT at id. The snapshot must already be complete.
func (s *Snapshots) Commit(id string) error {
	dir := s.Dir(id)
	for _, name := range []string{IndexFile, MetaFile, ManifestFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("snapshot %s is incomplete: %w", id, err)
		}
	}
	return writeAtomic(filepath.Join(s.root, currentFile), func(w io.Writer) error {
		_, err := io.WriteString(w, id+"\n")
		return err
	})
}

// Current returns the active snapshot ID and directory.
func (s *Snapshots) Current() (string, string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", "", ErrNoSnapshot
	}
	if err != nil {
		return "", "", err
	}
	id := strings.TrimSpace(string(data))
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", "", fmt.Errorf("CURRENT holds invalid snapshot id %q: %w", id, err)
	}
	return id, s.Dir(id), nil
}

// List returns all snapshot IDs, oldest first.
func (s *Snapshots) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, snapshotsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if _, err := ulid.ParseStrict(e.Name()); e.IsDir() && err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Prune removes every snapshot except the newest keep ones and the current
// one.
func (s *Snapshots) Prune(keep int) ([]string, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	current, _, err := s.Current()
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	var removed []string
	for i, id := range ids {
		if i >= len(ids)-keep || id == current {
			continue
		}
		if err := os.RemoveAll(s.Dir(id)); err != nil {
			return removed, fmt.Errorf("failed to remove snapshot %s: %w", id, err)
		}
		removed = append(removed, id)
	}
	return removed, nil
}

// SnapshotTime returns the creation time encoded in a snapshot ID.
func SnapshotTime(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

func WriteManifest(dir string, m domain.Manifest) error {
	return writeJSON(filepath.Join(dir, ManifestFile), m)
}

func ReadManifest(dir string) (domain.Manifest, error) {
	var m domain.Manifest
	err := readJSON(filepath.Join(dir, ManifestFile), &m)
	return m, err
}

// WriteMeta writes one record per index row, in row order.
func WriteMeta(dir string, records []domain.MetaRecord) error {
	return WriteJSONL(filepath.Join(dir, MetaFile), records)
}

func ReadMeta(dir string) ([]domain.MetaRecord, error) {
	return ReadJSONL[domain.MetaRecord](filepath.Join(dir, MetaFile))
}
