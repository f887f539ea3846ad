package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"supplyrag/config"
	"supplyrag/internal/domain"
)

// CheckpointSchemaVersion is bumped when the stored vector format changes.
const CheckpointSchemaVersion = 2

var (
	bucketVectors = []byte("vectors")
	bucketInfo    = []byte("info")

	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

type storedVector struct {
	Digest string    `json:"d"`
	Vector []float32 `json:"v"`
}

// ContentDigest identifies the text a vector was computed from.
func ContentDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// BoltCheckpoint keeps embedded vectors across builds, keyed by model and
// chunk ID and tagged with the digest of the chunk text. It is wiped when
// the schema or the embedding-relevant configuration changes.
type BoltCheckpoint struct {
	db    *bbolt.DB
	model string
}

// OpenCheckpoint opens or creates the checkpoint database. reset reports
// whether previously stored vectors were discarded.
func OpenCheckpoint(path string, cfg *config.Config) (*BoltCheckpoint, bool, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketInfo} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, false, err
	}

	cp := &BoltCheckpoint{db: db, model: cfg.Embedding.Model}
	reset, err := cp.reconcile(ComputeConfigHash(cfg))
	if err != nil {
		db.Close()
		return nil, false, err
	}
	return cp, reset, nil
}

// ComputeConfigHash hashes the configuration that determines vector
// content. Changes to it invalidate stored vectors.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Provider    string `json:"provider"`
		Model       string `json:"model"`
		Dimension   int    `json:"dimension"`
		WindowChars int    `json:"window_chars"`
		Stride      int    `json:"stride"`
	}{
		Provider:    cfg.Embedding.Provider,
		Model:       cfg.Embedding.Model,
		Dimension:   cfg.Embedding.Dimension,
		WindowChars: cfg.Chunking.WindowChars,
		Stride:      cfg.Chunking.Stride,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// GetSchemaInfo retrieves the stored schema info.
func (c *BoltCheckpoint) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketInfo)
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		if data := b.Get(keyConfigHash); data != nil {
			info.ConfigHash = string(data)
		}
		return nil
	})
	return &info, err
}

func (c *BoltCheckpoint) reconcile(hash string) (bool, error) {
	info, err := c.GetSchemaInfo()
	if err != nil {
		return false, err
	}
	if info.Version == CheckpointSchemaVersion && info.ConfigHash == hash {
		return false, nil
	}

	reset := info.Version != 0 || info.ConfigHash != ""
	err = c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(bucketVectors); err != nil {
			return err
		}

		versionData, err := json.Marshal(CheckpointSchemaVersion)
		if err != nil {
			return err
		}
		b := tx.Bucket(bucketInfo)
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(hash))
	})
	return reset, err
}

func (c *BoltCheckpoint) key(chunkID string) []byte {
	return []byte(c.model + "|" + chunkID)
}

// Lookup returns the stored vectors of chunks whose text digest matches.
func (c *BoltCheckpoint) Lookup(chunks []domain.Chunk) (map[string][]float32, error) {
	found := make(map[string][]float32)
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, chunk := range chunks {
			data := b.Get(c.key(chunk.ID))
			if data == nil {
				continue
			}
			var stored storedVector
			if err := json.Unmarshal(data, &stored); err != nil {
				// Corrupt entries are re-embedded.
				continue
			}
			if stored.Digest != ContentDigest(chunk.Text) {
				continue
			}
			found[chunk.ID] = stored.Vector
		}
		return nil
	})
	return found, err
}

// Save stores vectors[i] for chunks[i] in one transaction. An existing
// entry for the same chunk ID is replaced.
func (c *BoltCheckpoint) Save(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("checkpoint save: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, chunk := range chunks {
			data, err := json.Marshal(storedVector{Digest: ContentDigest(chunk.Text), Vector: vectors[i]})
			if err != nil {
				return err
			}
			if err := b.Put(c.key(chunk.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored vectors.
func (c *BoltCheckpoint) Count() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketVectors).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear drops every stored vector, keeping the schema info.
func (c *BoltCheckpoint) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketVectors)
		return err
	})
}

func (c *BoltCheckpoint) Close() error {
	return c.db.Close()
}
