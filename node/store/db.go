// Package store caches fetched headers and folded chain state
// snapshots in bbolt so repeated batch generation does not re-query
// the RPC endpoint for blocks it has already seen.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketHeaders    = []byte("headers_by_height")
	bucketChainState = []byte("chain_state_by_height")
)

type DB struct {
	dir      string
	db       *bolt.DB
	manifest *Manifest
}

func Open(dir string) (*DB, error) {
	if dir == "" {
		return nil, fmt.Errorf("store dir required")
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "cache.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{dir: dir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketHeaders, bucketChainState} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil // fresh cache; manifest written on first update.
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Dir() string { return d.dir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeManifestAtomic(d.dir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

func (d *DB) PutHeader(height uint64, headerJSON []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeaders).Put(heightKey(height), headerJSON)
	})
}

func (d *DB) GetHeader(height uint64) ([]byte, bool, error) {
	return d.get(bucketHeaders, height)
}

func (d *DB) PutChainState(height uint64, stateJSON []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChainState).Put(heightKey(height), stateJSON)
	})
}

func (d *DB) GetChainState(height uint64) ([]byte, bool, error) {
	return d.get(bucketChainState, height)
}

// TipHeight returns the highest cached chain state height.
func (d *DB) TipHeight() (uint64, bool, error) {
	var height uint64
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(bucketChainState).Cursor().Last()
		if k == nil {
			return nil
		}
		if len(k) != 8 {
			return fmt.Errorf("chain_state key: bad length %d", len(k))
		}
		height = binary.BigEndian.Uint64(k)
		ok = true
		return nil
	})
	return height, ok, err
}

func (d *DB) get(bucket []byte, height uint64) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(heightKey(height))
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// heightKey encodes heights big-endian so cursor order is height order.
func heightKey(height uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], height)
	return k[:]
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
