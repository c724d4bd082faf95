// Package cache provides file-based caching of picture fingerprints.
//
// Entries are keyed by (path, size, mtime), so any change to a file
// invalidates its fingerprint. The cache is an internal performance
// detail of the Fingerprinter stage only; it never backs the review
// store, which stays in-memory for the session.
package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

const bucketName = "fingerprints"

// Cache provides persistent caching of picture fingerprints using BoltDB.
// Implements self-cleaning: each run creates a new database, only entries
// looked up (and therefore still relevant) survive into it.
type Cache struct {
	readDB  *bolt.DB // existing cache (read-only)
	writeDB *bolt.DB // new cache (write) - BoltDB locks this file
	path    string   // final path (for atomic swap)
	enabled bool
}

// Open opens an existing cache for reading and creates a new cache for
// writing. BoltDB's file locking on the .new file prevents concurrent
// instances. Returns a disabled cache if path is empty.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}
	var err error

	if _, statErr := os.Stat(path); statErr == nil {
		c.readDB, err = bolt.Open(path, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err != nil {
			c.readDB = nil
		}
	}

	newPath := path + ".new"
	c.writeDB, err = bolt.Open(newPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces old with new.
// Only replaces if the write database closed successfully, to avoid data loss.
func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else if err := os.Rename(c.path+".new", c.path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const keyVersion byte = 1 // increment when key format changes

// makeKey builds a deterministic byte key for BoltDB lookup.
// key = ver(1) + path + NUL + size(8) + mtime(8)
func makeKey(path string, size int64, modTime time.Time) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(path)
	buf.WriteByte(0) // NUL separator
	_ = binary.Write(buf, binary.BigEndian, size)
	_ = binary.Write(buf, binary.BigEndian, modTime.UnixNano())
	return buf.Bytes()
}

// LookupImage retrieves a cached fingerprint for path, keyed on its current
// size and mtime; any change to either is a cache miss. On hit, copies the
// entry into the new (write) database (self-cleaning).
func (c *Cache) LookupImage(path string) (imgtypes.RasterImage, bool) {
	if !c.enabled || c.readDB == nil {
		return imgtypes.RasterImage{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return imgtypes.RasterImage{}, false
	}

	key := makeKey(path, info.Size(), info.ModTime())
	var hashHex string

	_ = c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if data := b.Get(key); data != nil {
			hashHex = hex.EncodeToString(data)
		}
		return nil
	})
	if hashHex == "" {
		return imgtypes.RasterImage{}, false
	}

	img := imgtypes.RasterImage{Hash: hashHex, Path: path, Size: info.Size(), ModTime: info.ModTime()}
	_ = c.StoreImage(img)
	return img, true
}

// StoreImage saves a fingerprint to the new (write) database.
func (c *Cache) StoreImage(img imgtypes.RasterImage) error {
	if !c.enabled || c.writeDB == nil {
		return nil
	}

	hashBytes, err := hex.DecodeString(img.Hash)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}

	key := makeKey(img.Path, img.Size, img.ModTime)
	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(key, hashBytes)
	}); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
