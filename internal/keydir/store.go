package keydir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"sdaasverify/internal/manifest"
)

var (
	ErrNotCached   = errors.New("no cached directory")
	ErrPinMismatch = errors.New("signing key does not match pinned key")
)

var (
	bucketDirectories = []byte("directories")
	bucketPins        = []byte("pins")
)

// Store is a bolt database holding fetched directories, keyed by authority
// base URL, and key pins, keyed by key id.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// CachedDirectory is a directory plus the time it was stored.
type CachedDirectory struct {
	Directory Directory `json:"directory"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Pin records the key material first seen for a key id.
type Pin struct {
	KeyID       string    `json:"key_id"`
	Fingerprint string    `json:"fingerprint"`
	PinnedAt    time.Time `json:"pinned_at"`
}

// Open opens or creates the store at path. Parent directories are created as
// needed.
func Open(path string, options *bolt.Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	}
	d, err := bolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("key cache %s: %w", path, err)
	}
	s := &Store{db: d, now: time.Now}
	if err := d.Update(s.init); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

// init is idempotent and safe to run on pre-existing databases.
func (s *Store) init(tx *bolt.Tx) error {
	for _, name := range [][]byte{bucketDirectories, bucketPins} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutDirectory replaces the cached directory for baseURL.
func (s *Store) PutDirectory(baseURL string, dir *Directory) error {
	buf, err := json.Marshal(CachedDirectory{Directory: *dir, FetchedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDirectories).Put([]byte(baseURL), buf)
	})
}

// Directory returns the cached directory for baseURL.
//
// If nothing was stored for baseURL, returns ErrNotCached.
func (s *Store) Directory(baseURL string) (*CachedDirectory, error) {
	var cd CachedDirectory
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDirectories).Get([]byte(baseURL))
		if v == nil {
			return ErrNotCached
		}
		// v is only valid inside the transaction; Unmarshal copies.
		return json.Unmarshal(v, &cd)
	})
	if err != nil {
		return nil, err
	}
	return &cd, nil
}

// Fingerprint is the hex SHA-256 of the normalized PEM text.
func Fingerprint(publicKeyPEM string) string {
	return manifest.SHA256Hex([]byte(manifest.NormalizePEM(publicKeyPEM)))
}

// Pin records publicKeyPEM as the key material for keyID on first use. Later
// calls with the same material return the existing pin; different material
// fails with ErrPinMismatch.
func (s *Store) Pin(keyID, publicKeyPEM string) (*Pin, error) {
	fp := Fingerprint(publicKeyPEM)
	var pin Pin
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPins)
		if v := b.Get([]byte(keyID)); v != nil {
			if err := json.Unmarshal(v, &pin); err != nil {
				return err
			}
			if pin.Fingerprint != fp {
				return fmt.Errorf("%w: key_id=%q pinned %s, got %s", ErrPinMismatch, keyID, pin.Fingerprint, fp)
			}
			return nil
		}
		pin = Pin{KeyID: keyID, Fingerprint: fp, PinnedAt: s.now().UTC()}
		buf, err := json.Marshal(pin)
		if err != nil {
			return err
		}
		return b.Put([]byte(keyID), buf)
	})
	if err != nil {
		return nil, err
	}
	return &pin, nil
}

// Pins lists every pin ordered by key id.
func (s *Store) Pins() ([]Pin, error) {
	var pins []Pin
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPins).ForEach(func(k, v []byte) error {
			var p Pin
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("pin %q: %w", k, err)
			}
			pins = append(pins, p)
			return nil
		})
	})
	return pins, err
}
