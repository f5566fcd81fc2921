// Package attachment stores immutable binary blobs (receipts, contracts)
// content-addressed by SHA-256. Identical bytes are stored once; reference
// counts decide when a blob is physically removed. Counts are not persisted:
// the record store rebuilds them from the records during its open scan, so the
// records stay the single source of truth.
package attachment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zupzup/helferlein/internal/fsutil"
)

// ErrNotFound is returned when no blob exists for the requested id.
var ErrNotFound = errors.New("attachment not found")

// ID is the lowercase hex SHA-256 digest of a blob's content.
type ID string

const idLength = sha256.Size * 2

// Valid reports whether the id is a well-formed content digest.
func (id ID) Valid() bool {
	if len(id) != idLength {
		return false
	}

	_, err := hex.DecodeString(string(id))

	return err == nil
}

// Ref links a record to a stored blob. The original filename travels with the
// reference, not the blob: the same bytes may be attached to two records under
// different names.
type Ref struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Store is a content-addressed blob directory. Blobs live under a two-level
// fan-out (<dir>/<aa>/<digest>) and are written via staging-then-rename.
type Store struct {
	dir string

	mu   sync.Mutex
	refs map[ID]int
}

// Open opens or creates the blob store rooted at dir and discards staging
// leftovers from interrupted writes. All reference counts start at zero; the
// caller retains every reference it knows about, then sweeps.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachment directory: %w", err)
	}

	if _, err := fsutil.RemoveStaged(dir); err != nil {
		return nil, fmt.Errorf("discarding staged attachments: %w", err)
	}

	return &Store{dir: dir, refs: make(map[ID]int)}, nil
}

// Put stores data under its content digest and retains one reference to it.
// Storing bytes that already exist only bumps the reference count.
func (s *Store) Put(name string, data []byte) (Ref, error) {
	sum := sha256.Sum256(data)
	id := ID(hex.EncodeToString(sum[:]))
	path := s.path(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Ref{}, fmt.Errorf("checking blob %s: %w", id, err)
		}

		if err := writeBlob(path, data); err != nil {
			return Ref{}, fmt.Errorf("storing blob %s: %w", id, err)
		}
	}

	s.refs[id]++

	return Ref{ID: id, Name: name}, nil
}

// Get returns the blob's content.
func (s *Store) Get(id ID) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("reading blob %s: %w", id, err)
	}

	return data, nil
}

// Reader opens the blob for streaming reads.
func (s *Store) Reader(id ID) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("opening blob %s: %w", id, err)
	}

	return f, nil
}

// Retain increments the reference count for an existing blob. It fails if the
// blob is physically absent, so a record can never retain a dangling id.
func (s *Store) Retain(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", id, ErrNotFound)
		}

		return fmt.Errorf("checking blob %s: %w", id, err)
	}

	s.refs[id]++

	return nil
}

// Release decrements the reference count and removes the blob when the count
// reaches zero.
func (s *Store) Release(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs[id] > 1 {
		s.refs[id]--
		return nil
	}

	delete(s.refs, id)

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing blob %s: %w", id, err)
	}

	return nil
}

// RefCount returns the current reference count for a blob.
func (s *Store) RefCount(id ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refs[id]
}

// Sweep removes every blob with a zero reference count and returns their ids.
// Files that do not look like content digests are left alone.
func (s *Store) Sweep() ([]ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []ID

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		id := ID(d.Name())
		if !id.Valid() || s.refs[id] > 0 {
			return nil
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing orphaned blob %s: %w", id, err)
		}

		removed = append(removed, id)

		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweeping attachments: %w", err)
	}

	return removed, nil
}

func (s *Store) path(id ID) string {
	fanout := "00"
	if len(id) >= 2 {
		fanout = string(id[:2])
	}

	return filepath.Join(s.dir, fanout, string(id))
}

func writeBlob(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating fanout directory: %w", err)
	}

	return fsutil.WriteFileAtomic(path, data)
}
