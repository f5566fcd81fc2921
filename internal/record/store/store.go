// Package store is the file-backed record repository. Each record is one
// durable JSON file under records/, attachments live content-addressed under
// attachments/, and every write is staged and atomically promoted. Opening a
// store runs a recovery scan that discards staging leftovers and sweeps
// orphaned blobs, so a crash mid-mutation always resolves to the pre- or
// post-operation state.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zupzup/helferlein/internal/attachment"
	"github.com/zupzup/helferlein/internal/fsutil"
	"github.com/zupzup/helferlein/internal/record"
)

const (
	recordsDir     = "records"
	attachmentsDir = "attachments"
	recordExt      = ".json"
)

// Store implements record.Repository on a local data directory.
type Store struct {
	root  string
	blobs *attachment.Store
	now   func() time.Time

	// mu serializes mutations end to end: attachment writes, the record
	// write, and attachment releases of one logical operation must not
	// interleave with another mutation's.
	mu sync.Mutex

	imu   sync.RWMutex
	index map[uuid.UUID]*indexEntry
}

type indexEntry struct {
	summary record.Summary
	refs    []attachment.Ref
}

// newIndexEntry copies the attachment refs: the index must never alias a
// record object the caller still holds and may mutate.
func newIndexEntry(rec *record.Record) *indexEntry {
	return &indexEntry{
		summary: summarize(rec),
		refs:    append([]attachment.Ref(nil), rec.Attachments...),
	}
}

var _ record.Repository = (*Store)(nil)

// Open opens or creates the data directory and runs the recovery scan:
// staging files are discarded, every record is decoded and verified, blob
// reference counts are rebuilt from the records, and unreferenced blobs are
// removed. A corrupt record fails Open loudly; this data is never
// auto-repaired.
func Open(root string) (*Store, error) {
	recDir := filepath.Join(root, recordsDir)
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating records directory: %w", err)
	}

	staged, err := fsutil.RemoveStaged(recDir)
	if err != nil {
		return nil, fmt.Errorf("discarding staged records: %w", err)
	}

	for _, path := range staged {
		slog.Info("discarded staged record file", "path", path)
	}

	blobs, err := attachment.Open(filepath.Join(root, attachmentsDir))
	if err != nil {
		return nil, fmt.Errorf("opening attachment store: %w", err)
	}

	s := &Store{
		root:  root,
		blobs: blobs,
		now:   time.Now,
		index: make(map[uuid.UUID]*indexEntry),
	}

	if err := s.scan(recDir); err != nil {
		return nil, err
	}

	orphans, err := blobs.Sweep()
	if err != nil {
		return nil, fmt.Errorf("sweeping orphaned attachments: %w", err)
	}

	for _, id := range orphans {
		slog.Info("removed orphaned attachment", "id", id)
	}

	return s, nil
}

func (s *Store) scan(recDir string) error {
	entries, err := os.ReadDir(recDir)
	if err != nil {
		return fmt.Errorf("scanning records directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}

		path := filepath.Join(recDir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading record file %s: %w", path, err)
		}

		rec, err := record.Decode(data)
		if err != nil {
			return fmt.Errorf("record file %s: %w", path, err)
		}

		if entry.Name() != rec.ID.String()+recordExt {
			return fmt.Errorf("record file %s: %w: file name does not match record id %s", path, record.ErrCorrupt, rec.ID)
		}

		for _, ref := range rec.Attachments {
			if err := s.blobs.Retain(ref.ID); err != nil {
				return fmt.Errorf("record %s references attachment %s: %w", rec.ID, ref.ID, err)
			}
		}

		s.index[rec.ID] = newIndexEntry(rec)
	}

	return nil
}

// Attachments exposes the blob store for read-only collaborators like the
// export bundler.
func (s *Store) Attachments() *attachment.Store {
	return s.blobs
}

func (s *Store) Create(ctx context.Context, rec *record.Record, files []record.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.imu.RLock()
	_, exists := s.index[rec.ID]
	s.imu.RUnlock()

	if exists {
		return fmt.Errorf("record %s already exists", rec.ID)
	}

	now := s.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if rec.Revision == 0 {
		rec.Revision = 1
	}

	refs, err := s.putFiles(files)
	if err != nil {
		return fmt.Errorf("creating record: %w", err)
	}

	rec.Attachments = refs

	// Attachments are durable before the record file that references them
	// becomes visible; a crash here leaves orphans for the recovery sweep,
	// never a dangling reference.
	if err := s.writeRecord(rec); err != nil {
		s.releaseRefs(refs)
		rec.Attachments = nil

		return fmt.Errorf("creating record: %w", err)
	}

	s.imu.Lock()
	s.index[rec.ID] = newIndexEntry(rec)
	s.imu.Unlock()

	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.imu.RLock()
	_, exists := s.index[id]
	s.imu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("record %s: %w", id, record.ErrNotFound)
	}

	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("record %s: %w", id, record.ErrNotFound)
		}

		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}

	rec, err := record.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}

	return rec, nil
}

func (s *Store) Update(ctx context.Context, rec *record.Record, adds []record.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.imu.RLock()
	current, exists := s.index[rec.ID]
	s.imu.RUnlock()

	if !exists {
		return fmt.Errorf("record %s: %w", rec.ID, record.ErrNotFound)
	}

	if rec.Revision != current.summary.Revision {
		return fmt.Errorf("record %s: read revision %d, stored revision %d: %w",
			rec.ID, rec.Revision, current.summary.Revision, record.ErrStaleRevision)
	}

	// Kept references must be a subset of what the stored record carries;
	// an update can drop and reorder references but never invent them.
	oldCounts := countRefs(current.refs)
	keptCounts := countRefs(rec.Attachments)

	for id, kept := range keptCounts {
		if kept > oldCounts[id] {
			return fmt.Errorf("record %s: attachment %s is not referenced by the stored record", rec.ID, id)
		}
	}

	newRefs, err := s.putFiles(adds)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	prevRevision := rec.Revision
	prevUpdatedAt := rec.UpdatedAt
	prevAttachments := rec.Attachments

	rec.Attachments = append(append([]attachment.Ref{}, rec.Attachments...), newRefs...)
	rec.Revision++
	rec.UpdatedAt = s.now().UTC()

	if err := s.writeRecord(rec); err != nil {
		s.releaseRefs(newRefs)

		rec.Revision = prevRevision
		rec.UpdatedAt = prevUpdatedAt
		rec.Attachments = prevAttachments

		return fmt.Errorf("updating record: %w", err)
	}

	// The new record version is durable; only now may dropped attachments
	// lose their references.
	for id, old := range oldCounts {
		for n := keptCounts[id]; n < old; n++ {
			if err := s.blobs.Release(id); err != nil {
				slog.Error("failed to release dropped attachment", "record", rec.ID, "attachment", id, "error", err)
			}
		}
	}

	s.imu.Lock()
	s.index[rec.ID] = newIndexEntry(rec)
	s.imu.Unlock()

	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.imu.RLock()
	current, exists := s.index[id]
	s.imu.RUnlock()

	if !exists {
		return fmt.Errorf("record %s: %w", id, record.ErrNotFound)
	}

	if err := os.Remove(s.recordPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}

	// The record file is gone; garbage-collect attachments it exclusively
	// referenced.
	s.releaseRefs(current.refs)

	s.imu.Lock()
	delete(s.index, id)
	s.imu.Unlock()

	return nil
}

func (s *Store) List(ctx context.Context, filter record.Filter) ([]record.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.imu.RLock()

	summaries := make([]record.Summary, 0, len(s.index))

	for _, entry := range s.index {
		if filter.Matches(entry.summary) {
			summaries = append(summaries, entry.summary)
		}
	}

	s.imu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Date.Equal(summaries[j].Date.Time) {
			return summaries[i].Date.Before(summaries[j].Date.Time)
		}

		if summaries[i].Title != summaries[j].Title {
			return summaries[i].Title < summaries[j].Title
		}

		return summaries[i].ID.String() < summaries[j].ID.String()
	})

	return summaries, nil
}

// Sweep removes blobs no record references and returns their ids. The open
// scan does this automatically; this entry point serves an explicit gc.
func (s *Store) Sweep(ctx context.Context) ([]attachment.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.blobs.Sweep()
}

func (s *Store) putFiles(files []record.File) ([]attachment.Ref, error) {
	refs := make([]attachment.Ref, 0, len(files))

	for _, f := range files {
		ref, err := s.blobs.Put(f.Name, f.Data)
		if err != nil {
			s.releaseRefs(refs)
			return nil, fmt.Errorf("storing attachment %q: %w", f.Name, err)
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

func (s *Store) releaseRefs(refs []attachment.Ref) {
	for _, ref := range refs {
		if err := s.blobs.Release(ref.ID); err != nil {
			slog.Error("failed to release attachment", "attachment", ref.ID, "error", err)
		}
	}
}

func (s *Store) writeRecord(rec *record.Record) error {
	data, err := record.Encode(rec)
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(s.recordPath(rec.ID), data); err != nil {
		return fmt.Errorf("writing record file: %w", err)
	}

	return nil
}

func (s *Store) recordPath(id uuid.UUID) string {
	return filepath.Join(s.root, recordsDir, id.String()+recordExt)
}

func countRefs(refs []attachment.Ref) map[attachment.ID]int {
	counts := make(map[attachment.ID]int, len(refs))
	for _, ref := range refs {
		counts[ref.ID]++
	}

	return counts
}

func summarize(rec *record.Record) record.Summary {
	return record.Summary{
		ID:          rec.ID,
		Kind:        rec.Kind,
		Revision:    rec.Revision,
		Date:        rec.Date(),
		Title:       rec.Title(),
		Attachments: len(rec.Attachments),
		UpdatedAt:   rec.UpdatedAt,
	}
}
