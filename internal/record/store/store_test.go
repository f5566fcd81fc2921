package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zupzup/helferlein/internal/attachment"
	"github.com/zupzup/helferlein/internal/record"
	"github.com/zupzup/helferlein/internal/record/store"
)

func newEntry(name string, month time.Month, day int) *record.Record {
	return &record.Record{
		ID:   uuid.New(),
		Kind: record.KindAccountingEntry,
		Entry: &record.EntryPayload{
			Direction: record.DirectionOut,
			Date:      record.NewDate(2024, month, day),
			Name:      name,
			Company:   "ACME GmbH",
			Category:  "IT",
			Net:       decimal.RequireFromString("120.50"),
			Vat:       record.VatTwenty,
		},
	}
}

func newInvoice(name string, month time.Month, day int) *record.Record {
	return &record.Record{
		ID:   uuid.New(),
		Kind: record.KindInvoice,
		Invoice: &record.InvoicePayload{
			Date: record.NewDate(2024, month, day),
			Name: name,
			Items: []record.LineItem{
				{Position: 1, Description: "Consulting", Unit: record.UnitHour, Quantity: decimal.NewFromInt(8), PricePerUnit: decimal.RequireFromString("95.00"), Vat: record.VatTwenty},
			},
		},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	files := []record.File{
		{Name: "receipt.png", Data: []byte("png bytes")},
		{Name: "contract.pdf", Data: []byte("pdf bytes")},
	}

	require.NoError(t, s.Create(context.Background(), rec, files))

	assert.Equal(t, uint64(1), rec.Revision)
	assert.False(t, rec.CreatedAt.IsZero())
	require.Len(t, rec.Attachments, 2)
	assert.Equal(t, "receipt.png", rec.Attachments[0].Name)
	assert.Equal(t, "contract.pdf", rec.Attachments[1].Name)

	assert.FileExists(t, filepath.Join(root, "records", rec.ID.String()+".json"))

	got, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Hosting", got.Entry.Name)
	assert.Equal(t, rec.Attachments, got.Attachments)

	data, err := s.Attachments().Get(rec.Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)
}

func TestStore_Create_DeduplicatesIdenticalBytes(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	shared := []byte("the same receipt")

	first := newEntry("First", time.March, 1)
	require.NoError(t, s.Create(context.Background(), first, []record.File{{Name: "a.png", Data: shared}}))

	second := newEntry("Second", time.March, 2)
	require.NoError(t, s.Create(context.Background(), second, []record.File{{Name: "b.png", Data: shared}}))

	assert.Equal(t, first.Attachments[0].ID, second.Attachments[0].ID)
	assert.Equal(t, 2, s.Attachments().RefCount(first.Attachments[0].ID))
}

func TestStore_Get_NotFound(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	late := newEntry("Late entry", time.March, 20)
	early := newEntry("Early entry", time.January, 5)
	invoice := newInvoice("February consulting", time.February, 28)

	for _, rec := range []*record.Record{late, early, invoice} {
		require.NoError(t, s.Create(context.Background(), rec, nil))
	}

	all, err := s.List(context.Background(), record.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, early.ID, all[0].ID)
	assert.Equal(t, invoice.ID, all[1].ID)
	assert.Equal(t, late.ID, all[2].ID)

	kind := record.KindInvoice
	invoices, err := s.List(context.Background(), record.Filter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, invoice.ID, invoices[0].ID)

	from, to := record.PeriodRange(2024, 1, 0)
	firstQuarter, err := s.List(context.Background(), record.Filter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, firstQuarter, 3)

	from, to = record.PeriodRange(2024, 0, time.February)
	february, err := s.List(context.Background(), record.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, february, 1)
	assert.Equal(t, invoice.ID, february[0].ID)
}

func TestStore_Update(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, nil))

	edited, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	edited.Entry.Name = "Hosting renewal"

	require.NoError(t, s.Update(context.Background(), edited, []record.File{{Name: "renewal.pdf", Data: []byte("pdf")}}))
	assert.Equal(t, uint64(2), edited.Revision)
	require.Len(t, edited.Attachments, 1)

	got, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hosting renewal", got.Entry.Name)
	assert.Equal(t, uint64(2), got.Revision)

	// Revisions grow strictly across successive updates.
	got.Entry.Category = "Infrastructure"
	require.NoError(t, s.Update(context.Background(), got, nil))
	assert.Equal(t, uint64(3), got.Revision)
}

func TestStore_Update_StaleRevision(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, nil))

	first, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)

	second, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)

	first.Entry.Name = "First writer"
	require.NoError(t, s.Update(context.Background(), first, nil))

	second.Entry.Name = "Second writer"
	err = s.Update(context.Background(), second, nil)
	assert.ErrorIs(t, err, record.ErrStaleRevision)

	got, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "First writer", got.Entry.Name)
}

func TestStore_Update_RejectsInventedAttachment(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, nil))

	edited, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	edited.Attachments = []attachment.Ref{
		{ID: attachment.ID("ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34"), Name: "invented.png"},
	}

	assert.Error(t, s.Update(context.Background(), edited, nil))
}

func TestStore_Update_RejectsRefMutatedAfterCreate(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, []record.File{{Name: "receipt.png", Data: []byte("png")}}))

	// A caller holding the record in memory rewrites a reference in place to a
	// well-formed digest no blob carries. The store must not trust it.
	rec.Attachments[0].ID = attachment.ID("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	assert.Error(t, s.Update(context.Background(), rec, nil))

	// Nothing dangling was persisted; the data directory still opens.
	reopened, err := store.Open(root)
	require.NoError(t, err)

	got, err := reopened.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)

	_, err = reopened.Attachments().Get(got.Attachments[0].ID)
	assert.NoError(t, err)
}

func TestStore_Update_DroppedAttachmentSurvivesWhileShared(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	shared := []byte("shared receipt")

	first := newEntry("First", time.March, 1)
	require.NoError(t, s.Create(context.Background(), first, []record.File{{Name: "a.png", Data: shared}}))

	second := newEntry("Second", time.March, 2)
	require.NoError(t, s.Create(context.Background(), second, []record.File{{Name: "b.png", Data: shared}}))

	blobID := first.Attachments[0].ID

	edited, err := s.Get(context.Background(), first.ID)
	require.NoError(t, err)
	edited.Attachments = nil
	require.NoError(t, s.Update(context.Background(), edited, nil))

	// Still referenced by the second record.
	_, err = s.Attachments().Get(blobID)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), second.ID))

	_, err = s.Attachments().Get(blobID)
	assert.ErrorIs(t, err, attachment.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, []record.File{{Name: "receipt.png", Data: []byte("png")}}))

	blobID := rec.Attachments[0].ID

	require.NoError(t, s.Delete(context.Background(), rec.ID))

	_, err = s.Get(context.Background(), rec.ID)
	assert.ErrorIs(t, err, record.ErrNotFound)

	assert.NoFileExists(t, filepath.Join(root, "records", rec.ID.String()+".json"))

	_, err = s.Attachments().Get(blobID)
	assert.ErrorIs(t, err, attachment.ErrNotFound)

	assert.ErrorIs(t, s.Delete(context.Background(), rec.ID), record.ErrNotFound)
}

func TestOpen_RebuildsStateFromDisk(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, []record.File{{Name: "receipt.png", Data: []byte("png")}}))

	reopened, err := store.Open(root)
	require.NoError(t, err)

	all, err := reopened.List(context.Background(), record.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec.ID, all[0].ID)

	got, err := reopened.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hosting", got.Entry.Name)

	// Rebuilt counts drive garbage collection after the reopen.
	require.NoError(t, reopened.Delete(context.Background(), rec.ID))

	_, err = reopened.Attachments().Get(rec.Attachments[0].ID)
	assert.ErrorIs(t, err, attachment.ErrNotFound)
}

func TestOpen_DiscardsStagedFiles(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, nil))

	// A write interrupted before its rename leaves a staging file behind.
	staged := filepath.Join(root, "records", rec.ID.String()+".json.tmp.1234")
	require.NoError(t, os.WriteFile(staged, []byte("half a record"), 0o644))

	reopened, err := store.Open(root)
	require.NoError(t, err)

	assert.NoFileExists(t, staged)

	all, err := reopened.List(context.Background(), record.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpen_SweepsOrphanedBlobs(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, []record.File{{Name: "receipt.png", Data: []byte("kept")}}))

	// A crash between the attachment write and the record write leaves a blob
	// no record references.
	blobs, err := attachment.Open(filepath.Join(root, "attachments"))
	require.NoError(t, err)

	orphan, err := blobs.Put("orphan.png", []byte("orphaned bytes"))
	require.NoError(t, err)

	reopened, err := store.Open(root)
	require.NoError(t, err)

	_, err = reopened.Attachments().Get(orphan.ID)
	assert.ErrorIs(t, err, attachment.ErrNotFound)

	kept, err := reopened.Attachments().Get(rec.Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), kept)
}

func TestOpen_FailsOnCorruptRecord(t *testing.T) {
	root := t.TempDir()

	_, err := store.Open(root)
	require.NoError(t, err)

	path := filepath.Join(root, "records", uuid.NewString()+".json")
	require.NoError(t, os.WriteFile(path, []byte("not a record"), 0o644))

	_, err = store.Open(root)
	assert.ErrorIs(t, err, record.ErrCorrupt)
}

func TestOpen_FailsOnMismatchedFileName(t *testing.T) {
	root := t.TempDir()

	s, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	require.NoError(t, s.Create(context.Background(), rec, nil))

	src := filepath.Join(root, "records", rec.ID.String()+".json")
	dst := filepath.Join(root, "records", uuid.NewString()+".json")
	require.NoError(t, os.Rename(src, dst))

	_, err = store.Open(root)
	assert.ErrorIs(t, err, record.ErrCorrupt)
}

func TestOpen_FailsOnDanglingAttachmentRef(t *testing.T) {
	root := t.TempDir()

	_, err := store.Open(root)
	require.NoError(t, err)

	rec := newEntry("Hosting", time.March, 12)
	rec.Revision = 1
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	rec.Attachments = []attachment.Ref{
		{ID: attachment.ID("ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34"), Name: "gone.png"},
	}

	data, err := record.Encode(rec)
	require.NoError(t, err)

	path := filepath.Join(root, "records", rec.ID.String()+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = store.Open(root)
	assert.ErrorIs(t, err, attachment.ErrNotFound)
}
