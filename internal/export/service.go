// Package export produces self-contained, human-deliverable bundles: a
// rendered document plus a sibling folder holding copies of every attachment a
// record references. It reads the record store, never mutates it.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zupzup/helferlein/internal/attachment"
	"github.com/zupzup/helferlein/internal/record"
)

// filesSuffix names the attachment folder created beside the document.
const filesSuffix = "_files"

// Renderer turns records into document bytes. It is an opaque, possibly
// failing collaborator; its errors are wrapped with the record id, never
// swallowed.
type Renderer interface {
	RenderRecord(ctx context.Context, rec *record.Record) ([]byte, error)
	RenderSheet(ctx context.Context, sheet *Sheet) ([]byte, error)
}

// Records is the read-only record access the bundler needs.
type Records interface {
	Get(ctx context.Context, id uuid.UUID) (*record.Record, error)
	List(ctx context.Context, filter record.Filter) ([]record.Summary, error)
}

// Blobs is the read-only attachment access the bundler needs.
type Blobs interface {
	Reader(id attachment.ID) (io.ReadCloser, error)
}

// Sheet is an accounting overview for one reporting period.
type Sheet struct {
	Year    int
	Quarter int
	Month   time.Month
	Entries []*record.Record
}

// Result lists everything an export wrote. On a partial failure the
// accompanying error is non-nil and Attachments holds the copies that
// succeeded; callers must treat that as needing cleanup or retry.
type Result struct {
	Document    string
	Attachments []string
}

// Service bundles records for delivery outside the store.
type Service struct {
	records  Records
	blobs    Blobs
	renderer Renderer
}

func NewService(records Records, blobs Blobs, renderer Renderer) *Service {
	return &Service{records: records, blobs: blobs, renderer: renderer}
}

// Export renders one record into destDir and copies its attachments, in
// reference order, into a sibling "<document>_files" folder. Two attachments
// sharing an original filename get distinct copies.
func (s *Service) Export(ctx context.Context, id uuid.UUID, destDir string) (*Result, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("exporting record: %w", err)
	}

	doc, err := s.renderer.RenderRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("rendering record %s: %w", id, err)
	}

	return s.writeBundle(ctx, destDir, documentName(rec), doc, rec.Attachments)
}

// ExportSheet renders the accounting entries of a reporting period into one
// document and copies the attachments of every entry in the period into the
// sibling files folder.
func (s *Service) ExportSheet(ctx context.Context, year, quarter int, month time.Month, destDir string) (*Result, error) {
	from, to := record.PeriodRange(year, quarter, month)
	kind := record.KindAccountingEntry

	summaries, err := s.records.List(ctx, record.Filter{Kind: &kind, From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("listing entries for sheet: %w", err)
	}

	sheet := &Sheet{Year: year, Quarter: quarter, Month: month}

	var refs []attachment.Ref

	for _, sum := range summaries {
		rec, err := s.records.Get(ctx, sum.ID)
		if err != nil {
			return nil, fmt.Errorf("loading entry %s for sheet: %w", sum.ID, err)
		}

		sheet.Entries = append(sheet.Entries, rec)
		refs = append(refs, rec.Attachments...)
	}

	doc, err := s.renderer.RenderSheet(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("rendering sheet %s: %w", sheetName(year, quarter, month), err)
	}

	return s.writeBundle(ctx, destDir, sheetName(year, quarter, month)+".pdf", doc, refs)
}

func (s *Service) writeBundle(ctx context.Context, destDir, docName string, doc []byte, refs []attachment.Ref) (*Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}

	docPath := filepath.Join(destDir, docName)
	if err := os.WriteFile(docPath, doc, 0o644); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}

	result := &Result{Document: docPath}

	if len(refs) == 0 {
		return result, nil
	}

	filesDir := strings.TrimSuffix(docPath, filepath.Ext(docPath)) + filesSuffix
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return result, fmt.Errorf("creating files folder: %w", err)
	}

	for i, ref := range refs {
		// Exports may be cancelled cooperatively between copies; files
		// written so far stay in place and are reported.
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(filesDir, copyName(i, len(refs), ref.Name))

		if err := s.copyAttachment(ref.ID, path); err != nil {
			return result, fmt.Errorf("copying attachment %q (%d of %d copied): %w",
				ref.Name, len(result.Attachments), len(refs), err)
		}

		result.Attachments = append(result.Attachments, path)
	}

	return result, nil
}

func (s *Service) copyAttachment(id attachment.ID, path string) error {
	reader, err := s.blobs.Reader(id)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating attachment copy: %w", err)
	}

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return fmt.Errorf("writing attachment copy: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing attachment copy: %w", err)
	}

	return nil
}

// documentName builds the document file name from the record itself, so
// repeated exports of the same record land on the same paths.
func documentName(rec *record.Record) string {
	date := rec.Date()

	prefix := "Entry"

	switch rec.Kind {
	case record.KindInvoice, record.KindInvoiceTemplate:
		prefix = "Invoice"
	}

	return fmt.Sprintf("%s-%d-%d-%d_%s.pdf", prefix, date.Year(), int(date.Month()), date.Day(), sanitize(rec.Title()))
}

// sheetName follows the period naming of the accounting overview: "2024",
// "2024-Q1" or "2024-January".
func sheetName(year, quarter int, month time.Month) string {
	switch {
	case quarter >= 1 && quarter <= 4:
		return fmt.Sprintf("%d-Q%d", year, quarter)
	case month >= time.January && month <= time.December:
		return fmt.Sprintf("%d-%s", year, month)
	default:
		return fmt.Sprintf("%d", year)
	}
}

// copyName prefixes the sanitized original filename with its 1-based position
// so reference order is visible and identical names cannot collide.
func copyName(index, total int, original string) string {
	width := len(fmt.Sprintf("%d", total))
	return fmt.Sprintf("%0*d_%s", width, index+1, sanitize(original))
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}

		return '_'
	}, name)
}
