package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zupzup/helferlein/internal/suggest"
)

// File is a binary attachment to be ingested alongside a record mutation.
type File struct {
	Name string
	Data []byte
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=record
type Repository interface {
	// Create durably stores a fresh record. files are ingested into the
	// attachment store first and appended to rec.Attachments in order.
	Create(ctx context.Context, rec *Record, files []File) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// Update replaces the record's payload and attachment set. rec.Revision
	// must be the revision the caller read; rec.Attachments may drop or
	// reorder existing references, adds are appended in order.
	Update(ctx context.Context, rec *Record, adds []File) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter) ([]Summary, error)
}

// Service coordinates record CRUD and keeps the autosuggest index for entry
// names, companies and categories in sync with the store.
type Service struct {
	repo        Repository
	suggestions *suggest.Index
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, suggestions: suggest.NewIndex()}
}

// CreateParams carries the payload for one of the three record kinds plus the
// attachments to ingest. Exactly one payload matching Kind must be set.
type CreateParams struct {
	Kind    Kind
	Entry   *EntryPayload
	Invoice *InvoicePayload
	Files   []File
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Record, error) {
	rec := &Record{
		ID:       uuid.New(),
		Kind:     params.Kind,
		Revision: 1,
		Entry:    params.Entry,
		Invoice:  params.Invoice,
	}

	if err := s.repo.Create(ctx, rec, params.Files); err != nil {
		return nil, err
	}

	s.indexEntry(rec, true)

	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Summary, error) {
	return s.repo.List(ctx, filter)
}

// Update persists an edited record. rec must carry the revision the caller
// read; the repository rejects stale revisions. adds are ingested and appended
// to the attachment references in order.
func (s *Service) Update(ctx context.Context, rec *Record, adds []File) (*Record, error) {
	old, err := s.repo.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, rec, adds); err != nil {
		return nil, err
	}

	s.indexEntry(old, false)
	s.indexEntry(rec, true)

	return rec, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.indexEntry(old, false)

	return nil
}

// Suggest returns up to limit known values for the field starting with prefix.
func (s *Service) Suggest(field suggest.Field, prefix string, limit int) []string {
	return s.suggestions.Lookup(field, prefix, limit)
}

// WarmSuggestions rebuilds the autosuggest index from the stored accounting
// entries. Call it once after opening the store.
func (s *Service) WarmSuggestions(ctx context.Context) error {
	kind := KindAccountingEntry

	summaries, err := s.repo.List(ctx, Filter{Kind: &kind})
	if err != nil {
		return fmt.Errorf("listing entries for suggestions: %w", err)
	}

	for _, sum := range summaries {
		rec, err := s.repo.Get(ctx, sum.ID)
		if err != nil {
			return fmt.Errorf("loading entry %s for suggestions: %w", sum.ID, err)
		}

		s.indexEntry(rec, true)
	}

	return nil
}

func (s *Service) indexEntry(rec *Record, add bool) {
	if rec == nil || rec.Entry == nil {
		return
	}

	apply := s.suggestions.Remove
	if add {
		apply = s.suggestions.Add
	}

	apply(suggest.FieldName, rec.Entry.Name)
	apply(suggest.FieldCompany, rec.Entry.Company)
	apply(suggest.FieldCategory, rec.Entry.Category)
}
