package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zupzup/helferlein/internal/attachment"
)

// Decode failures are distinguishable: this is irreplaceable financial data,
// so anything the codec does not fully understand is rejected loudly instead
// of coerced.
var (
	// ErrUnknownVersion is returned when the version tag exceeds what this
	// build understands.
	ErrUnknownVersion = errors.New("unknown record format version")
	// ErrCorrupt is returned when structural validation of the bytes fails.
	ErrCorrupt = errors.New("corrupt record")
	// ErrSchemaMismatch is returned when the payload does not match the
	// declared kind.
	ErrSchemaMismatch = errors.New("record schema mismatch")
)

// codecVersion tags the on-disk representation. Bump it whenever the envelope
// or a payload schema changes shape.
const codecVersion = 1

// envelope is the durable representation of a record. The header carries the
// identity and index metadata (kind, revision, date, title, attachment refs)
// so listings never have to parse payload bytes, and no second file is needed
// to identify a record.
type envelope struct {
	Version     int              `json:"version"`
	ID          uuid.UUID        `json:"id"`
	Kind        Kind             `json:"kind"`
	Revision    uint64           `json:"revision"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Date        Date             `json:"date"`
	Title       string           `json:"title"`
	Attachments []attachment.Ref `json:"attachments"`
	Payload     json.RawMessage  `json:"payload"`
}

// Encode serializes a record into its durable byte representation. Encoding is
// deterministic: the schema is a closed set of structs with no maps, and the
// timestamps are explicit fields of the record itself.
func Encode(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	var payload any

	switch r.Kind {
	case KindAccountingEntry:
		payload = r.Entry
	case KindInvoice, KindInvoiceTemplate:
		payload = r.Invoice
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	env := envelope{
		Version:     codecVersion,
		ID:          r.ID,
		Kind:        r.Kind,
		Revision:    r.Revision,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		Date:        r.Date(),
		Title:       r.Title(),
		Attachments: r.Attachments,
		Payload:     rawPayload,
	}

	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	return append(data, '\n'), nil
}

// Decode parses a durable byte representation back into a record.
func Decode(data []byte) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: parsing envelope: %s", ErrCorrupt, err)
	}

	if env.Version > codecVersion {
		return nil, fmt.Errorf("%w: version %d, supported up to %d", ErrUnknownVersion, env.Version, codecVersion)
	}

	if env.Version < 1 {
		return nil, fmt.Errorf("%w: missing version tag", ErrCorrupt)
	}

	rec := &Record{
		ID:          env.ID,
		Kind:        env.Kind,
		Revision:    env.Revision,
		CreatedAt:   env.CreatedAt,
		UpdatedAt:   env.UpdatedAt,
		Attachments: env.Attachments,
	}

	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload for kind %q is absent", ErrSchemaMismatch, env.Kind)
	}

	switch env.Kind {
	case KindAccountingEntry:
		rec.Entry = &EntryPayload{}
		if err := decodePayload(env.Payload, rec.Entry); err != nil {
			return nil, err
		}
	case KindInvoice, KindInvoiceTemplate:
		rec.Invoice = &InvoicePayload{}
		if err := decodePayload(env.Payload, rec.Invoice); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCorrupt, env.Kind)
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	return rec, nil
}

// decodePayload unmarshals strictly: fields unknown to the declared kind's
// schema reject the record instead of being dropped.
func decodePayload(raw json.RawMessage, into any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, err)
	}

	return nil
}
