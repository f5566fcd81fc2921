// Package record defines the persisted bookkeeping records (accounting
// entries, invoices, invoice templates), the versioned codec for their durable
// representation, and the service coordinating them.
package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zupzup/helferlein/internal/attachment"
)

var (
	// ErrNotFound is returned when no record exists for the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrStaleRevision is returned when an update carries a revision that no
	// longer matches the stored record.
	ErrStaleRevision = errors.New("record revision is stale")
)

// Kind discriminates the closed set of record variants sharing the store.
type Kind string

const (
	KindAccountingEntry Kind = "accounting_entry"
	KindInvoice         Kind = "invoice"
	KindInvoiceTemplate Kind = "invoice_template"
)

func (k Kind) valid() bool {
	switch k {
	case KindAccountingEntry, KindInvoice, KindInvoiceTemplate:
		return true
	}

	return false
}

// Direction marks an accounting entry as ingoing or outgoing.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// VatRate is one of the fixed Austrian VAT rates.
type VatRate string

const (
	VatZero   VatRate = "0"
	VatTen    VatRate = "10"
	VatTwenty VatRate = "20"
)

// Percent returns the rate as a decimal percentage value.
func (v VatRate) Percent() decimal.Decimal {
	switch v {
	case VatTen:
		return decimal.NewFromInt(10)
	case VatTwenty:
		return decimal.NewFromInt(20)
	default:
		return decimal.Zero
	}
}

// Unit is the billing unit of an invoice line item.
type Unit string

const (
	UnitHour Unit = "h"
	UnitDay  Unit = "d"
	UnitNone Unit = "-"
)

// Date is a calendar date without a time component, stored as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON encodes the date as "2006-01-02".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

// UnmarshalJSON decodes a "2006-01-02" date.
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid date %s", data)
	}

	parsed, err := time.Parse(time.DateOnly, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("parsing date: %w", err)
	}

	d.Time = parsed

	return nil
}

// Record is the unit of persistence. Exactly one payload field matching Kind
// is set; a template shares the invoice payload and differs only in kind.
type Record struct {
	ID          uuid.UUID
	Kind        Kind
	Revision    uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Attachments []attachment.Ref

	Entry   *EntryPayload
	Invoice *InvoicePayload
}

// EntryPayload holds the fields of a single accounting entry.
type EntryPayload struct {
	Direction Direction       `json:"direction"`
	Date      Date            `json:"date"`
	Name      string          `json:"name"`
	Company   string          `json:"company"`
	Category  string          `json:"category"`
	Net       decimal.Decimal `json:"net"`
	Vat       VatRate         `json:"vat"`
}

// Gross returns the net amount plus VAT.
func (p *EntryPayload) Gross() decimal.Decimal {
	vat := p.Net.Mul(p.Vat.Percent()).Div(decimal.NewFromInt(100))
	return p.Net.Add(vat).Round(2)
}

// Address is a postal address block on an invoice.
type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
	VatID   string `json:"vat_id"`
	Misc    string `json:"misc"`
}

// ServicePeriod is the date range an invoice bills for.
type ServicePeriod struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// LineItem is a single invoice position.
type LineItem struct {
	Position     int             `json:"position"`
	Description  string          `json:"description"`
	Unit         Unit            `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Vat          VatRate         `json:"vat"`
}

// Net returns the item's net total.
func (i *LineItem) Net() decimal.Decimal {
	return i.Quantity.Mul(i.PricePerUnit).Round(2)
}

// InvoicePayload holds the fields of an invoice or invoice template.
type InvoicePayload struct {
	Date          Date          `json:"date"`
	City          string        `json:"city"`
	Name          string        `json:"name"`
	From          Address       `json:"from"`
	To            Address       `json:"to"`
	ServicePeriod ServicePeriod `json:"service_period"`
	InvoiceNumber string        `json:"invoice_number"`
	PreText       string        `json:"pre_text"`
	PostText      string        `json:"post_text"`
	BankData      string        `json:"bank_data"`
	Items         []LineItem    `json:"items"`
}

// Totals returns the invoice's net, VAT and gross sums over all items.
func (p *InvoicePayload) Totals() (net, vat, gross decimal.Decimal) {
	hundred := decimal.NewFromInt(100)

	for i := range p.Items {
		itemNet := p.Items[i].Net()
		net = net.Add(itemNet)
		vat = vat.Add(itemNet.Mul(p.Items[i].Vat.Percent()).Div(hundred))
	}

	net = net.Round(2)
	vat = vat.Round(2)
	gross = net.Add(vat)

	return net, vat, gross
}

// Title returns the display name used for listing and export file names.
func (r *Record) Title() string {
	switch {
	case r.Entry != nil:
		return r.Entry.Name
	case r.Invoice != nil:
		return r.Invoice.Name
	}

	return ""
}

// Date returns the record's business date.
func (r *Record) Date() Date {
	switch {
	case r.Entry != nil:
		return r.Entry.Date
	case r.Invoice != nil:
		return r.Invoice.Date
	}

	return Date{}
}

// Validate checks the structural invariants every stored record must satisfy.
func (r *Record) Validate() error {
	if r.ID == uuid.Nil {
		return errors.New("record id is empty")
	}

	if !r.Kind.valid() {
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}

	if r.Revision < 1 {
		return errors.New("record revision must be at least 1")
	}

	switch r.Kind {
	case KindAccountingEntry:
		if r.Entry == nil || r.Invoice != nil {
			return fmt.Errorf("kind %s requires exactly an entry payload", r.Kind)
		}

		if r.Entry.Name == "" {
			return errors.New("entry name is empty")
		}

		if r.Entry.Date.IsZero() {
			return errors.New("entry date is empty")
		}
	case KindInvoice, KindInvoiceTemplate:
		if r.Invoice == nil || r.Entry != nil {
			return fmt.Errorf("kind %s requires exactly an invoice payload", r.Kind)
		}

		if r.Invoice.Name == "" {
			return errors.New("invoice name is empty")
		}

		if r.Invoice.Date.IsZero() {
			return errors.New("invoice date is empty")
		}
	}

	for _, ref := range r.Attachments {
		if !ref.ID.Valid() {
			return fmt.Errorf("attachment reference %q is not a valid content id", ref.ID)
		}

		if ref.Name == "" {
			return errors.New("attachment reference has no original filename")
		}
	}

	return nil
}

// Summary is the index metadata of a record, served by List without touching
// payload bytes.
type Summary struct {
	ID          uuid.UUID
	Kind        Kind
	Revision    uint64
	Date        Date
	Title       string
	Attachments int
	UpdatedAt   time.Time
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Kind *Kind
	From *Date
	To   *Date
}

// Matches reports whether a summary passes the filter.
func (f Filter) Matches(s Summary) bool {
	if f.Kind != nil && s.Kind != *f.Kind {
		return false
	}

	if f.From != nil && s.Date.Before(f.From.Time) {
		return false
	}

	if f.To != nil && s.Date.After(f.To.Time) {
		return false
	}

	return true
}

// PeriodRange returns the first and last day of a reporting period. quarter
// (1-4) takes precedence over month; both zero means the full year.
func PeriodRange(year, quarter int, month time.Month) (Date, Date) {
	switch {
	case quarter >= 1 && quarter <= 4:
		start := time.Month(quarter*3 - 2)
		from := NewDate(year, start, 1)
		to := NewDate(year, start+3, 1).AddDate(0, 0, -1)

		return from, Date{Time: to}
	case month >= time.January && month <= time.December:
		from := NewDate(year, month, 1)
		to := from.AddDate(0, 1, -1)

		return from, Date{Time: to}
	default:
		return NewDate(year, time.January, 1), NewDate(year, time.December, 31)
	}
}
