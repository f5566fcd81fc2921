// Package render is the default document renderer: it turns records and
// accounting sheets into PDF bytes. The export bundler only sees the
// Renderer interface, so the GUI can swap in a different implementation.
package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/zupzup/helferlein/internal/export"
	"github.com/zupzup/helferlein/internal/record"
)

// PDF renders A4 portrait documents with a plain Helvetica layout.
type PDF struct{}

var _ export.Renderer = (*PDF)(nil)

func NewPDF() *PDF {
	return &PDF{}
}

func (p *PDF) RenderRecord(ctx context.Context, rec *record.Record) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch rec.Kind {
	case record.KindInvoice, record.KindInvoiceTemplate:
		return renderInvoice(rec.Invoice)
	case record.KindAccountingEntry:
		return renderEntry(rec.Entry)
	default:
		return nil, fmt.Errorf("no renderer for record kind %q", rec.Kind)
	}
}

func (p *PDF) RenderSheet(ctx context.Context, sheet *export.Sheet) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := newDocument()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, sheetTitle(sheet), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)

	headers := []struct {
		width float64
		label string
	}{
		{22, "Date"}, {40, "Name"}, {35, "Company"}, {30, "Category"},
		{12, "In/Out"}, {17, "Net"}, {12, "VAT"}, {17, "Gross"},
	}

	for _, h := range headers {
		pdf.CellFormat(h.width, 7, h.label, "B", 0, "L", false, 0, "")
	}

	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 9)

	var net, gross decimal.Decimal

	for _, rec := range sheet.Entries {
		entry := rec.Entry

		entryNet := entry.Net
		entryGross := entry.Gross()

		net = net.Add(entryNet)
		gross = gross.Add(entryGross)

		pdf.CellFormat(22, 6, entry.Date.Format("2006-01-02"), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, entry.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, entry.Company, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, entry.Category, "", 0, "L", false, 0, "")
		pdf.CellFormat(12, 6, string(entry.Direction), "", 0, "C", false, 0, "")
		pdf.CellFormat(17, 6, entryNet.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(12, 6, string(entry.Vat)+" %", "", 0, "R", false, 0, "")
		pdf.CellFormat(17, 6, entryGross.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(139, 7, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(17, 7, net.StringFixed(2), "T", 0, "R", false, 0, "")
	pdf.CellFormat(12, 7, "", "T", 0, "R", false, 0, "")
	pdf.CellFormat(17, 7, gross.StringFixed(2), "T", 1, "R", false, 0, "")

	return output(pdf)
}

func renderInvoice(inv *record.InvoicePayload) ([]byte, error) {
	pdf := newDocument()

	pdf.SetFont("Helvetica", "", 9)
	writeAddress(pdf, inv.From)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	writeAddress(pdf, inv.To)
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s, %s", inv.City, inv.Date.Format("2006-01-02")), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Invoice %s", inv.InvoiceNumber), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Service period: %s - %s",
		inv.ServicePeriod.From.Format("2006-01-02"), inv.ServicePeriod.To.Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if inv.PreText != "" {
		pdf.MultiCell(0, 5, inv.PreText, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(10, 7, "Pos", "B", 0, "L", false, 0, "")
	pdf.CellFormat(75, 7, "Description", "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(12, 7, "Unit", "B", 0, "C", false, 0, "")
	pdf.CellFormat(23, 7, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(15, 7, "VAT", "B", 0, "R", false, 0, "")
	pdf.CellFormat(23, 7, "Net", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)

	for i := range inv.Items {
		item := &inv.Items[i]

		pdf.CellFormat(10, 6, fmt.Sprintf("%d", item.Position), "", 0, "L", false, 0, "")
		pdf.CellFormat(75, 6, item.Description, "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, item.Quantity.String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(12, 6, string(item.Unit), "", 0, "C", false, 0, "")
		pdf.CellFormat(23, 6, item.PricePerUnit.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(15, 6, string(item.Vat)+" %", "", 0, "R", false, 0, "")
		pdf.CellFormat(23, 6, item.Net().StringFixed(2), "", 1, "R", false, 0, "")
	}

	net, vat, gross := inv.Totals()

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(135, 6, "Net total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(38, 6, net.StringFixed(2)+" EUR", "T", 1, "R", false, 0, "")
	pdf.CellFormat(135, 6, "VAT", "", 0, "R", false, 0, "")
	pdf.CellFormat(38, 6, vat.StringFixed(2)+" EUR", "", 1, "R", false, 0, "")
	pdf.CellFormat(135, 6, "Gross total", "", 0, "R", false, 0, "")
	pdf.CellFormat(38, 6, gross.StringFixed(2)+" EUR", "", 1, "R", false, 0, "")
	pdf.Ln(6)

	if inv.PostText != "" {
		pdf.MultiCell(0, 5, inv.PostText, "", "L", false)
		pdf.Ln(4)
	}

	if inv.BankData != "" {
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(0, 4, inv.BankData, "", "L", false)
	}

	return output(pdf)
}

func renderEntry(entry *record.EntryPayload) ([]byte, error) {
	pdf := newDocument()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, entry.Name, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)

	rows := [][2]string{
		{"Date", entry.Date.Format("2006-01-02")},
		{"Direction", string(entry.Direction)},
		{"Company", entry.Company},
		{"Category", entry.Category},
		{"Net", entry.Net.StringFixed(2) + " EUR"},
		{"VAT", string(entry.Vat) + " %"},
		{"Gross", entry.Gross().StringFixed(2) + " EUR"},
	}

	for _, row := range rows {
		pdf.CellFormat(35, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, row[1], "", 1, "L", false, 0, "")
	}

	return output(pdf)
}

func writeAddress(pdf *fpdf.Fpdf, addr record.Address) {
	lines := []string{addr.Name, addr.Street, addr.Zip + " " + addr.City, addr.Country}

	if addr.VatID != "" {
		lines = append(lines, addr.VatID)
	}

	if addr.Misc != "" {
		lines = append(lines, addr.Misc)
	}

	for _, line := range lines {
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
}

func sheetTitle(sheet *export.Sheet) string {
	switch {
	case sheet.Quarter >= 1 && sheet.Quarter <= 4:
		return fmt.Sprintf("Accounting %d Q%d", sheet.Year, sheet.Quarter)
	case sheet.Month >= 1 && sheet.Month <= 12:
		return fmt.Sprintf("Accounting %d %s", sheet.Year, sheet.Month)
	default:
		return fmt.Sprintf("Accounting %d", sheet.Year)
	}
}

func newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	return pdf
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("generating pdf: %w", err)
	}

	return buf.Bytes(), nil
}
