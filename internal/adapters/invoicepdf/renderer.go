// Package invoicepdf lays invoices and receipts out with fpdf.
package invoicepdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/invoices"
)

const (
	pageWidth = 210.0
	margin    = 15.0
	lineH     = 6.0
)

type Renderer struct {
	// Issuer is printed in the header.
	Issuer string
	// Compress toggles stream compression. Tests turn it off to inspect text.
	Compress bool
}

func NewRenderer(issuer string) *Renderer {
	return &Renderer{Issuer: issuer, Compress: true}
}

func (r *Renderer) Render(d invoices.Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCompression(r.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(d.IssuedAt)
	pdf.SetModificationDate(d.IssuedAt)
	title := strings.ToUpper(string(d.Kind))
	pdf.SetTitle(fmt.Sprintf("%s %s", title, d.Number), true)
	pdf.SetAuthor(r.Issuer, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	contentW := pageWidth - 2*margin

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(contentW/2, 10, tr(r.Issuer), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/2, 10, title, "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, lineH, "No. "+d.Number, "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW, lineH, "Issued "+d.IssuedAt.UTC().Format("2006-01-02"), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	c := d.Contract
	section(pdf, "Billed to")
	billTo := []string{d.Contractor.FullName}
	if d.Contractor.CompanyName != nil {
		billTo = append(billTo, *d.Contractor.CompanyName)
	}
	if d.Contractor.Email != "" {
		billTo = append(billTo, d.Contractor.Email)
	}
	for _, line := range billTo {
		if line != "" {
			pdf.CellFormat(contentW, lineH, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(2)

	section(pdf, "Delivery")
	rows := [][2]string{
		{"Flight", fmt.Sprintf("%s %s", c.Airline, c.FlightNumber)},
		{"Passenger", c.PassengerName},
		{"Pickup", c.PickupAddress},
		{"Drop-off", c.DropoffAddress},
		{"Scheduled", c.ScheduledAt.UTC().Format("2006-01-02 15:04 MST")},
		{"Status", string(c.Status)},
	}
	if d.Region.Name != "" {
		rows = append(rows, [2]string{"Region", d.Region.Name})
	}
	for _, kv := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, lineH, kv[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(contentW-35, lineH, tr(kv[1]), "", "L", false)
	}
	pdf.Ln(2)

	section(pdf, "Luggage")
	cols := []float64{40, 80, 30, 30}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Tag", "Description", "Qty", "Weight (kg)"} {
		pdf.CellFormat(cols[i], lineH, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, it := range c.Luggage {
		pdf.CellFormat(cols[0], lineH, tr(it.TagNumber), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], lineH, tr(it.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], lineH, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(cols[3], lineH, fmt.Sprintf("%.1f", it.WeightKg), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Charges")
	cur := c.Currency
	charges := [][2]string{}
	if d.Region.ID != "" {
		bags := c.BagCount()
		kg := domain.BillableKg(c.Luggage)
		charges = append(charges,
			[2]string{"Base fee", money(d.Region.BaseFeeCents, cur)},
			[2]string{fmt.Sprintf("Bags (%d x %s)", bags, money(d.Region.PerBagCents, cur)), money(d.Region.PerBagCents*int64(bags), cur)},
			[2]string{fmt.Sprintf("Weight (%d kg x %s)", kg, money(d.Region.PerKgCents, cur)), money(d.Region.PerKgCents*kg, cur)},
		)
	}
	charges = append(charges, [2]string{"Total", money(c.TotalCents, cur)})
	for _, p := range d.Payments {
		if p.Status != domain.PaymentStatusPaid {
			continue
		}
		label := fmt.Sprintf("Paid %s (%s)", paidOn(p), p.Method)
		charges = append(charges, [2]string{label, "-" + money(p.AmountCents, cur)})
	}
	charges = append(charges, [2]string{"Balance due", money(d.DueCents(), cur)})
	for i, kv := range charges {
		style := ""
		if i == len(charges)-1 || kv[0] == "Total" {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(contentW-40, lineH, kv[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, lineH, kv[1], "", 1, "R", false, 0, "")
	}

	if d.Kind == invoices.KindReceipt {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(20, 120, 60)
		pdf.CellFormat(contentW, 10, "PAID IN FULL", "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
}

func money(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

func paidOn(p domain.Payment) string {
	if p.PaidAt != nil {
		return p.PaidAt.UTC().Format("2006-01-02")
	}
	return p.CreatedAt.UTC().Format("2006-01-02")
}
