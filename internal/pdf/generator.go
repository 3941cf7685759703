package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/model"
)

// Generator renders bills with the PDF core fonts, so text is limited to
// Latin-1.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(doc model.BillDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := "Storage Bill (estimate)"
	if doc.Final {
		title = "Storage Bill (final)"
	}
	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract %s, issued %s", doc.Contract.ID, formatDate(doc.IssuedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addOwnerBlock(pdf, g.fontName, tr, doc.Contract.Owner)
	pdf.Ln(2)

	class := doc.Contract.Class()
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Storage", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	details := []string{
		fmt.Sprintf("Commodity: %s", class),
		fmt.Sprintf("Quantity: %d of %d %s", doc.Contract.Quantity, doc.Contract.OriginalQuantity, class.Unit()),
		fmt.Sprintf("Stored since: %s", formatDate(doc.Contract.StartDate)),
		fmt.Sprintf("Billed as of: %s", formatDate(doc.AsOf)),
		fmt.Sprintf("Rate: %s", formatAmount(doc.Rate, doc.Currency)),
	}
	if truck, ok := doc.Contract.TruckNumber(); ok {
		details = append(details, fmt.Sprintf("Truck: %s", safeValue(truck)))
	}
	for _, line := range details {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(2)

	if len(doc.Lines) > 0 {
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Charges", "", 1, "L", false, 0, "")
		widths := []float64{70, 70, 40}
		drawTableRow(pdf, g.fontName, []string{"Item", "Rule", "Amount"}, widths, true)
		for _, line := range doc.Lines {
			drawTableRow(pdf, g.fontName, []string{tr(line.Label), tr(line.Rule), formatAmount(line.Amount, doc.Currency)}, widths, false)
		}
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total: %s", formatAmount(doc.Amount, doc.Currency)), "", 1, "R", false, 0, "")

	if len(doc.Contract.Withdrawals) > 0 {
		pdf.Ln(2)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Withdrawals", "", 1, "L", false, 0, "")
		widths := []float64{40, 40, 60, 40}
		drawTableRow(pdf, g.fontName, []string{"Date", "Quantity", "Bill", "Status"}, widths, true)
		for _, w := range doc.Contract.Withdrawals {
			status := "Pending"
			if w.IsPaid {
				status = "Paid"
			}
			drawTableRow(pdf, g.fontName, []string{
				formatDate(w.WithdrawalDate),
				fmt.Sprintf("%d", w.Quantity),
				formatAmount(w.BillAmount, doc.Currency),
				status,
			}, widths, false)
		}
	}

	if strings.TrimSpace(doc.Breakdown) != "" {
		pdf.Ln(4)
		pdf.SetFont("Courier", "", 8)
		pdf.MultiCell(0, 4, tr(doc.Breakdown), "", "L", false)
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addOwnerBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, owner model.Owner) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Owner", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		safeValue(owner.FullName()),
		fmt.Sprintf("CNIC: %s", safeValue(owner.CNIC)),
		fmt.Sprintf("Phone: %s", safeValue(owner.Phone)),
		fmt.Sprintf("Address: %s", safeValue(owner.Address)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	last := len(cols) - 1
	for i, col := range cols {
		align := "L"
		if i == last {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value decimal.Decimal, currency string) string {
	return strings.TrimSpace(value.StringFixed(2) + " " + currency)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}
