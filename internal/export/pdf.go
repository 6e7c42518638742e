package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

const (
	pageBreakY  = 270
	maxPDFRows  = 500
	maxDescRune = 60
)

var columnWidths = []float64{28, 80, 24, 26, 24}

// WritePDF writes an A4 statement: balances first, then one row per transaction.
func WritePDF(w io.Writer, s *model.Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle("Expense Statement", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 10, "Expense Statement")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Generated: "+time.Now().UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	writeBalances(pdf, s)
	pdf.Ln(6)

	writeHeader(pdf)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 30, 30)

	for i, t := range s.Transactions {
		if i >= maxPDFRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, fmt.Sprintf("%d more rows not shown", len(s.Transactions)-maxPDFRows), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			writeHeader(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}

		pdf.CellFormat(columnWidths[0], 8, t.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(columnWidths[1], 8, truncate(t.Description, maxDescRune), "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidths[2], 8, strings.ToUpper(string(t.Type)), "1", 0, "C", false, 0, "")
		pdf.CellFormat(columnWidths[3], 8, string(t.PaymentType), "1", 0, "C", false, 0, "")
		pdf.CellFormat(columnWidths[4], 8, signed(t), "1", 1, "R", false, 0, "")
	}

	if len(s.Transactions) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 8, model.SummaryMessageEmpty, "1", 1, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writeBalances(pdf *gofpdf.Fpdf, s *model.Summary) {
	labels := []string{"Income", "Expenses", "Balance", "Cash", "Account"}
	values := []decimal.Decimal{s.TotalIncome, s.TotalExpenses, s.TotalBalance, s.Cash, s.Account}
	width := 182.0 / float64(len(labels))

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	for i, l := range labels {
		ln := 0
		if i == len(labels)-1 {
			ln = 1
		}
		pdf.CellFormat(width, 10, l, "1", ln, "C", true, 0, "")
	}

	pdf.SetFont("Helvetica", "", 11)
	for i, v := range values {
		ln := 0
		if i == len(values)-1 {
			ln = 1
		}
		pdf.CellFormat(width, 10, v.StringFixed(2), "1", ln, "C", false, 0, "")
	}
}

func writeHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(columnWidths[0], 8, "DATE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(columnWidths[1], 8, "DESCRIPTION", "1", 0, "L", true, 0, "")
	pdf.CellFormat(columnWidths[2], 8, "TYPE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(columnWidths[3], 8, "PAYMENT", "1", 0, "C", true, 0, "")
	pdf.CellFormat(columnWidths[4], 8, "AMOUNT", "1", 1, "R", true, 0, "")
}

func signed(t *model.Transaction) string {
	if t.Type == model.CategoryExpense {
		return "-" + t.Amount.StringFixed(2)
	}
	return "+" + t.Amount.StringFixed(2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
