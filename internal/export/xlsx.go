package export

import (
	"fmt"
	"io"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	transactionsSheet = "Transactions"
	summarySheet      = "Summary"
)

var transactionHeaders = []string{"Date", "Description", "Type", "Payment Type", "Amount"}

// WriteXLSX writes a workbook with the transactions and a balance summary sheet.
func WriteXLSX(w io.Writer, s *model.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(transactionsSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	// drop the default sheet
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, h := range transactionHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(transactionsSheet, cell, h)
	}
	f.SetCellStyle(transactionsSheet, "A1", "E1", bold)

	for i, t := range s.Transactions {
		row := i + 2
		f.SetCellValue(transactionsSheet, fmt.Sprintf("A%d", row), t.Date)
		f.SetCellValue(transactionsSheet, fmt.Sprintf("B%d", row), t.Description)
		f.SetCellValue(transactionsSheet, fmt.Sprintf("C%d", row), string(t.Type))
		f.SetCellValue(transactionsSheet, fmt.Sprintf("D%d", row), string(t.PaymentType))
		f.SetCellValue(transactionsSheet, fmt.Sprintf("E%d", row), t.Amount.InexactFloat64())
	}

	f.SetColWidth(transactionsSheet, "A", "A", 14)
	f.SetColWidth(transactionsSheet, "B", "B", 36)
	f.SetColWidth(transactionsSheet, "C", "D", 14)
	f.SetColWidth(transactionsSheet, "E", "E", 14)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Total Income", s.TotalIncome.InexactFloat64()},
		{"Total Expenses", s.TotalExpenses.InexactFloat64()},
		{"Total Balance", s.TotalBalance.InexactFloat64()},
		{"Cash", s.Cash.InexactFloat64()},
		{"Account", s.Account.InexactFloat64()},
	}
	for i, r := range rows {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), r[1])
	}
	f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold)
	f.SetColWidth(summarySheet, "A", "A", 18)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
