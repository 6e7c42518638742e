// Package export renders a ledger summary as a downloadable document.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/nimasrn/expense-tracker/internal/model"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts xlsx and pdf, case-insensitive. Empty means xlsx.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FormatXLSX):
		return FormatXLSX, nil
	case string(FormatPDF):
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (f Format) Filename() string {
	return "expenses." + string(f)
}

func Write(w io.Writer, f Format, s *model.Summary) error {
	switch f {
	case FormatPDF:
		return WritePDF(w, s)
	case FormatXLSX:
		return WriteXLSX(w, s)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}
