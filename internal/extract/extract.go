// Package extract provides in-process text extraction for the local
// ingestion strategy. Output follows the same <<N>> page marker convention
// the external parsing provider emits, so downstream chunking and citation
// mapping work identically on both paths.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Text extracts marker-annotated text from a raw document, dispatching on
// the file extension. Returns the text and the number of pages emitted.
func Text(content []byte, filename string) (string, int, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDFText(content)
	case ".xlsx", ".xlsm", ".xls":
		return SpreadsheetText(content)
	default:
		return "", 0, fmt.Errorf("unsupported file type for local extraction: %s", filename)
	}
}

// PDFText extracts per-page plain text from a PDF. Unreadable pages are
// skipped rather than failing the whole document.
func PDFText(content []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	pages := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		pages++
		b.WriteString(strings.TrimSpace(text))
		b.WriteString(fmt.Sprintf("\n<<%d>>\n", pages))
	}

	if pages == 0 {
		return "", 0, fmt.Errorf("no extractable pages in pdf")
	}

	return b.String(), pages, nil
}

// SpreadsheetText renders each sheet of a workbook as one page of
// pipe-delimited rows.
func SpreadsheetText(content []byte) (string, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}

		pages++
		b.WriteString(fmt.Sprintf("# %s\n\n", sheet))
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString(fmt.Sprintf("\n<<%d>>\n", pages))
	}

	if pages == 0 {
		return "", 0, fmt.Errorf("no non-empty sheets in workbook")
	}

	return b.String(), pages, nil
}
