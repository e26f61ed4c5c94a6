package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T) []byte {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "quarter"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "revenue"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Q1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1200))

	_, err := f.NewSheet("Costs")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Costs", "A1", "rent"))
	require.NoError(t, f.SetCellValue("Costs", "B1", 300))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestSpreadsheetText(t *testing.T) {
	content := buildWorkbook(t)

	text, pages, err := SpreadsheetText(content)
	require.NoError(t, err)

	assert.Equal(t, 2, pages)
	assert.Contains(t, text, "quarter | revenue")
	assert.Contains(t, text, "Q1 | 1200")
	assert.Contains(t, text, "rent | 300")
	// Each sheet terminates with its page marker.
	assert.Contains(t, text, "<<1>>")
	assert.Contains(t, text, "<<2>>")
}

func TestSpreadsheetText_InvalidContent(t *testing.T) {
	_, _, err := SpreadsheetText([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestText_DispatchesByExtension(t *testing.T) {
	content := buildWorkbook(t)

	text, pages, err := Text(content, "budget.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.NotEmpty(t, text)
}

func TestText_UnsupportedExtension(t *testing.T) {
	_, _, err := Text([]byte("plain"), "notes.docx")
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestPDFText_InvalidContent(t *testing.T) {
	_, _, err := PDFText([]byte("definitely not a pdf"))
	assert.Error(t, err)
}
