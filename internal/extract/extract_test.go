package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFormatForFilename(t *testing.T) {
	cases := map[string]SourceFormat{
		"report.pdf":    FormatPDF,
		"REPORT.PDF":    FormatPDF,
		"brief.docx":    FormatDocx,
		"budget.xlsx":   FormatSpreadsheet,
		"legacy.XLS":    FormatSpreadsheet,
		"notes.txt":     FormatPlain,
		"readme.md":     FormatPlain,
		"data.csv":      FormatPlain,
		"archive.tar":   FormatPlain,
		"no-extension":  FormatPlain,
		"dotted.v2.pdf": FormatPDF,
	}
	for name, want := range cases {
		assert.Equal(t, want, FormatForFilename(name), name)
	}
}

func TestTextPlain(t *testing.T) {
	got := Text("notes.txt", []byte("hello   \r\nworld\n\n\n\nbye"))
	assert.Equal(t, "hello\nworld\n\nbye", got)
}

func TestTextCSVFallsThroughToPlain(t *testing.T) {
	got := Text("data.csv", []byte("a,b,c\n1,2,3\n"))
	assert.Equal(t, "a,b,c\n1,2,3", got)
}

func TestTextSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Score"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Ada"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got := Text("scores.xlsx", buf.Bytes())
	assert.Equal(t, "Name | Score\nAda | 42", got)
}

func TestTextCorruptInputsYieldEmpty(t *testing.T) {
	garbage := []byte("definitely not a real document")
	assert.Empty(t, Text("broken.pdf", garbage))
	assert.Empty(t, Text("broken.docx", garbage))
	assert.Empty(t, Text("broken.xlsx", garbage))
}
