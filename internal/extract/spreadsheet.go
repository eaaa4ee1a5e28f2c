package extract

import (
	"bytes"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"aiscaleup.com/alex-assistant/internal/textutil"
)

// decodeSpreadsheet renders a workbook as text: one line per row with cells
// joined by " | ", a blank line between sheets.
func decodeSpreadsheet(data []byte) string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		log.Printf("extract: spreadsheet decode failed: %v", err)
		return ""
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Printf("extract: spreadsheet sheet %q decode failed: %v", sheet, err)
			return ""
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return textutil.Normalize(sb.String())
}
