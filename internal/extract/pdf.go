package extract

import (
	"bytes"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"

	"aiscaleup.com/alex-assistant/internal/textutil"
)

// decodePDF extracts each page's text in page order, separated by blank
// lines. The pdf package panics on some malformed files, so the recover is
// part of the non-fatal decode contract, not just hygiene.
func decodePDF(data []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("extract: pdf decode panic: %v", r)
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Printf("extract: pdf decode failed: %v", err)
		return ""
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("extract: pdf page %d decode failed: %v", i, err)
			return ""
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	return textutil.Normalize(sb.String())
}
