package extract

import (
	"bytes"
	"log"

	"code.sajari.com/docconv"

	"aiscaleup.com/alex-assistant/internal/textutil"
)

// decodeDocx pulls the raw text content out of a word-processor document.
func decodeDocx(data []byte) string {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		log.Printf("extract: docx decode failed: %v", err)
		return ""
	}
	return textutil.Normalize(text)
}
