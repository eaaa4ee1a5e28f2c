// Package extract converts heterogeneous file uploads into normalized text.
//
// Dispatch is by file extension, case-insensitive. Anything that is not a
// PDF, word-processor document or spreadsheet falls through to best-effort
// UTF-8 decoding. A decode failure is never fatal: the file yields an empty
// string and ingestion of the remaining files continues.
package extract

import (
	"path/filepath"
	"strings"

	"aiscaleup.com/alex-assistant/internal/textutil"
)

// SourceFormat identifies which decoder handles a file.
type SourceFormat int

const (
	FormatPlain SourceFormat = iota // txt, md, csv and unknown extensions
	FormatPDF
	FormatDocx
	FormatSpreadsheet // xlsx, xls
)

func (f SourceFormat) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDocx:
		return "docx"
	case FormatSpreadsheet:
		return "spreadsheet"
	default:
		return "plain"
	}
}

// FormatForFilename picks the decoder for a filename by its extension.
func FormatForFilename(name string) SourceFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return FormatPDF
	case "docx":
		return FormatDocx
	case "xlsx", "xls":
		return FormatSpreadsheet
	default:
		return FormatPlain
	}
}

var decoders = map[SourceFormat]func([]byte) string{
	FormatPlain:       decodePlain,
	FormatPDF:         decodePDF,
	FormatDocx:        decodeDocx,
	FormatSpreadsheet: decodeSpreadsheet,
}

// Text extracts and normalizes the textual content of a raw file buffer.
// It always returns a string; an unparseable file yields "".
func Text(filename string, data []byte) string {
	return decoders[FormatForFilename(filename)](data)
}

func decodePlain(data []byte) string {
	return textutil.Normalize(string(data))
}
