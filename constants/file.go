package constants

import "strings"

// Format is the declared document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// AllowedExtensions holds the file extensions picked up by directory ingest.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"html": {},
	"htm":  {},
	"csv":  {},
	"txt":  {},
	"xlsx": {},
	"xls":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// CanonicalFormat maps an extension or declared format onto a Format.
func CanonicalFormat(s string) (Format, bool) {
	switch NormalizeExt(s) {
	case "pdf":
		return FormatPDF, true
	case "html", "htm":
		return FormatHTML, true
	case "csv", "txt":
		return FormatCSV, true
	case "xlsx", "xls":
		return FormatXLSX, true
	}
	return "", false
}
