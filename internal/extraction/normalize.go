package extraction

import "strings"

// exportMarker is prefixed to plain-text exports of converted documents.
const exportMarker = "\ufeff________________"

// misdecodedExportMarker is exportMarker after a UTF-8 BOM was read as Latin-1.
const misdecodedExportMarker = "\u00ef\u00bb\u00bf________________"

// Normalize converts CRLF line endings to LF, removes export markers and trims
// surrounding whitespace. It repeats until the text stops changing, so
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(text string) string {
	for {
		next := strings.ReplaceAll(text, "\r\n", "\n")
		next = strings.ReplaceAll(next, exportMarker, "")
		next = strings.ReplaceAll(next, misdecodedExportMarker, "")
		next = strings.TrimSpace(next)
		if next == text {
			return next
		}
		text = next
	}
}
