package pdftext

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// IsPDF reports whether data starts with the %PDF magic number.
// Broadcaster rule links sometimes answer with an HTML error page under a
// .pdf URL; this check is the only reliable signal.
func IsPDF(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "%PDF"
}

// Extract returns the plain text of every page, concatenated. Pages that
// fail to decode are skipped rather than failing the whole document.
func Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
