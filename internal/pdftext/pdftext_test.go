package pdftext

import "testing"

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7 rest of file")) {
		t.Error("magic prefix should be detected")
	}
	if IsPDF([]byte("<html><body>Not a PDF</body></html>")) {
		t.Error("HTML is not a PDF")
	}
	if IsPDF([]byte("%PD")) {
		t.Error("short input is not a PDF")
	}
	if IsPDF(nil) {
		t.Error("nil input is not a PDF")
	}
}
