package rules

import (
	"regexp"
	"strings"
)

// Rule documents number their clauses "Article 8", "Article IX", etc.
var articleHeadingRe = regexp.MustCompile(`(?i)article\s+[0-9ivxl]+`)

// LocateRefundSection finds the refund clause inside a full rule-document
// text. The clause starts at an "Article N ... Remboursement" heading,
// must mention both "remboursement" and "frais" later in its body, and
// ends before the next article heading. The first qualifying clause in
// document order wins; rule documents state the refund procedure once.
//
// A false return means "no refund clause found by text evidence", which
// callers must treat as non-refundable, not as an error.
func LocateRefundSection(fullText string) (string, bool) {
	headings := articleHeadingRe.FindAllStringIndex(fullText, -1)

	for i, h := range headings {
		titleEnd := headingTitleEnd(fullText, h[1])
		title := fullText[h[0]:titleEnd]
		if !containsFold(title, "remboursement") {
			continue
		}

		end := len(fullText)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}

		body := fullText[titleEnd:end]
		if !containsFold(body, "remboursement") || !containsFold(body, "frais") {
			continue
		}

		return trimToSentence(fullText[h[0]:end]), true
	}

	return "", false
}

// headingTitleEnd returns the index where the heading's own title line
// stops: the first newline or period after the article number.
func headingTitleEnd(text string, from int) int {
	for i := from; i < len(text); i++ {
		if text[i] == '\n' || text[i] == '.' {
			return i
		}
	}
	return len(text)
}

// trimToSentence cuts a section at its last sentence boundary so the run
// never swallows a following heading's title fragment.
func trimToSentence(section string) string {
	section = strings.TrimSpace(section)
	if idx := strings.LastIndexByte(section, '.'); idx > 0 {
		section = section[:idx+1]
	}
	return section
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
