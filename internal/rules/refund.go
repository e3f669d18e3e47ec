package rules

import (
	"regexp"
	"strconv"
	"strings"

	"tvgamerefund/internal/models"
)

// DefaultDeadlineDays is the statutory window applied when a rule document
// does not state its own deadline.
const DefaultDeadlineDays = 60

// Canonical required-document names, always appended in this order
// regardless of where they appear in the source text.
const (
	DocItemizedBill   = "Facture téléphonique détaillée"
	DocBankDetails    = "Relevé d'identité bancaire (RIB)"
	DocWrittenRequest = "Demande écrite de remboursement"
)

var (
	// "à envoyer à TF1 - Service Remboursement, ..." up to the next period.
	addressRe = regexp.MustCompile(`(?i)(?:envoy(?:er|ée?)|adress(?:er|ée?)|retourn(?:er|ée?))\s+(?:à|au|aux)\s*:?\s+([^.\n]+)`)

	// "dans un délai de 60 jours", "dans les 60 jours".
	deadlineRe = regexp.MustCompile(`(?i)dans\s+(?:un\s+d[ée]lai\s+(?:maximum\s+)?de\s+|les\s+)?(\d{1,3})\s+jours`)

	ribWordRe = regexp.MustCompile(`(?i)\brib\b`)
)

// ExtractRefundInfo turns a located refund section into structured fields.
// found is the second return of LocateRefundSection; when it is false the
// result is non-refundable with every field left at its zero value — the
// only way IsRefundable becomes false.
func ExtractRefundInfo(section string, found bool) models.RefundInfo {
	if !found || strings.TrimSpace(section) == "" {
		return models.RefundInfo{IsRefundable: false}
	}

	info := models.RefundInfo{
		IsRefundable:   true,
		DeadlineDays:   DefaultDeadlineDays,
		RawMatchedText: section,
	}

	if m := addressRe.FindStringSubmatch(section); len(m) > 1 {
		info.Address = strings.TrimSpace(m[1])
	}

	if m := deadlineRe.FindStringSubmatch(section); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			info.DeadlineDays = n
		}
	}

	info.RequiredDocuments = requiredDocuments(section)
	return info
}

// requiredDocuments tests the three clause fingerprints independently and
// appends canonical names in a fixed order (bill, bank details, letter).
// The fixed order is a presentation normalization, not source order.
func requiredDocuments(section string) []string {
	low := strings.ToLower(section)
	var docs []string

	if strings.Contains(low, "facture détaillée") ||
		strings.Contains(low, "facturation détaillée") ||
		strings.Contains(low, "facture téléphonique") {
		docs = append(docs, DocItemizedBill)
	}
	if strings.Contains(low, "relevé d'identité bancaire") ||
		strings.Contains(low, "relevé d’identité bancaire") ||
		ribWordRe.MatchString(section) {
		docs = append(docs, DocBankDetails)
	}
	if strings.Contains(low, "demande écrite") ||
		strings.Contains(low, "demande de remboursement écrite") ||
		strings.Contains(low, "courrier de demande") {
		docs = append(docs, DocWrittenRequest)
	}

	return docs
}
