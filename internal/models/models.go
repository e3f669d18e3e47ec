package models

import (
	"strings"
	"time"
)

// GameType classifies how a paid game is entered.
type GameType string

const (
	GameSMS       GameType = "SMS"
	GamePhoneCall GameType = "PHONE_CALL"
	GameWeb       GameType = "WEB"
	GameMixed     GameType = "MIXED"
	GameOther     GameType = "OTHER"
)

// InvoiceStatus tracks the lifecycle of an invoice record.
// The extraction pipeline only ever produces NEW records; later states
// belong to the client-side repository.
type InvoiceStatus string

const (
	InvoiceNew        InvoiceStatus = "NEW"
	InvoiceDownloaded InvoiceStatus = "DOWNLOADED"
	InvoiceClaimed    InvoiceStatus = "CLAIMED"
)

// RuleDocument is one published game-rule document discovered on a
// broadcaster site. Deduplication across scrape runs is the caller's concern.
type RuleDocument struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Channel   string     `json:"channel"`
	Published *time.Time `json:"published,omitempty"`
}

// RefundInfo is the structured refund procedure extracted from a rule document.
type RefundInfo struct {
	IsRefundable      bool     `json:"is_refundable"`
	Address           string   `json:"address,omitempty"`
	DeadlineDays      int      `json:"deadline_days"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
	RawMatchedText    string   `json:"raw_matched_text,omitempty"`
}

// GameListing is one currently active paid game on a broadcaster.
type GameListing struct {
	ID            string   `json:"id"`
	ShowID        string   `json:"show_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Type          GameType `json:"type"`
	Channel       string   `json:"channel"`
	PhoneNumber   string   `json:"phone_number"`
	Cost          float64  `json:"cost"`
	RefundAddress string   `json:"refund_address"`
	RulesURL      string   `json:"rules_url"`
	ImageURL      string   `json:"image_url,omitempty"`

	// Filled by the link checker.
	RulesVerified   bool   `json:"rules_verified"`
	RulesVerifiedAt string `json:"rules_verified_at,omitempty"`

	// Filled by the optional show-metadata lookup.
	PosterURL   string `json:"poster_url,omitempty"`
	BackdropURL string `json:"backdrop_url,omitempty"`
}

// InvoiceRecord is one normalized operator invoice.
type InvoiceRecord struct {
	ID          string        `json:"id"`
	PhoneNumber string        `json:"phone_number"`
	Date        time.Time     `json:"date"`
	Amount      float64       `json:"amount"`
	PDFURL      string        `json:"pdf_url"`
	Status      InvoiceStatus `json:"status"`
}

// ClaimRequest carries everything needed to generate a refund request letter.
type ClaimRequest struct {
	GameTitle     string  `json:"game_title"`
	Channel       string  `json:"channel"`
	PlayedAt      string  `json:"played_at"`
	PhoneNumber   string  `json:"phone_number"`
	Cost          float64 `json:"cost"`
	RefundAddress string  `json:"refund_address"`

	ClaimantName    string `json:"claimant_name"`
	ClaimantAddress string `json:"claimant_address"`
	IBAN            string `json:"iban,omitempty"`
}

// NormalizeShowID derives the grouping slug from a show display title:
// lowercase, non-alphanumeric runs collapse to a single hyphen, outer
// hyphens trimmed. Identical titles intentionally collide to one ID.
func NormalizeShowID(title string) string {
	s := strings.ToLower(title)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}
