package channels

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tvgamerefund/internal/config"
	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"

	"golang.org/x/sync/errgroup"
)

var (
	// French premium short codes: 4 digits starting with 3 (SMS) or
	// 5 digits starting with 7.
	shortcodeRe = regexp.MustCompile(`\b(3\d{3}|7\d{4})\b`)
	// Audiotel numbers, with or without spacing: 08 99 XX XX XX.
	audiotelRe = regexp.MustCompile(`\b08\s?9\d(?:\s?\d{2}){3}\b`)
	costRe     = regexp.MustCompile(`(\d+[.,]\d{2})\s*(?:€|euros?|eur)`)
	postalRe   = regexp.MustCompile(`\b\d{5}\s+[A-ZÀ-Ü][A-Za-zÀ-ÿ'’ -]+`)
)

// The refund address sits shortly after the word "remboursement" in rule text.
const addressWindow = 300

// enricher fetches each listing's linked rule page and overrides the
// channel seed values with what the document actually says. Every
// override is independent and best-effort: a miss silently keeps the seed.
type enricher struct {
	fetch *fetch.Fetcher
}

// Run enriches the listings in place with a bounded fan-out. A failing
// entry never aborts the batch.
func (e *enricher) Run(games []models.GameListing) {
	var g errgroup.Group
	g.SetLimit(config.Cfg.EnrichWorkers)

	for i := range games {
		i := i
		g.Go(func() error {
			e.enrichOne(&games[i])
			return nil
		})
	}
	g.Wait()
}

func (e *enricher) enrichOne(g *models.GameListing) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("enrich: panic", map[string]interface{}{
				"game": g.ID, "error": fmt.Sprintf("%v", r),
			})
		}
	}()

	if g.RulesURL == "" {
		return
	}

	body, err := e.fetch.Get(g.RulesURL)
	if err != nil {
		logger.Warn("enrich: detail fetch failed", map[string]interface{}{
			"game": g.ID, "url": g.RulesURL, "error": err.Error(),
		})
		return
	}

	text := documentText(body)
	if text == "" {
		return
	}

	if m := shortcodeRe.FindString(text); m != "" {
		g.PhoneNumber = m
	} else if m := audiotelRe.FindString(text); m != "" {
		g.PhoneNumber = m
	}

	if m := costRe.FindStringSubmatch(text); len(m) > 1 {
		if v := parseEuro(m[1]); v > 0 {
			g.Cost = v
		}
	}

	if addr := refundAddressNear(text); addr != "" {
		g.RefundAddress = addr
	}
}

// refundAddressNear finds the first postal-code+locality pattern within
// addressWindow bytes after the word "remboursement", extended left to
// the start of its clause so the street line is kept.
func refundAddressNear(text string) string {
	low := strings.ToLower(text)
	idx := strings.Index(low, "remboursement")
	if idx < 0 {
		return ""
	}

	start := idx + len("remboursement")
	end := start + addressWindow
	if end > len(text) {
		end = len(text)
	}
	window := text[start:end]

	loc := postalRe.FindStringIndex(window)
	if loc == nil {
		return ""
	}

	left := strings.LastIndexAny(window[:loc[0]], ".:;\n")
	if left < 0 {
		left = 0
	} else {
		left++
	}
	return strings.TrimSpace(window[left:loc[1]])
}

func parseEuro(s string) float64 {
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
