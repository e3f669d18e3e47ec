package channels

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"tvgamerefund/internal/config"
	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"
	"tvgamerefund/internal/pdftext"
	"tvgamerefund/internal/rules"

	"golang.org/x/net/html"
)

// Scraper is the per-broadcaster capability set. New channels are added
// by implementing this interface and registering it, never by touching
// the callers.
type Scraper interface {
	Name() string
	ListRules() ([]models.RuleDocument, error)
	RuleDetails(docURL string) (models.RefundInfo, error)
	ListActiveGames() ([]models.GameListing, error)
}

// ErrUnknownChannel means no scraper is registered for the requested
// channel: a caller configuration error, distinct from data unreliability.
var ErrUnknownChannel = errors.New("no scraper registered for channel")

// Registry holds the enabled channel scrapers.
type Registry struct {
	fetch    *fetch.Fetcher
	scrapers map[string]Scraper
	order    []string
}

// NewRegistry builds a registry from the channel toggles in config.
func NewRegistry(f *fetch.Fetcher) *Registry {
	r := &Registry{fetch: f, scrapers: make(map[string]Scraper)}
	if config.Cfg.ChannelTF1 {
		r.register(NewTF1(f))
	}
	if config.Cfg.ChannelM6 {
		r.register(NewM6(f))
	}
	return r
}

func (r *Registry) register(s Scraper) {
	r.scrapers[s.Name()] = s
	r.order = append(r.order, s.Name())
}

// Get returns the scraper for a channel name.
func (r *Registry) Get(name string) (Scraper, error) {
	s, ok := r.scrapers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return s, nil
}

// All returns the registered scrapers in registration order.
func (r *Registry) All() []Scraper {
	out := make([]Scraper, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.scrapers[name])
	}
	return out
}

// Fetcher returns the shared outbound fetcher.
func (r *Registry) Fetcher() *fetch.Fetcher { return r.fetch }

// ListAllGames scrapes every registered channel concurrently. A failing
// channel is logged and skipped; whatever subset succeeded is returned.
func (r *Registry) ListAllGames() []models.GameListing {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result []models.GameListing
	)

	for _, s := range r.All() {
		wg.Add(1)
		go func(s Scraper) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logger.Warn("channels: panic", map[string]interface{}{
						"channel": s.Name(), "error": fmt.Sprintf("%v", rec),
					})
				}
			}()

			games, err := s.ListActiveGames()
			if err != nil {
				logger.Warn("channels: scrape failed", map[string]interface{}{
					"channel": s.Name(), "error": err.Error(),
				})
				return
			}

			mu.Lock()
			result = append(result, games...)
			mu.Unlock()
		}(s)
	}

	wg.Wait()
	return result
}

// --- Shared helpers ---

var gameKeywords = []string{"règlement", "reglement", "jeu"}

func containsGameKeyword(textLower string) bool {
	for _, kw := range gameKeywords {
		if strings.Contains(textLower, kw) {
			return true
		}
	}
	return false
}

// classifyGameType derives the entry mode from listing text.
func classifyGameType(textLower string) models.GameType {
	sms := strings.Contains(textLower, "sms")
	call := strings.Contains(textLower, "appel") ||
		strings.Contains(textLower, "téléphone") ||
		strings.Contains(textLower, "audiotel") ||
		strings.Contains(textLower, "08 9")
	web := strings.Contains(textLower, "internet") || strings.Contains(textLower, "web")

	switch {
	case sms && call:
		return models.GameMixed
	case sms:
		return models.GameSMS
	case call:
		return models.GamePhoneCall
	case web:
		return models.GameWeb
	default:
		return models.GameOther
	}
}

// ruleDetails fetches a rule document (PDF or HTML), locates its refund
// clause and extracts the structured refund info. Recomputed on every
// call; the core caches nothing.
func ruleDetails(f *fetch.Fetcher, docURL string) (models.RefundInfo, error) {
	body, err := f.Get(docURL)
	if err != nil {
		return models.RefundInfo{}, err
	}

	text := documentText(body)
	section, found := rules.LocateRefundSection(text)
	return rules.ExtractRefundInfo(section, found), nil
}

// documentText flattens a fetched rule document to plain text, whatever
// its format turned out to be.
func documentText(body []byte) string {
	if pdftext.IsPDF(body) {
		text, err := pdftext.Extract(body)
		if err != nil {
			logger.Warn("channels: pdf extraction failed", map[string]interface{}{"error": err.Error()})
			return ""
		}
		return text
	}
	return flattenHTML(body)
}

// flattenHTML returns the text content of an HTML document.
func flattenHTML(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return string(body)
	}
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return sb.String()
}

// absolutize resolves a scraped href against the channel's base URL.
func absolutize(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		return base + "/" + href
	}
	return base + href
}
