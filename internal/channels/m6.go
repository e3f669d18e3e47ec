package channels

import (
	"bytes"
	"strings"

	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"

	"github.com/PuerkitoBio/goquery"
)

const (
	m6Name     = "m6"
	m6BaseURL  = "https://www.m6.fr"
	m6RulesURL = "https://etvous.m6.fr/reglements-jeux-concours"
	m6GamesURL = "https://www.m6.fr/jeux-concours"
)

var m6Defaults = channelDefaults{
	Phone:   "71414",
	Cost:    0.65,
	Address: "M6 - Service Remboursement Jeux, 89 avenue Charles de Gaulle, 92575 Neuilly-sur-Seine Cedex",
}

// M6 scrapes m6.fr rule and game listing pages. M6 marks game entries
// with a "jeu-concours" class instead of keywords in the visible text.
type M6 struct {
	fetch  *fetch.Fetcher
	enrich *enricher
}

func NewM6(f *fetch.Fetcher) *M6 {
	return &M6{fetch: f, enrich: &enricher{fetch: f}}
}

func (m *M6) Name() string { return m6Name }

func (m *M6) ListRules() ([]models.RuleDocument, error) {
	body, err := m.fetch.Get(m6RulesURL)
	if err != nil {
		return nil, err
	}
	return m.parseRules(body), nil
}

func (m *M6) parseRules(body []byte) []models.RuleDocument {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("m6: rules page parse failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var docs []models.RuleDocument
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if !isRuleLink(href, title) {
			return
		}
		docs = append(docs, models.RuleDocument{
			Title:     title,
			Link:      absolutize(m6BaseURL, href),
			Channel:   m6Name,
			Published: publishedNear(sel),
		})
	})
	return docs
}

func (m *M6) RuleDetails(docURL string) (models.RefundInfo, error) {
	return ruleDetails(m.fetch, docURL)
}

func (m *M6) ListActiveGames() ([]models.GameListing, error) {
	body, err := m.fetch.Get(m6GamesURL)
	if err != nil {
		return nil, err
	}
	games := m.parseGames(body)
	m.enrich.Run(games)
	return games, nil
}

func (m *M6) parseGames(body []byte) []models.GameListing {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("m6: games page parse failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var games []models.GameListing
	seen := make(map[string]bool)

	doc.Find("li.jeu-concours, article.jeu, article").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find("h2, h3").First().Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("a").First().Text())
		}
		entryLower := strings.ToLower(sel.Text())
		class, _ := sel.Attr("class")
		marked := strings.Contains(class, "jeu")
		if title == "" || (!marked && !containsGameKeyword(entryLower)) {
			return
		}

		showID := models.NormalizeShowID(title)
		id := m6Name + "-" + showID
		if seen[id] {
			return
		}
		seen[id] = true

		link, _ := sel.Find("a").First().Attr("href")
		img, _ := sel.Find("img").First().Attr("src")

		games = append(games, models.GameListing{
			ID:            id,
			ShowID:        showID,
			Title:         title,
			Description:   strings.TrimSpace(sel.Find("p").First().Text()),
			Type:          classifyGameType(entryLower),
			Channel:       m6Name,
			PhoneNumber:   m6Defaults.Phone,
			Cost:          m6Defaults.Cost,
			RefundAddress: m6Defaults.Address,
			RulesURL:      absolutize(m6BaseURL, link),
			ImageURL:      absolutize(m6BaseURL, img),
		})
	})
	return games
}
