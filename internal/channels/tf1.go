package channels

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"

	"github.com/PuerkitoBio/goquery"
)

const (
	tf1Name     = "tf1"
	tf1BaseURL  = "https://www.tf1.fr"
	tf1RulesURL = "https://www.tf1.fr/reglements-jeux"
	tf1GamesURL = "https://www.tf1.fr/jeux-tv"
)

// Seed values applied to every TF1 listing until the per-game detail
// scrape overrides them.
var tf1Defaults = channelDefaults{
	Phone:   "3680",
	Cost:    0.80,
	Address: "TF1 - Service Remboursement Jeux TV, 1 quai du Point du Jour, 92656 Boulogne-Billancourt Cedex",
}

// channelDefaults are the per-broadcaster seed values.
type channelDefaults struct {
	Phone   string
	Cost    float64
	Address string
}

var publishedDateRe = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)

// TF1 scrapes tf1.fr rule and game listing pages.
type TF1 struct {
	fetch  *fetch.Fetcher
	enrich *enricher
}

func NewTF1(f *fetch.Fetcher) *TF1 {
	return &TF1{fetch: f, enrich: &enricher{fetch: f}}
}

func (t *TF1) Name() string { return tf1Name }

func (t *TF1) ListRules() ([]models.RuleDocument, error) {
	body, err := t.fetch.Get(tf1RulesURL)
	if err != nil {
		return nil, err
	}
	return t.parseRules(body), nil
}

func (t *TF1) parseRules(body []byte) []models.RuleDocument {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("tf1: rules page parse failed", map[string]interface{}{"error": err.Error()})
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
			Link:      absolutize(tf1BaseURL, href),
			Channel:   tf1Name,
			Published: publishedNear(sel),
		})
	})
	return docs
}

func (t *TF1) RuleDetails(docURL string) (models.RefundInfo, error) {
	return ruleDetails(t.fetch, docURL)
}

func (t *TF1) ListActiveGames() ([]models.GameListing, error) {
	body, err := t.fetch.Get(tf1GamesURL)
	if err != nil {
		return nil, err
	}
	games := t.parseGames(body)
	t.enrich.Run(games)
	return games, nil
}

func (t *TF1) parseGames(body []byte) []models.GameListing {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("tf1: games page parse failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var games []models.GameListing
	seen := make(map[string]bool)

	doc.Find("article, div.card-jeu").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find("h2, h3").First().Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("a").First().Text())
		}
		entryLower := strings.ToLower(sel.Text())
		if title == "" || !containsGameKeyword(entryLower) {
			return
		}

		showID := models.NormalizeShowID(title)
		id := tf1Name + "-" + showID
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
			Channel:       tf1Name,
			PhoneNumber:   tf1Defaults.Phone,
			Cost:          tf1Defaults.Cost,
			RefundAddress: tf1Defaults.Address,
			RulesURL:      absolutize(tf1BaseURL, link),
			ImageURL:      absolutize(tf1BaseURL, img),
		})
	})
	return games
}

// isRuleLink keeps anchors that point at a rule document.
func isRuleLink(href, title string) bool {
	h := strings.ToLower(href)
	t := strings.ToLower(title)
	return strings.Contains(h, ".pdf") ||
		strings.Contains(h, "reglement") ||
		strings.Contains(t, "règlement") || strings.Contains(t, "reglement")
}

// publishedNear looks for a DD/MM/YYYY date in the anchor's parent text.
func publishedNear(sel *goquery.Selection) *time.Time {
	parent := sel.Parent()
	if parent == nil {
		return nil
	}
	m := publishedDateRe.FindStringSubmatch(parent.Text())
	if len(m) != 4 {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &d
}
