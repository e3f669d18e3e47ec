package invoice

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"
	"tvgamerefund/internal/pdftext"

	"golang.org/x/net/html"
)

const invoiceDateLayout = "2006-01-02"

// --- Strategy 1: structured JSON ---

type invoiceEnvelope struct {
	Invoices []struct {
		ID     string   `json:"id"`
		Date   string   `json:"date"`
		Amount *float64 `json:"amount"`
		PDFURL string   `json:"pdfUrl"`
	} `json:"invoices"`
}

// fromStructuredJSON parses the body as the operator's documented shape:
// a top-level "invoices" array. Elements missing id, date or pdfUrl are
// skipped. Malformed JSON yields an empty result, not an error.
func (p *Pipeline) fromStructuredJSON(body, phone string) []models.InvoiceRecord {
	var env invoiceEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil
	}

	var records []models.InvoiceRecord
	for _, inv := range env.Invoices {
		if inv.ID == "" || inv.PDFURL == "" {
			continue
		}
		date, err := time.Parse(invoiceDateLayout, inv.Date)
		if err != nil {
			continue
		}
		amount := 0.0
		if inv.Amount != nil {
			amount = *inv.Amount
		}
		records = append(records, newRecord(inv.ID, phone, date, amount, inv.PDFURL))
	}
	return records
}

// --- Strategy 2: regex over the raw body ---

var invoiceTripleRe = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"\s*,\s*"date"\s*:\s*"([^"]+)"\s*,\s*"amount"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)

// fromRegex scans for repeating id/date/amount triples when the body is
// JSON-like but does not match the documented envelope. pdfUrl is not
// present in that shape, so it is synthesized from the API base.
func (p *Pipeline) fromRegex(body, phone string) []models.InvoiceRecord {
	matches := invoiceTripleRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	var records []models.InvoiceRecord
	for _, m := range matches {
		date, err := time.Parse(invoiceDateLayout, m[2])
		if err != nil {
			continue
		}
		amount, _ := strconv.ParseFloat(m[3], 64)
		pdfURL := p.baseURL + "/invoice/" + m[1]
		records = append(records, newRecord(m[1], phone, date, amount, pdfURL))
	}
	return records
}

// --- Strategy 3: direct per-line fetch ---

// fromDirectFetch issues one request to the per-phone-number invoice
// endpoint and, if the answer looks like a PDF payload, synthesizes a
// single last-resort record with id "direct_1" and the current date.
// Any failure here is a strategy miss, never a pipeline error.
func (p *Pipeline) fromDirectFetch(_, phone string) []models.InvoiceRecord {
	endpoint := p.baseURL + "/invoices/" + phone

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.ua)
	if p.session != nil {
		p.session.Apply(req)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Debug("invoice: direct fetch failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	looksLikePDF := strings.Contains(contentType, "pdf") ||
		strings.Contains(contentType, "octet-stream") ||
		strings.Contains(string(raw), ".pdf") ||
		pdftext.IsPDF(raw)
	if !looksLikePDF {
		return nil
	}

	today := time.Now().Truncate(24 * time.Hour)
	return []models.InvoiceRecord{newRecord("direct_1", phone, today, 0, endpoint)}
}

// --- Strategy 4: HTML anchor scraping ---

var (
	invoiceHrefRe = regexp.MustCompile(`(?i)/invoice/|facture[^"']*\.pdf`)
	invoiceDateRe = regexp.MustCompile(`(?i)facture\s+du\s+(\d{2})/(\d{2})/(\d{4})`)
)

// fromHTMLAnchors is the last-resort heuristic: collect anchors whose
// href looks like an invoice PDF link and pair each, by match order,
// with a "Facture du DD/MM/YYYY" date found anywhere in the same body.
// The positional pairing silently mis-pairs when the two lists diverge;
// that is the accepted behavior of this fallback.
func (p *Pipeline) fromHTMLAnchors(body, phone string) []models.InvoiceRecord {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var hrefs []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && invoiceHrefRe.MatchString(attr.Val) {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	if len(hrefs) == 0 {
		return nil
	}

	dates := invoiceDateRe.FindAllStringSubmatch(body, -1)

	var records []models.InvoiceRecord
	for i, href := range hrefs {
		var date time.Time
		if i < len(dates) {
			day, _ := strconv.Atoi(dates[i][1])
			month, _ := strconv.Atoi(dates[i][2])
			year, _ := strconv.Atoi(dates[i][3])
			date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}

		pdfURL := href
		if !strings.HasPrefix(href, "http") {
			pdfURL = p.baseHost() + href
		}

		id := "html_" + strconv.Itoa(i)
		records = append(records, newRecord(id, phone, date, 0, pdfURL))
	}
	return records
}
