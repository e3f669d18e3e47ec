package invoice

import (
	"net/http"
	"net/url"
	"time"

	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"
)

// Session attaches operator credentials to an outbound request. The
// login/cookie flow itself lives in the mobile client; the pipeline only
// ever sees an opaque handle.
type Session interface {
	Apply(req *http.Request)
}

// CookieSession is the usual Session: a raw Cookie header value captured
// by the client after operator login.
type CookieSession struct {
	Cookie string
}

func (s CookieSession) Apply(req *http.Request) {
	if s.Cookie != "" {
		req.Header.Set("Cookie", s.Cookie)
	}
}

// Pipeline reconstructs a normalized invoice list from an operator
// response body of unknown shape. Strategies run in a fixed order, from
// the most trustworthy source shape to the most fragile heuristic, and
// the first non-empty result wins. That ordering is a correctness
// requirement, not an optimization.
type Pipeline struct {
	client  *http.Client
	ua      string
	baseURL string
	session Session
}

// NewPipeline builds a pipeline against the given operator API base URL.
// It reuses the shared fetcher's client and User-Agent but builds its
// own requests, since session credentials are attached per call.
// session may be nil; the direct-fetch fallback then runs without
// credentials and simply yields nothing on a rejected request.
func NewPipeline(f *fetch.Fetcher, baseURL string, session Session) *Pipeline {
	return &Pipeline{
		client:  f.Client(),
		ua:      f.UserAgent(),
		baseURL: baseURL,
		session: session,
	}
}

type strategy struct {
	name string
	run  func(body, phone string) []models.InvoiceRecord
}

// Extract runs the strategy chain over an already-retrieved response
// body. Parse failures inside a strategy degrade to an empty result and
// fall through; they never propagate. An empty final result is a valid
// outcome, distinct from a transport error (which the caller of the
// initial request handles before ever reaching Extract).
func (p *Pipeline) Extract(body, phone string) []models.InvoiceRecord {
	strategies := []strategy{
		{"json", p.fromStructuredJSON},
		{"regex", p.fromRegex},
		{"direct", p.fromDirectFetch},
		{"html", p.fromHTMLAnchors},
	}

	for _, s := range strategies {
		records := s.run(body, phone)
		if len(records) > 0 {
			logger.Info("invoice: strategy matched", map[string]interface{}{
				"strategy": s.name, "count": len(records), "phone": phone,
			})
			return records
		}
		logger.Debug("invoice: strategy empty", map[string]interface{}{"strategy": s.name})
	}

	logger.Info("invoice: no strategy produced results", map[string]interface{}{"phone": phone})
	return nil
}

// baseHost returns scheme://host of the operator base URL, used to
// absolutize relative PDF links scraped from HTML.
func (p *Pipeline) baseHost() string {
	u, err := url.Parse(p.baseURL)
	if err != nil || u.Host == "" {
		return p.baseURL
	}
	return u.Scheme + "://" + u.Host
}

func newRecord(id, phone string, date time.Time, amount float64, pdfURL string) models.InvoiceRecord {
	return models.InvoiceRecord{
		ID:          id,
		PhoneNumber: phone,
		Date:        date,
		Amount:      amount,
		PDFURL:      pdfURL,
		Status:      models.InvoiceNew,
	}
}
