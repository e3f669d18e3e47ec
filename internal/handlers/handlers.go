package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tvgamerefund/internal/channels"
	"tvgamerefund/internal/claim"
	"tvgamerefund/internal/config"
	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/invoice"
	"tvgamerefund/internal/linkcheck"
	"tvgamerefund/internal/models"
	"tvgamerefund/internal/rules"
	sentryutil "tvgamerefund/internal/sentry"
)

var startTime = time.Now()

var (
	registry *channels.Registry
	fetcher  *fetch.Fetcher
)

// Setup wires the channel registry and the shared fetcher into the
// handlers. Call once at boot.
func Setup(reg *channels.Registry, f *fetch.Fetcher) {
	registry = reg
	fetcher = f
}

// ---------- Last scrape time tracking ----------

var (
	lastScrapeTime time.Time
	lastScrapeMu   sync.RWMutex
)

// SetLastScrape records the time of the most recent data update.
func SetLastScrape(t time.Time) {
	lastScrapeMu.Lock()
	lastScrapeTime = t
	lastScrapeMu.Unlock()
}

func getLastScrape() time.Time {
	lastScrapeMu.RLock()
	defer lastScrapeMu.RUnlock()
	if lastScrapeTime.IsZero() {
		return startTime
	}
	return lastScrapeTime
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ---------- Games ----------

// GamesHandler serves GET /api/games. Returns the cached listings from
// the last scrape cycle, optionally filtered by ?channel=.
func GamesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	games := channels.CachedGames()
	linkcheck.ApplyStatus(games)

	if ch := r.URL.Query().Get("channel"); ch != "" {
		filtered := games[:0]
		for _, g := range games {
			if strings.EqualFold(g.Channel, ch) {
				filtered = append(filtered, g)
			}
		}
		games = filtered
	}

	if games == nil {
		games = []models.GameListing{}
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, map[string]interface{}{
		"games":       games,
		"count":       len(games),
		"last_update": getLastScrape().Format(time.RFC3339),
	})
}

// ---------- Rules ----------

// RulesHandler serves GET /api/rules?channel=. Lists the rule documents
// currently published by a channel.
func RulesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ch := r.URL.Query().Get("channel")
	if ch == "" {
		http.Error(w, "Missing channel parameter", http.StatusBadRequest)
		return
	}

	s, err := registry.Get(ch)
	if err != nil {
		if errors.Is(err, channels.ErrUnknownChannel) {
			http.Error(w, "Unknown channel: "+ch, http.StatusNotFound)
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	docs, err := s.ListRules()
	if err != nil {
		sentryutil.CaptureError(err, map[string]string{"handler": "rules", "channel": ch})
		http.Error(w, "Upstream fetch failed", http.StatusBadGateway)
		return
	}
	if docs == nil {
		docs = []models.RuleDocument{}
	}

	w.Header().Set("Cache-Control", "public, max-age=600")
	writeJSON(w, map[string]interface{}{"channel": s.Name(), "rules": docs, "count": len(docs)})
}

// RefundInfoHandler serves GET /api/refund-info?channel=&url=. Fetches a
// rule document and extracts its refund procedure.
func RefundInfoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ch := r.URL.Query().Get("channel")
	docURL := r.URL.Query().Get("url")
	if ch == "" || docURL == "" {
		http.Error(w, "Missing channel or url parameter", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(docURL, "http://") && !strings.HasPrefix(docURL, "https://") {
		http.Error(w, "Invalid url parameter", http.StatusBadRequest)
		return
	}

	s, err := registry.Get(ch)
	if err != nil {
		if errors.Is(err, channels.ErrUnknownChannel) {
			http.Error(w, "Unknown channel: "+ch, http.StatusNotFound)
			return
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	info, err := s.RuleDetails(docURL)
	if err != nil {
		sentryutil.CaptureError(err, map[string]string{"handler": "refund-info", "channel": ch})
		http.Error(w, "Upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, info)
}

// ---------- Invoices ----------

type parseInvoicesRequest struct {
	Body          string `json:"body"`
	PhoneNumber   string `json:"phone_number"`
	SessionCookie string `json:"session_cookie,omitempty"`
}

// ParseInvoicesHandler serves POST /api/invoices/parse. The client
// uploads the raw operator response it captured; the pipeline extracts
// whatever invoice records it can recognize.
func ParseInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req parseInvoicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Body == "" {
		http.Error(w, "Missing body field", http.StatusBadRequest)
		return
	}

	var session invoice.Session
	if req.SessionCookie != "" {
		session = invoice.CookieSession{Cookie: req.SessionCookie}
	}

	p := invoice.NewPipeline(fetcher, config.Cfg.OperatorBaseURL, session)
	records := p.Extract(req.Body, req.PhoneNumber)
	if records == nil {
		records = []models.InvoiceRecord{}
	}

	writeJSON(w, map[string]interface{}{"invoices": records, "count": len(records)})
}

type downloadInvoiceRequest struct {
	URL           string `json:"url"`
	SessionCookie string `json:"session_cookie,omitempty"`
}

// DownloadInvoiceHandler serves POST /api/invoices/download. Proxies one
// invoice PDF from the operator. Payloads without the PDF magic number
// are still returned, flagged through the X-Invoice-Suspect header, so
// the client can keep them for diagnosis.
func DownloadInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req downloadInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		http.Error(w, "Invalid url field", http.StatusBadRequest)
		return
	}

	var session invoice.Session
	if req.SessionCookie != "" {
		session = invoice.CookieSession{Cookie: req.SessionCookie}
	}

	p := invoice.NewPipeline(fetcher, config.Cfg.OperatorBaseURL, session)
	dl, err := p.DownloadPDF(req.URL)
	if err != nil {
		sentryutil.CaptureError(err, map[string]string{"handler": "download-invoice"})
		http.Error(w, "Download failed", http.StatusBadGateway)
		return
	}

	ct := dl.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	w.Header().Set("Content-Type", ct)
	if dl.Suspect {
		w.Header().Set("X-Invoice-Suspect", "true")
	}
	w.Write(dl.Data)
}

// ---------- Claim letter ----------

// ClaimLetterHandler serves POST /api/claim-letter. Renders a formal
// refund-request letter as a PDF from the posted claim details.
func ClaimLetterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	info := models.RefundInfo{
		IsRefundable: true,
		DeadlineDays: rules.DefaultDeadlineDays,
	}

	data, err := claim.BuildLetter(req, info)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="demande-remboursement-%s.pdf"`, time.Now().Format("2006-01-02")))
	w.Write(data)
}

// ---------- Health / status ----------

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(startTime)
	writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(uptime.Seconds()),
		"uptime_human":   formatDuration(uptime),
		"game_count":     len(channels.CachedGames()),
		"last_update":    getLastScrape().Format(time.RFC3339),
	})
}

// StatusHandler returns scraper state, circuits, cache stats and the
// totals from the last rule-link check run.
func StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	status := channels.Status(registry)
	status["link_check"] = linkcheck.Counters()
	writeJSON(w, status)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
