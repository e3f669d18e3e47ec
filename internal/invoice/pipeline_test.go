package invoice

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"tvgamerefund/internal/config"
	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/models"
)

func init() {
	config.Load()
}

func TestExtract_StructuredJSON(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/api", nil)
	body := `{"invoices":[{"id":"abc","date":"2024-03-01","amount":12.5,"pdfUrl":"https://operator.example/abc.pdf"}]}`

	records := p.Extract(body, "0612345678")

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.ID != "abc" {
		t.Errorf("ID = %q, want abc", r.ID)
	}
	if r.Amount != 12.5 {
		t.Errorf("Amount = %v, want 12.5", r.Amount)
	}
	if r.PDFURL != "https://operator.example/abc.pdf" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
	if r.PhoneNumber != "0612345678" {
		t.Errorf("PhoneNumber = %q", r.PhoneNumber)
	}
	if !r.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", r.Date)
	}
	if r.Status != models.InvoiceNew {
		t.Errorf("Status = %q, want NEW", r.Status)
	}
}

func TestExtract_JSONSkipsInvalidElements(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/api", nil)
	body := `{"invoices":[
		{"id":"","date":"2024-03-01","pdfUrl":"https://x/a.pdf"},
		{"id":"b","date":"not-a-date","pdfUrl":"https://x/b.pdf"},
		{"id":"c","date":"2024-04-01","pdfUrl":"https://x/c.pdf"}
	]}`

	records := p.Extract(body, "0612345678")
	if len(records) != 1 || records[0].ID != "c" {
		t.Fatalf("expected only the valid element, got %+v", records)
	}
}

func TestExtract_RegexFallback(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/api", nil)
	// Valid JSON but not the documented envelope, so the first strategy
	// yields nothing and the regex scan takes over.
	body := `{"data":{"items":[{"id":"f-77","date":"2024-02-15","amount":3.20}]}}`

	records := p.Extract(body, "0612345678")

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.ID != "f-77" {
		t.Errorf("ID = %q, want f-77", r.ID)
	}
	if r.Amount != 3.20 {
		t.Errorf("Amount = %v, want 3.20", r.Amount)
	}
	if r.PDFURL != "https://operator.example/api/invoice/f-77" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
}

func TestExtract_JSONWinsOverRegex(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/api", nil)
	// The documented envelope also matches the regex triple; the
	// structured parse must win, which shows in the pdfUrl source.
	body := `{"invoices":[{"id":"abc","date":"2024-03-01","amount":5.0,"pdfUrl":"https://real.example/abc.pdf"}]}`

	records := p.Extract(body, "06")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].PDFURL != "https://real.example/abc.pdf" {
		t.Errorf("structured pdfUrl should win over the synthesized one, got %q", records[0].PDFURL)
	}
}

func TestExtract_HTMLAnchors(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/account/v2/api/SI", nil)
	body := `<html><body>
		<p>Facture du 01/03/2024</p>
		<a href="/account/v2/api/SI/invoice/99">Télécharger</a>
		<a href="https://cdn.example/facture-avril.pdf">Facture du 01/04/2024</a>
		<a href="/help">Aide</a>
	</body></html>`

	records := p.Extract(body, "0612345678")

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}
	if records[0].ID != "html_0" || records[1].ID != "html_1" {
		t.Errorf("ids = %q, %q", records[0].ID, records[1].ID)
	}
	if records[0].PDFURL != "https://operator.example/account/v2/api/SI/invoice/99" {
		t.Errorf("relative href should be absolutized against the host, got %q", records[0].PDFURL)
	}
	if records[1].PDFURL != "https://cdn.example/facture-avril.pdf" {
		t.Errorf("absolute href should pass through, got %q", records[1].PDFURL)
	}
	if !records[0].Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first record should pair with the first date, got %v", records[0].Date)
	}
	if records[0].Amount != 0 {
		t.Errorf("scraped anchors carry no amount, got %v", records[0].Amount)
	}
}

func TestExtract_DirectFetch(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	p := NewPipeline(fetch.New(), srv.URL, CookieSession{Cookie: "SESSION=tok"})
	// Body matches neither the envelope nor the regex, and holds no
	// anchors, so the direct fetch is the only strategy that can hit.
	records := p.Extract("nothing recognizable here", "0612345678")

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "direct_1" {
		t.Errorf("ID = %q, want direct_1", records[0].ID)
	}
	if records[0].PDFURL != srv.URL+"/invoices/0612345678" {
		t.Errorf("PDFURL = %q", records[0].PDFURL)
	}
	if gotCookie != "SESSION=tok" {
		t.Errorf("session cookie not applied, got %q", gotCookie)
	}
}

func TestExtract_EmptyResultIsValid(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/api", nil)
	records := p.Extract("plain text without any invoice evidence", "06")
	if records != nil {
		t.Errorf("expected nil result, got %+v", records)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	p := NewPipeline(fetch.New(), "https://operator.example/api", nil)
	body := `{"invoices":[{"id":"abc","date":"2024-03-01","amount":12.5,"pdfUrl":"https://x/abc.pdf"}]}`

	first := p.Extract(body, "06")
	second := p.Extract(body, "06")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same input must produce the same records:\n%+v\n%+v", first, second)
	}
}
