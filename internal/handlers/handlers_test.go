package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tvgamerefund/internal/channels"
	"tvgamerefund/internal/config"
	"tvgamerefund/internal/fetch"
)

func init() {
	config.Load()
	f := fetch.New()
	Setup(channels.NewRegistry(f), f)
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	HealthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if result["status"] != "ok" {
		t.Error("Health status should be ok")
	}
}

func TestGamesHandler_EmptyCache(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	w := httptest.NewRecorder()

	GamesHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result struct {
		Games []interface{} `json:"games"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if result.Games == nil {
		t.Error("games must serialize as an empty array, not null")
	}
	if result.Count != 0 {
		t.Errorf("Count = %d, want 0", result.Count)
	}
}

func TestGamesHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/games", nil)
	w := httptest.NewRecorder()

	GamesHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", w.Code)
	}
}

func TestRulesHandler_UnknownChannel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rules?channel=arte", nil)
	w := httptest.NewRecorder()

	RulesHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown channel, got %d", w.Code)
	}
}

func TestRulesHandler_MissingChannel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	w := httptest.NewRecorder()

	RulesHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestRefundInfoHandler_BadParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/refund-info?channel=tf1", nil)
	w := httptest.NewRecorder()
	RefundInfoHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without url, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/refund-info?channel=tf1&url=ftp://x", nil)
	w = httptest.NewRecorder()
	RefundInfoHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for non-http url, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/refund-info?channel=arte&url=https://x/a.pdf", nil)
	w = httptest.NewRecorder()
	RefundInfoHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown channel, got %d", w.Code)
	}
}

func TestParseInvoicesHandler(t *testing.T) {
	body := `{"body":"{\"invoices\":[{\"id\":\"abc\",\"date\":\"2024-03-01\",\"amount\":12.5,\"pdfUrl\":\"https://x/abc.pdf\"}]}","phone_number":"0612345678"}`
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/parse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	ParseInvoicesHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result struct {
		Count    int `json:"count"`
		Invoices []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"invoices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if result.Count != 1 || len(result.Invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %+v", result)
	}
	if result.Invoices[0].ID != "abc" || result.Invoices[0].Status != "NEW" {
		t.Errorf("unexpected record: %+v", result.Invoices[0])
	}
}

func TestParseInvoicesHandler_MissingBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/parse", strings.NewReader(`{"phone_number":"06"}`))
	w := httptest.NewRecorder()

	ParseInvoicesHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestClaimLetterHandler(t *testing.T) {
	body := `{"game_title":"Les 12 Coups de Midi","channel":"tf1","played_at":"2024-03-01","cost":0.8,
		"refund_address":"TF1 - Service Remboursement, 92656 Boulogne-Billancourt",
		"claimant_name":"Jean Dupont","claimant_address":"3 rue des Lilas, 75011 Paris"}`
	req := httptest.NewRequest(http.MethodPost, "/api/claim-letter", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	ClaimLetterHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Error("response body should be a PDF")
	}
}

func TestClaimLetterHandler_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/claim-letter", strings.NewReader(`{"game_title":"X"}`))
	w := httptest.NewRecorder()

	ClaimLetterHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for incomplete claim, got %d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	StatusHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if _, ok := result["game_count"]; !ok {
		t.Error("status should report game_count")
	}
	if _, ok := result["link_check"]; !ok {
		t.Error("status should report link_check counters")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d within burst should pass, got %d", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request over burst should be limited, got %d", w.Code)
	}

	// A different client keeps its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("other client should not be limited, got %d", w.Code)
	}
}
