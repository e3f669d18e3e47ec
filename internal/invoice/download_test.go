package invoice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tvgamerefund/internal/fetch"
)

func TestDownloadPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 invoice content"))
	}))
	defer srv.Close()

	p := NewPipeline(fetch.New(), srv.URL, nil)
	dl, err := p.DownloadPDF(srv.URL + "/invoice/abc")
	if err != nil {
		t.Fatalf("DownloadPDF: %v", err)
	}
	if dl.Suspect {
		t.Error("payload with %PDF magic must not be suspect")
	}
	if !strings.HasPrefix(string(dl.Data), "%PDF") {
		t.Errorf("unexpected payload: %q", dl.Data[:8])
	}
}

func TestDownloadPDF_SuspectPayloadStillReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>session expired</html>"))
	}))
	defer srv.Close()

	p := NewPipeline(fetch.New(), srv.URL, nil)
	dl, err := p.DownloadPDF(srv.URL + "/invoice/abc")
	if err != nil {
		t.Fatalf("a wrong payload is not an error: %v", err)
	}
	if !dl.Suspect {
		t.Error("payload without %PDF magic must be flagged suspect")
	}
	if len(dl.Data) == 0 {
		t.Error("suspect bytes must still be returned")
	}
}

func TestDownloadPDF_HTTPErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewPipeline(fetch.New(), srv.URL, nil)
	if _, err := p.DownloadPDF(srv.URL + "/invoice/abc"); err == nil {
		t.Fatal("non-2xx status must surface as an error")
	}
}
