package invoice

import (
	"fmt"
	"io"
	"net/http"

	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/pdftext"
)

// Download is a retrieved invoice PDF. Suspect marks payloads that lack
// the %PDF magic number: the bytes are still returned so callers can
// persist them for diagnosing malformed operator responses, but they
// must be flagged rather than treated as a valid invoice.
type Download struct {
	Data        []byte
	ContentType string
	Suspect     bool
}

// DownloadPDF retrieves invoice bytes from the operator. A transport
// failure or non-2xx status is a real error; a wrong payload is not.
func (p *Pipeline) DownloadPDF(rawURL string) (*Download, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)
	if p.session != nil {
		p.session.Apply(req)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, err
	}

	dl := &Download{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Suspect:     !pdftext.IsPDF(data),
	}
	if dl.Suspect {
		logger.Warn("invoice: payload missing %PDF magic, kept for diagnosis", map[string]interface{}{
			"url": rawURL, "content_type": dl.ContentType, "bytes": len(data),
		})
	}
	return dl, nil
}
