package linkcheck

import (
	"encoding/json"
	"net/url"

	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
)

type waybackResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// TryWaybackRecovery attempts to find an archived version of the URL via
// the Wayback Machine. Returns the archived URL and true if found.
func TryWaybackRecovery(f *fetch.Fetcher, rawURL string) (string, bool) {
	apiURL := "https://archive.org/wayback/available?url=" + url.QueryEscape(rawURL)

	body, err := f.Get(apiURL)
	if err != nil {
		logger.Warn("wayback: request failed", map[string]interface{}{
			"url": rawURL, "error": err.Error(),
		})
		return "", false
	}

	var wb waybackResponse
	if err := json.Unmarshal(body, &wb); err != nil {
		return "", false
	}

	snap := wb.ArchivedSnapshots.Closest
	if snap.Available && snap.URL != "" {
		logger.Info("wayback: found archived snapshot", map[string]interface{}{
			"original": rawURL, "archived": snap.URL, "timestamp": snap.Timestamp,
		})
		return snap.URL, true
	}

	return "", false
}
