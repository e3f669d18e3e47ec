package linkcheck

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"
	sentryutil "tvgamerefund/internal/sentry"
)

// linkStatus stores verification results by game ID. RulesURL is set
// when a dead link was replaced by an archive snapshot; ApplyStatus
// propagates it so served listings point at the surviving copy.
type linkStatus struct {
	Verified   bool
	VerifiedAt string
	RulesURL   string
}

var statusCache sync.Map // map[string]linkStatus

var (
	totalChecked  int64
	verifiedCount int64
	brokenCount   int64
	usingWayback  int64
)

// ApplyStatus applies cached rule-link verification results to listings.
func ApplyStatus(games []models.GameListing) {
	for i := range games {
		if v, ok := statusCache.Load(games[i].ID); ok {
			s := v.(linkStatus)
			games[i].RulesVerified = s.Verified
			games[i].RulesVerifiedAt = s.VerifiedAt
			if s.RulesURL != "" {
				games[i].RulesURL = s.RulesURL
			}
		}
	}
}

// Counters returns the totals from the last full check run.
func Counters() map[string]int64 {
	return map[string]int64{
		"checked":  atomic.LoadInt64(&totalChecked),
		"verified": atomic.LoadInt64(&verifiedCount),
		"broken":   atomic.LoadInt64(&brokenCount),
		"wayback":  atomic.LoadInt64(&usingWayback),
	}
}

func resetCounters() {
	atomic.StoreInt64(&totalChecked, 0)
	atomic.StoreInt64(&verifiedCount, 0)
	atomic.StoreInt64(&brokenCount, 0)
	atomic.StoreInt64(&usingWayback, 0)
}

// CheckAllRules verifies every listing's rule-document link with a HEAD
// request. Broadcasters routinely take rule PDFs down mid-season, so a
// broken link falls back to a Wayback Machine snapshot when one exists.
// Returns the number of broken links found.
func CheckAllRules(f *fetch.Fetcher, games []*models.GameListing) int {
	broken := 0
	today := time.Now().Format("2006-01-02")
	resetCounters()

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, 5) // max 5 concurrent checks

	for _, g := range games {
		if g.RulesURL == "" {
			continue
		}
		atomic.AddInt64(&totalChecked, 1)
		wg.Add(1)
		go func(game *models.GameListing) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ok, status := f.Head(game.RulesURL)
			game.RulesVerifiedAt = today

			if ok {
				game.RulesVerified = true
				statusCache.Store(game.ID, linkStatus{Verified: true, VerifiedAt: today})
				atomic.AddInt64(&verifiedCount, 1)
				return
			}

			game.RulesVerified = false
			st := linkStatus{Verified: false, VerifiedAt: today}

			// Rule text survives in the archive even after takedown.
			if waybackURL, found := TryWaybackRecovery(f, game.RulesURL); found {
				game.RulesURL = waybackURL
				st.RulesURL = waybackURL
				atomic.AddInt64(&usingWayback, 1)
				logger.Warn("linkcheck: using wayback", map[string]interface{}{
					"game_id": game.ID, "wayback": waybackURL,
				})
			}
			statusCache.Store(game.ID, st)

			mu.Lock()
			broken++
			mu.Unlock()
			atomic.AddInt64(&brokenCount, 1)

			logger.Warn("linkcheck: broken", map[string]interface{}{
				"game_id": game.ID, "url": game.RulesURL, "status": status,
			})
			sentryutil.CaptureMessage(
				"Broken rules link: "+game.ID,
				sentryutil.LevelWarning(),
				map[string]string{
					"component": "linkcheck",
					"game_id":   game.ID,
					"url":       game.RulesURL,
					"status":    fmt.Sprintf("%d", status),
				},
			)
		}(g)
	}
	wg.Wait()

	logger.Info("linkcheck: completed", map[string]interface{}{"broken": broken, "total": len(games)})
	return broken
}
