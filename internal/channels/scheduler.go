package channels

import (
	"fmt"
	"sync"
	"time"

	"tvgamerefund/internal/config"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/metadata"
	"tvgamerefund/internal/models"
	sentryutil "tvgamerefund/internal/sentry"
)

// ChannelStatus tracks the last scrape outcome of a channel.
type ChannelStatus struct {
	LastFetch  time.Time `json:"last_fetch"`
	Success    bool      `json:"success"`
	GamesFound int       `json:"games_found"`
	Error      string    `json:"error,omitempty"`
}

// listingCache holds the games from the last scrape cycle.
type listingCache struct {
	mu            sync.RWMutex
	games         []models.GameListing
	lastUpdate    time.Time
	updateCount   int
	channelStatus map[string]ChannelStatus
}

var cache = &listingCache{
	channelStatus: make(map[string]ChannelStatus),
}

// OnScrapeComplete is called at the end of each scrape cycle.
// Set from main.go to propagate last-update time.
var OnScrapeComplete func(time.Time)

var metaLookup metadata.Lookup

// SetMetadataLookup wires the optional show-art collaborator. Decoration
// is cosmetic; the scheduler works identically without it.
func SetMetadataLookup(l metadata.Lookup) { metaLookup = l }

// --- Per-channel circuit breaker ---

// CircuitState represents the state of a channel circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// Circuit tracks circuit breaker state for a channel.
type Circuit struct {
	State       CircuitState `json:"state"`
	Failures    int          `json:"failures"`
	LastFailure time.Time    `json:"last_failure,omitempty"`
	NextRetryAt time.Time    `json:"next_retry_at,omitempty"`
}

var circuits sync.Map // map[string]*Circuit

const (
	circuitFailureThreshold = 3
	circuitOpenCycles       = 3
)

// GetCircuit returns the circuit breaker for a channel, creating one if needed.
func GetCircuit(name string) *Circuit {
	v, _ := circuits.LoadOrStore(name, &Circuit{State: CircuitClosed})
	return v.(*Circuit)
}

// RecordSuccess resets the circuit after a successful scrape.
func RecordSuccess(name string) {
	circuit := GetCircuit(name)
	circuit.State = CircuitClosed
	circuit.Failures = 0
}

// RecordFailure counts a failure and opens the circuit at the threshold.
func RecordFailure(name string) {
	circuit := GetCircuit(name)
	circuit.Failures++
	circuit.LastFailure = time.Now()
	if circuit.Failures >= circuitFailureThreshold {
		circuit.State = CircuitOpen
		circuit.NextRetryAt = time.Now().Add(config.Cfg.ScraperInterval * circuitOpenCycles)
		logger.Warn("scrape: circuit opened", map[string]interface{}{
			"channel": name, "failures": circuit.Failures,
			"retry_at": circuit.NextRetryAt.Format(time.RFC3339),
		})
	}
}

// ShouldSkip reports whether a channel sits behind an open circuit.
func ShouldSkip(name string) bool {
	circuit := GetCircuit(name)
	switch circuit.State {
	case CircuitOpen:
		if time.Now().After(circuit.NextRetryAt) {
			circuit.State = CircuitHalfOpen
			logger.Info("scrape: circuit half-open, attempting retry", map[string]interface{}{"channel": name})
			return false
		}
		return true
	default:
		return false
	}
}

// StartScheduler runs an initial scrape and then re-scrapes on the
// configured interval.
func StartScheduler(reg *Registry) {
	if !config.Cfg.ScraperEnabled {
		logger.Info("scrape: disabled via config", nil)
		return
	}

	go func() {
		RunScrape(reg)
		ticker := time.NewTicker(config.Cfg.ScraperInterval)
		defer ticker.Stop()
		for range ticker.C {
			RunScrape(reg)
		}
	}()
}

// RunScrape performs a full scrape cycle across all registered channels.
func RunScrape(reg *Registry) {
	logger.Info("scrape: starting cycle", nil)

	cache.mu.RLock()
	oldGames := make([]models.GameListing, len(cache.games))
	copy(oldGames, cache.games)
	cache.mu.RUnlock()

	var all []models.GameListing
	for _, s := range reg.All() {
		if ShouldSkip(s.Name()) {
			logger.Info("scrape: skipping (circuit open)", map[string]interface{}{"channel": s.Name()})
			continue
		}

		logger.Info("scrape: fetching channel", map[string]interface{}{"channel": s.Name()})
		games, err := s.ListActiveGames()

		status := ChannelStatus{LastFetch: time.Now()}
		if err != nil {
			status.Error = err.Error()
			RecordFailure(s.Name())
			logger.Error("scrape: channel failed", map[string]interface{}{
				"channel": s.Name(), "error": err.Error(),
			})
		} else {
			status.Success = true
			status.GamesFound = len(games)
			RecordSuccess(s.Name())
			if len(games) == 0 {
				status.Error = "no games found"
				sentryutil.CaptureError(fmt.Errorf("scrape: 0 games from %s", s.Name()),
					map[string]string{"channel": s.Name()})
			}
			all = append(all, games...)
		}

		cache.mu.Lock()
		cache.channelStatus[s.Name()] = status
		cache.mu.Unlock()
	}

	if metaLookup != nil {
		metadata.Decorate(all, metaLookup)
	}

	if len(oldGames) > 0 {
		DetectChanges(oldGames, all)
	}

	cache.mu.Lock()
	cache.games = all
	cache.lastUpdate = time.Now()
	cache.updateCount++
	cache.mu.Unlock()

	logger.Info("scrape: cache updated", map[string]interface{}{
		"total": len(all), "cycle": cache.updateCount,
	})

	if OnScrapeComplete != nil {
		OnScrapeComplete(time.Now())
	}
}

// CachedGames returns a copy of the games from the last scrape cycle.
func CachedGames() []models.GameListing {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	result := make([]models.GameListing, len(cache.games))
	copy(result, cache.games)
	return result
}

// Status returns scraper state and per-channel info.
func Status(reg *Registry) map[string]interface{} {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	channelStates := make(map[string]ChannelStatus)
	for k, v := range cache.channelStatus {
		channelStates[k] = v
	}

	circuitStates := make(map[string]Circuit)
	circuits.Range(func(key, value interface{}) bool {
		circuitStates[key.(string)] = *value.(*Circuit)
		return true
	})

	return map[string]interface{}{
		"last_run":         cache.lastUpdate,
		"next_run":         cache.lastUpdate.Add(config.Cfg.ScraperInterval),
		"game_count":       len(cache.games),
		"update_count":     cache.updateCount,
		"channels":         channelStates,
		"circuits":         circuitStates,
		"http_cache_stats": reg.Fetcher().CacheStats(),
	}
}
