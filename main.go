package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"tvgamerefund/internal/channels"
	"tvgamerefund/internal/config"
	"tvgamerefund/internal/fetch"
	"tvgamerefund/internal/handlers"
	"tvgamerefund/internal/linkcheck"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/middleware"
	"tvgamerefund/internal/models"
	sentryutil "tvgamerefund/internal/sentry"
)

func runLinkCheck(f *fetch.Fetcher) {
	games := channels.CachedGames()
	ptrs := make([]*models.GameListing, len(games))
	for i := range games {
		ptrs[i] = &games[i]
	}
	broken := linkcheck.CheckAllRules(f, ptrs)
	if broken > 0 {
		logger.Warn("link check: broken rule links found", map[string]interface{}{"broken": broken})
	}
}

func main() {
	// Load configuration from .env and environment variables
	config.Load()
	logger.DebugEnabled = config.Cfg.LogDebug

	// Initialize Sentry (non-blocking if SENTRY_DSN is empty)
	sentryutil.Init()
	defer sentryutil.Flush()

	fetcher := fetch.New()
	reg := channels.NewRegistry(fetcher)
	handlers.Setup(reg, fetcher)

	// Wire scraper callback to track last update time
	channels.OnScrapeComplete = func(t time.Time) {
		handlers.SetLastScrape(t)
	}

	// Start scraper scheduler (respects SCRAPER_ENABLED config)
	channels.StartScheduler(reg)

	// Rate limiter from config
	limiter := handlers.NewRateLimiter(
		config.Cfg.RateLimitRPS,
		config.Cfg.RateLimitBurst,
		time.Second,
	)

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/games", handlers.GamesHandler)
	mux.HandleFunc("/api/rules", handlers.RulesHandler)
	mux.HandleFunc("/api/refund-info", handlers.RefundInfoHandler)
	mux.HandleFunc("/api/invoices/parse", handlers.ParseInvoicesHandler)
	mux.HandleFunc("/api/invoices/download", handlers.DownloadInvoiceHandler)
	mux.HandleFunc("/api/claim-letter", handlers.ClaimLetterHandler)
	mux.HandleFunc("/api/health", handlers.HealthHandler)
	mux.HandleFunc("/api/status", handlers.StatusHandler)

	// Admin routes (protected by ADMIN_API_KEY)
	mux.HandleFunc("/api/admin/changes", channels.AdminChangesHandler)

	// Wrap with middleware: Recovery → SecurityHeaders → Gzip (if enabled) → Rate Limiter
	var handler http.Handler = limiter.Middleware(mux)
	if config.Cfg.GzipEnabled {
		handler = middleware.Gzip(handler)
	}
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Recovery(handler)

	// Link check at boot (background, respects config)
	if config.Cfg.LinkCheckEnabled {
		go func() {
			time.Sleep(config.Cfg.LinkCheckDelay)
			runLinkCheck(fetcher)
		}()

		// Periodic link check
		go func() {
			ticker := time.NewTicker(config.Cfg.LinkCheckInterval)
			defer ticker.Stop()
			for range ticker.C {
				runLinkCheck(fetcher)
			}
		}()
	}

	logger.Info("server starting", map[string]interface{}{"port": config.Cfg.Port})
	fmt.Printf("tvgamerefund running on http://localhost:%s\n", config.Cfg.Port)
	log.Fatal(http.ListenAndServe(":"+config.Cfg.Port, handler))
}
