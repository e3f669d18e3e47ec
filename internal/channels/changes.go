package channels

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"tvgamerefund/internal/config"
	"tvgamerefund/internal/logger"
	"tvgamerefund/internal/models"
)

const maxChangeEvents = 500

// ChangeEvent records a detected change between scrape cycles.
type ChangeEvent struct {
	GameID    string    `json:"game_id"`
	GameTitle string    `json:"game_title"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Channel   string    `json:"channel,omitempty"`
	Severity  string    `json:"severity"` // "critical", "high", "medium", "low"
	Timestamp time.Time `json:"timestamp"`
}

var (
	changesMu sync.Mutex
	changes   []ChangeEvent
)

// DetectChanges compares old and new listing sets, recording significant changes.
func DetectChanges(old, new []models.GameListing) {
	oldMap := make(map[string]models.GameListing)
	for _, g := range old {
		oldMap[g.ID] = g
	}

	newMap := make(map[string]models.GameListing)
	for _, g := range new {
		newMap[g.ID] = g
	}

	now := time.Now()

	for id, oldG := range oldMap {
		newG, exists := newMap[id]
		if !exists {
			addChange(ChangeEvent{
				GameID:    id,
				GameTitle: oldG.Title,
				Field:     "existence",
				OldValue:  "present",
				NewValue:  "removed",
				Channel:   oldG.Channel,
				Severity:  "critical",
				Timestamp: now,
			})
			continue
		}

		if oldG.PhoneNumber != newG.PhoneNumber && oldG.PhoneNumber != "" && newG.PhoneNumber != "" {
			addChange(ChangeEvent{
				GameID:    id,
				GameTitle: newG.Title,
				Field:     "phone_number",
				OldValue:  oldG.PhoneNumber,
				NewValue:  newG.PhoneNumber,
				Channel:   newG.Channel,
				Severity:  "high",
				Timestamp: now,
			})
		}

		if oldG.Cost != newG.Cost && oldG.Cost > 0 && newG.Cost > 0 {
			addChange(ChangeEvent{
				GameID:    id,
				GameTitle: newG.Title,
				Field:     "cost",
				OldValue:  formatCost(oldG.Cost),
				NewValue:  formatCost(newG.Cost),
				Channel:   newG.Channel,
				Severity:  costSeverity(oldG.Cost, newG.Cost),
				Timestamp: now,
			})
		}

		if oldG.RulesURL != newG.RulesURL && oldG.RulesURL != "" && newG.RulesURL != "" {
			addChange(ChangeEvent{
				GameID:    id,
				GameTitle: newG.Title,
				Field:     "rules_url",
				OldValue:  oldG.RulesURL,
				NewValue:  newG.RulesURL,
				Channel:   newG.Channel,
				Severity:  "medium",
				Timestamp: now,
			})
		}

		if oldG.RefundAddress != newG.RefundAddress && oldG.RefundAddress != "" && newG.RefundAddress != "" {
			addChange(ChangeEvent{
				GameID:    id,
				GameTitle: newG.Title,
				Field:     "refund_address",
				OldValue:  oldG.RefundAddress,
				NewValue:  newG.RefundAddress,
				Channel:   newG.Channel,
				Severity:  "medium",
				Timestamp: now,
			})
		}
	}

	for id, newG := range newMap {
		if _, exists := oldMap[id]; !exists {
			addChange(ChangeEvent{
				GameID:    id,
				GameTitle: newG.Title,
				Field:     "existence",
				OldValue:  "",
				NewValue:  "new",
				Channel:   newG.Channel,
				Severity:  "medium",
				Timestamp: now,
			})
		}
	}
}

func addChange(ev ChangeEvent) {
	changesMu.Lock()
	defer changesMu.Unlock()
	changes = append(changes, ev)
	if len(changes) > maxChangeEvents {
		changes = changes[len(changes)-maxChangeEvents:]
	}
	logger.Info("change detected", map[string]interface{}{
		"game_id": ev.GameID, "field": ev.Field,
		"severity": ev.Severity, "old": ev.OldValue, "new": ev.NewValue,
	})
}

// GetChanges returns a copy of recent change events (newest first).
func GetChanges() []ChangeEvent {
	changesMu.Lock()
	defer changesMu.Unlock()
	result := make([]ChangeEvent, len(changes))
	copy(result, changes)
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// AdminChangesHandler serves GET /api/admin/changes.
// Protected by ADMIN_API_KEY.
func AdminChangesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !checkAdminKey(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result := GetChanges()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(result)
}

func checkAdminKey(r *http.Request) bool {
	key := config.Cfg.AdminAPIKey
	if key == "" {
		return true
	}
	if r.URL.Query().Get("key") == key {
		return true
	}
	if r.Header.Get("X-Admin-Key") == key {
		return true
	}
	return false
}

// costSeverity grades a cost change by its relative size.
func costSeverity(oldVal, newVal float64) string {
	change := math.Abs(newVal-oldVal) / oldVal
	if change > 0.5 {
		return "critical"
	}
	return "medium"
}

func formatCost(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
