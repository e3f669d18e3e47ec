package channels

import (
	"testing"

	"tvgamerefund/internal/models"
)

func TestDetectChanges(t *testing.T) {
	old := []models.GameListing{
		{ID: "tf1-a", Title: "A", Channel: "tf1", PhoneNumber: "3680", Cost: 0.80, RulesURL: "https://tf1.fr/a.pdf"},
		{ID: "tf1-b", Title: "B", Channel: "tf1", PhoneNumber: "3680", Cost: 0.80},
	}
	new := []models.GameListing{
		{ID: "tf1-a", Title: "A", Channel: "tf1", PhoneNumber: "3980", Cost: 1.99, RulesURL: "https://tf1.fr/a-v2.pdf"},
		{ID: "m6-c", Title: "C", Channel: "m6", PhoneNumber: "71414", Cost: 0.65},
	}

	before := len(GetChanges())
	DetectChanges(old, new)
	events := GetChanges()

	byField := make(map[string]ChangeEvent)
	for _, ev := range events[:len(events)-before] {
		byField[ev.Field+"/"+ev.GameID] = ev
	}

	if ev, ok := byField["existence/tf1-b"]; !ok || ev.Severity != "critical" {
		t.Errorf("removed game should be a critical existence event, got %+v", ev)
	}
	if ev, ok := byField["existence/m6-c"]; !ok || ev.Severity != "medium" || ev.NewValue != "new" {
		t.Errorf("new game should be a medium existence event, got %+v", ev)
	}
	if ev, ok := byField["phone_number/tf1-a"]; !ok || ev.Severity != "high" || ev.NewValue != "3980" {
		t.Errorf("phone change should be high severity, got %+v", ev)
	}
	if ev, ok := byField["cost/tf1-a"]; !ok || ev.Severity != "critical" {
		t.Errorf("cost change over 50%% should be critical, got %+v", ev)
	}
	if ev, ok := byField["rules_url/tf1-a"]; !ok || ev.Severity != "medium" {
		t.Errorf("rules_url change should be medium, got %+v", ev)
	}
}

func TestCostSeverity(t *testing.T) {
	if s := costSeverity(0.80, 0.99); s != "medium" {
		t.Errorf("small cost change should be medium, got %q", s)
	}
	if s := costSeverity(0.80, 1.99); s != "critical" {
		t.Errorf("cost change over 50%% should be critical, got %q", s)
	}
}

func TestGetChanges_NewestFirst(t *testing.T) {
	addChange(ChangeEvent{GameID: "x-1", Field: "cost"})
	addChange(ChangeEvent{GameID: "x-2", Field: "cost"})

	events := GetChanges()
	if len(events) < 2 {
		t.Fatal("expected at least 2 events")
	}
	if events[0].GameID != "x-2" {
		t.Errorf("expected newest first, got %q", events[0].GameID)
	}
}
