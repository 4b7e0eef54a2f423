package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewStoreMissingFileUsesDefaults(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	p := store.Get()
	if p.Refresh.IntervalMinutes != 60 {
		t.Errorf("Expected default interval 60, got %d", p.Refresh.IntervalMinutes)
	}
	if !p.Notifications.Enabled {
		t.Error("Expected notifications enabled by default")
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	content := `
refresh:
  interval_minutes: 30
  wifi_only: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	p := store.Get()
	if p.Refresh.Interval() != 30*time.Minute {
		t.Errorf("Expected 30m interval, got %v", p.Refresh.Interval())
	}
	if !p.Refresh.WiFiOnly {
		t.Error("Expected wifi_only to be true")
	}
	if p.Export.Title != "Subscriptions" {
		t.Errorf("Expected default export title, got '%s'", p.Export.Title)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "refresh: [unclosed"},
		{"negative interval", "refresh:\n  interval_minutes: -5\n"},
		{"too short interval", "refresh:\n  interval_minutes: 5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prefs.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			if _, err := NewStore(path); err == nil {
				t.Error("Expected error for invalid preferences")
			}
		})
	}
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	p := store.Get()
	p.Refresh.IntervalMinutes = 0
	p.Export.Title = "My Feeds"
	if err := store.Update(p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	got := reloaded.Get()
	if !got.Refresh.Manual() {
		t.Error("Expected manual refresh after reload")
	}
	if got.Export.Title != "My Feeds" {
		t.Errorf("Expected title 'My Feeds', got '%s'", got.Export.Title)
	}

	p.Refresh.IntervalMinutes = -1
	if err := store.Update(p); err == nil {
		t.Error("Expected validation error")
	}
}
