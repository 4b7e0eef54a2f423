package config

import (
	"time"
)

// Preferences are the user-editable settings persisted in a YAML file
type Preferences struct {
	Refresh       RefreshSettings      `yaml:"refresh" json:"refresh"`
	Notifications NotificationSettings `yaml:"notifications" json:"notifications"`
	Export        ExportSettings       `yaml:"export" json:"export"`
}

type RefreshSettings struct {
	IntervalMinutes int  `yaml:"interval_minutes" json:"interval_minutes"` // 0 means manual only
	WiFiOnly        bool `yaml:"wifi_only" json:"wifi_only"`
}

type NotificationSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type ExportSettings struct {
	Title   string `yaml:"title" json:"title"`
	Grouped bool   `yaml:"grouped" json:"grouped"`
}

// Interval returns the background refresh interval, or 0 for manual only
func (s RefreshSettings) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Manual reports whether only user-triggered refreshes are allowed
func (s RefreshSettings) Manual() bool {
	return s.IntervalMinutes <= 0
}

// Defaults returns preferences used when no file exists yet
func Defaults() Preferences {
	return Preferences{
		Refresh:       RefreshSettings{IntervalMinutes: 60},
		Notifications: NotificationSettings{Enabled: true},
		Export:        ExportSettings{Title: "Subscriptions"},
	}
}
