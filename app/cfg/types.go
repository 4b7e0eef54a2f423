package cfg

import "time"

const (
	TriggerTimer      = "timer"
	TriggerBackground = "background"
)

type Cfg struct {
	// Storage
	DBPath          string
	PreferencesFile string

	// HTTP
	Port         string
	APIAccessKey string

	// Fetching
	UserAgent    string
	FetchTimeout time.Duration

	// Refresh scheduling
	Trigger             string
	QueueSize           int
	TaskTimeout         time.Duration
	BackgroundTimeLimit time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
