package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath          string `long:"db-path" env:"DB_PATH" default:"./data/hoard.db" description:"SQLite database file"`
	PreferencesFile string `long:"preferences" env:"PREFERENCES_FILE" default:"./data/preferences.yml" description:"User preferences YAML file"`

	// HTTP
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Fetching
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests (defaults to a desktop browser)"`
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout for a single HTTP fetch"`

	// Refresh scheduling
	Trigger             string        `long:"trigger" env:"REFRESH_TRIGGER" default:"timer" choice:"timer" choice:"background" description:"How automatic refreshes are triggered"`
	QueueSize           int           `long:"queue-size" env:"QUEUE_SIZE" default:"100" description:"Maximum number of queued tasks"`
	TaskTimeout         time.Duration `long:"task-timeout" env:"TASK_TIMEOUT" default:"10m" description:"Upper bound for a single task"`
	BackgroundTimeLimit time.Duration `long:"background-time-limit" env:"BACKGROUND_TIME_LIMIT" default:"30s" description:"Time budget of a background refresh"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses os.Args and the environment. It returns nil, nil when help
// was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", raw.QueueSize)
	}
	if raw.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %s", raw.FetchTimeout)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		PreferencesFile:     raw.PreferencesFile,
		Port:                raw.Port,
		APIAccessKey:        raw.APIAccessKey,
		UserAgent:           raw.UserAgent,
		FetchTimeout:        raw.FetchTimeout,
		Trigger:             raw.Trigger,
		QueueSize:           raw.QueueSize,
		TaskTimeout:         raw.TaskTimeout,
		BackgroundTimeLimit: raw.BackgroundTimeLimit,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
