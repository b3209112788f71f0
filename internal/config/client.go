package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Client holds the settings of the notesync CLI. Values come from NOTESYNC_*
// environment variables and are then overridden by command-line flags.
type Client struct {
	DataDir      string
	DBPath       string
	ServerURL    string
	SyncInterval time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	LogFile      string
	LogLevel     string
	DeviceID     string
}

func LoadClient() (*Client, error) {
	dataDir := getEnv("NOTESYNC_HOME", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".notesync")
	}

	interval, err := getEnvAsDuration("NOTESYNC_SYNC_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}
	base, err := getEnvAsDuration("NOTESYNC_BACKOFF_BASE", time.Second)
	if err != nil {
		return nil, err
	}
	max, err := getEnvAsDuration("NOTESYNC_BACKOFF_MAX", 60*time.Second)
	if err != nil {
		return nil, err
	}

	deviceID := getEnv("NOTESYNC_DEVICE_ID", "")
	if deviceID == "" {
		if host, err := os.Hostname(); err == nil {
			deviceID = host
		}
	}

	cfg := &Client{
		DataDir:      dataDir,
		DBPath:       getEnv("NOTESYNC_DB", filepath.Join(dataDir, "notes.db")),
		ServerURL:    getEnv("NOTESYNC_SERVER", "http://localhost:8080"),
		SyncInterval: interval,
		BackoffBase:  base,
		BackoffMax:   max,
		LogFile:      getEnv("NOTESYNC_LOG_FILE", filepath.Join(dataDir, "notesync.log")),
		LogLevel:     getEnv("NOTESYNC_LOG_LEVEL", "info"),
		DeviceID:     deviceID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the timings. It runs again after flags are parsed.
func (c *Client) Validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", c.SyncInterval)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive, got %s", c.BackoffBase)
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff max %s is below backoff base %s", c.BackoffMax, c.BackoffBase)
	}
	return nil
}
