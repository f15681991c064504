package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Transmission
	TransmissionURL      string
	TransmissionUsername string
	TransmissionPassword string

	// Workers
	UpdateTick   time.Duration // How often the update worker checks whether a sync is due
	DownloadTick time.Duration

	// Tracker fetching
	FetchTimeout         time.Duration // Per attempt
	FetchAttempts        int
	TrackerRatePerSecond float64

	// Settings seeded into the database on first start
	DownloadDir         string
	MediaDir            string
	SyncIntervalMinutes int
	DeleteAfterDownload bool
	NotificationURL     string
	KinozalUsername     string
	KinozalPassword     string

	// Server
	ServerPort string

	// Paths
	BlacklistFile string // $CONFIG_DIR/blacklist.txt
	DatabaseFile  string // $CONFIG_DIR/trackarr.db

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TracingExporter    string // none or stdout
	TracingSampleRatio float64
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("UPDATE_TICK_SECONDS", 60)
	v.SetDefault("DOWNLOAD_TICK_SECONDS", 10)
	v.SetDefault("FETCH_TIMEOUT_SECONDS", 20)
	v.SetDefault("FETCH_ATTEMPTS", 3)
	v.SetDefault("TRACKER_RATE_PER_SECOND", 1.0)
	v.SetDefault("SYNC_INTERVAL_MINUTES", 60)
	v.SetDefault("DELETE_AFTER_DOWNLOAD", false)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRACING_EXPORTER", "none")
	v.SetDefault("TRACING_SAMPLE_RATIO", 0.0)
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds the configuration from v. Flags bound to v take precedence.
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Setup viper FIRST to load .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	SetDefaults(v)

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "trackarr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// Transmission
		TransmissionURL:      v.GetString("TRANSMISSION_URL"),
		TransmissionUsername: v.GetString("TRANSMISSION_USERNAME"),
		TransmissionPassword: v.GetString("TRANSMISSION_PASSWORD"),

		// Workers
		UpdateTick:   time.Duration(v.GetInt("UPDATE_TICK_SECONDS")) * time.Second,
		DownloadTick: time.Duration(v.GetInt("DOWNLOAD_TICK_SECONDS")) * time.Second,

		// Tracker fetching
		FetchTimeout:         time.Duration(v.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,
		FetchAttempts:        v.GetInt("FETCH_ATTEMPTS"),
		TrackerRatePerSecond: v.GetFloat64("TRACKER_RATE_PER_SECOND"),

		// Settings seed
		DownloadDir:         v.GetString("DOWNLOAD_DIR"),
		MediaDir:            v.GetString("MEDIA_DIR"),
		SyncIntervalMinutes: v.GetInt("SYNC_INTERVAL_MINUTES"),
		DeleteAfterDownload: v.GetBool("DELETE_AFTER_DOWNLOAD"),
		NotificationURL:     v.GetString("NOTIFICATION_URL"),
		KinozalUsername:     v.GetString("KINOZAL_USERNAME"),
		KinozalPassword:     v.GetString("KINOZAL_PASSWORD"),

		// Server
		ServerPort: v.GetString("SERVER_PORT"),

		// Paths
		BlacklistFile: filepath.Join(configDir, "blacklist.txt"),
		DatabaseFile:  filepath.Join(configDir, "trackarr.db"),

		// Logging
		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),

		TracingExporter:    v.GetString("TRACING_EXPORTER"),
		TracingSampleRatio: v.GetFloat64("TRACING_SAMPLE_RATIO"),
	}

	// TRANSMISSION_URL is enforced by transmission.NewClient
	if config.UpdateTick <= 0 || config.DownloadTick <= 0 {
		return nil, fmt.Errorf("worker ticks must be positive")
	}
	if config.FetchAttempts < 1 {
		return nil, fmt.Errorf("FETCH_ATTEMPTS must be at least 1")
	}

	return config, nil
}
