package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the immutable snapshot the watcher runs with. Changing any of it
// requires a process restart.
type Config struct {
	LogPath    string
	WebhookURL string

	WindowSize    int
	ThresholdPct  float64
	Cooldown      time.Duration
	Maintenance   bool
	PrimaryPool   string
	BackupPool    string
	PollInterval  time.Duration
	MissingGrace  time.Duration
	SendTimeout   time.Duration
	DispatchQueue int

	// Optional extras; empty values disable the feature.
	DBPath        string
	Addr          string
	RetentionDays int
}

// fileConfig mirrors Config for the optional YAML file. Pointer fields so an
// absent key leaves the env-resolved value alone.
type fileConfig struct {
	LogFile       *string  `yaml:"log_file"`
	WebhookURL    *string  `yaml:"webhook_url"`
	WindowSize    *int     `yaml:"window_size"`
	ThresholdPct  *float64 `yaml:"error_rate_threshold"`
	CooldownSec   *int     `yaml:"alert_cooldown_sec"`
	Maintenance   *bool    `yaml:"maintenance_mode"`
	PrimaryPool   *string  `yaml:"primary_pool"`
	BackupPool    *string  `yaml:"backup_pool"`
	PollInterval  *string  `yaml:"poll_interval"`
	DBPath        *string  `yaml:"db_path"`
	Addr          *string  `yaml:"addr"`
	RetentionDays *int     `yaml:"retention_days"`
}

// Load resolves configuration from a .env file (if present), the environment,
// and an optional YAML file named by WATCHER_CONFIG, in that order of
// increasing precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		LogPath:       getenv("WATCHER_LOG_FILE", "/var/log/nginx/access.log"),
		WebhookURL:    os.Getenv("SLACK_WEBHOOK_URL"),
		WindowSize:    getenvInt("WINDOW_SIZE", 200),
		ThresholdPct:  getenvFloat("ERROR_RATE_THRESHOLD", 2),
		Cooldown:      time.Duration(getenvInt("ALERT_COOLDOWN_SEC", 300)) * time.Second,
		Maintenance:   getenvBool("MAINTENANCE_MODE", false),
		PrimaryPool:   getenv("WATCHER_PRIMARY_POOL", "blue"),
		BackupPool:    getenv("WATCHER_BACKUP_POOL", "green"),
		PollInterval:  getenvDuration("WATCHER_POLL_INTERVAL", 500*time.Millisecond),
		MissingGrace:  getenvDuration("WATCHER_MISSING_FILE_GRACE", 10*time.Minute),
		SendTimeout:   getenvDuration("WATCHER_SEND_TIMEOUT", 10*time.Second),
		DispatchQueue: getenvInt("WATCHER_DISPATCH_QUEUE", 16),
		DBPath:        os.Getenv("WATCHER_DB_PATH"),
		Addr:          os.Getenv("WATCHER_ADDR"),
		RetentionDays: getenvInt("WATCHER_RETENTION_DAYS", 14),
	}

	if path := os.Getenv("WATCHER_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.LogFile != nil {
		cfg.LogPath = *fc.LogFile
	}
	if fc.WebhookURL != nil {
		cfg.WebhookURL = *fc.WebhookURL
	}
	if fc.WindowSize != nil {
		cfg.WindowSize = *fc.WindowSize
	}
	if fc.ThresholdPct != nil {
		cfg.ThresholdPct = *fc.ThresholdPct
	}
	if fc.CooldownSec != nil {
		cfg.Cooldown = time.Duration(*fc.CooldownSec) * time.Second
	}
	if fc.Maintenance != nil {
		cfg.Maintenance = *fc.Maintenance
	}
	if fc.PrimaryPool != nil {
		cfg.PrimaryPool = *fc.PrimaryPool
	}
	if fc.BackupPool != nil {
		cfg.BackupPool = *fc.BackupPool
	}
	if fc.PollInterval != nil {
		d, err := time.ParseDuration(*fc.PollInterval)
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.Addr != nil {
		cfg.Addr = *fc.Addr
	}
	if fc.RetentionDays != nil {
		cfg.RetentionDays = *fc.RetentionDays
	}
	return nil
}

// Validate rejects configurations the watcher cannot run with.
func Validate(cfg Config) error {
	if cfg.LogPath == "" {
		return fmt.Errorf("log file path is required")
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is required")
	}
	if cfg.WindowSize < 1 {
		return fmt.Errorf("window size must be >= 1, got %d", cfg.WindowSize)
	}
	if cfg.ThresholdPct < 0 {
		return fmt.Errorf("error rate threshold must be >= 0, got %v", cfg.ThresholdPct)
	}
	if cfg.Cooldown < 0 {
		return fmt.Errorf("alert cooldown must be >= 0")
	}
	if cfg.PrimaryPool == "" || cfg.BackupPool == "" {
		return fmt.Errorf("primary and backup pool labels are required")
	}
	if cfg.PrimaryPool == cfg.BackupPool {
		return fmt.Errorf("primary and backup pool labels must differ, both are %q", cfg.PrimaryPool)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if cfg.DispatchQueue < 1 {
		return fmt.Errorf("dispatch queue size must be >= 1, got %d", cfg.DispatchQueue)
	}
	return nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return d
	}
	return f
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}
