package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"planevent/internal/model"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the form API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Notification permission policies used to resolve the "default" state
// at startup.
const (
	NotificationsAllow = "allow"
	NotificationsDeny  = "deny"
	NotificationsAsk   = "ask"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the form API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone preselected for new events (e.g. "Europe/Warsaw").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Timezones lists the zones offered by /api/timezones.
	Timezones []string `yaml:"timezones" json:"timezones"`

	// Language is the fallback message language ("pl" or "en").
	Language string `yaml:"language" json:"language"`

	// LinkBaseURL is the web-calendar "create event" endpoint.
	LinkBaseURL string `yaml:"link_base_url" json:"link_base_url"`

	// DefaultDurationMinutes is used when a form does not pick a preset.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// ReminderMinutes is the default lead time of advanced-mode reminders.
	ReminderMinutes int `yaml:"reminder_minutes" json:"reminder_minutes"`

	// WorkStart / WorkEnd are the default business hours ("HH:MM").
	WorkStart string `yaml:"work_start" json:"work_start"`
	WorkEnd   string `yaml:"work_end" json:"work_end"`

	// Notifications decides how the "default" permission state resolves:
	//   - "allow": granted
	//   - "deny":  denied
	//   - "ask":   stays undecided, reminders are skipped
	Notifications string `yaml:"notifications" json:"notifications"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

var defaultTimezones = []string{
	"America/Los_Angeles",
	"America/New_York",
	"Asia/Kolkata",
	"Asia/Riyadh",
	"Asia/Shanghai",
	"Asia/Tokyo",
	"Australia/Sydney",
	"Europe/Kiev",
	"Europe/London",
	"Europe/Vilnius",
	"Europe/Warsaw",
	"UTC",
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 "127.0.0.1:8080",
		Timezone:               "Europe/Warsaw",
		Timezones:              append([]string(nil), defaultTimezones...),
		Language:               "pl",
		LinkBaseURL:            "https://calendar.google.com/calendar/render",
		DefaultDurationMinutes: 60,
		ReminderMinutes:        5,
		WorkStart:              "09:00",
		WorkEnd:                "17:00",
		Notifications:          NotificationsAllow,
		LogLevel:               "info",
		BasicAuth:              nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if len(c.Timezones) == 0 {
		c.Timezones = def.Timezones
	}
	switch strings.ToLower(c.Language) {
	case "pl", "en":
		c.Language = strings.ToLower(c.Language)
	default:
		c.Language = def.Language
	}
	if c.LinkBaseURL == "" {
		c.LinkBaseURL = def.LinkBaseURL
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = def.DefaultDurationMinutes
	}
	if c.ReminderMinutes < 0 {
		c.ReminderMinutes = def.ReminderMinutes
	}
	if c.WorkStart == "" {
		c.WorkStart = def.WorkStart
	}
	if c.WorkEnd == "" {
		c.WorkEnd = def.WorkEnd
	}
	switch c.Notifications {
	case NotificationsAllow, NotificationsDeny, NotificationsAsk:
		// ok
	default:
		c.Notifications = def.Notifications
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// ApplyEnv overrides selected fields from PLANEVENT_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PLANEVENT_LISTEN")); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANEVENT_TIMEZONE")); v != "" {
		c.Timezone = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANEVENT_LANGUAGE")); v != "" {
		c.Language = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANEVENT_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planevent-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// NewForm returns an empty form carrying the configured defaults. Decoded
// request or file values are layered on top of it.
func (c *Config) NewForm() model.FormState {
	return model.FormState{
		DurationMinutes: c.DefaultDurationMinutes,
		Recurrence:      string(model.PresetNone),
		TimeZone:        c.Timezone,
		ReminderMinutes: c.ReminderMinutes,
		WorkStart:       c.WorkStart,
		WorkEnd:         c.WorkEnd,
		Visibility:      model.Public,
	}
}
