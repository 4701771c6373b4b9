package livepages

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/eringen/livepages/beat"
	"github.com/eringen/livepages/chartbeat"
)

// Config holds all configuration for a livepages server.
type Config struct {
	Name string // Page heading (default "Top Pages")
	Addr string // Listen address (default ":3000")

	APIKey  string // Required: Chartbeat API key
	Host    string // Tracked host (default "gizmodo.com")
	BaseURL string // API base URL (default chartbeat.DefaultBaseURL)
	Path    string // API resource path (default chartbeat.DefaultPath)

	PageLimit    int           // Ranks kept and displayed (default 10)
	PollInterval time.Duration // Delay between polls (default 5s)
	FetchTimeout time.Duration // Per-request timeout (default none; zero or negative disables)

	HistoryEnabled      bool          // Record every successful poll (default false)
	HistoryDatabasePath string        // SQLite path (default history.db under DataDir)
	HistoryRetention    time.Duration // How long snapshots are kept (default 7 days)

	SessionSecret string // Cookie session secret (random per process when empty)
	CookieSecure  bool   // Set true for HTTPS

	Debug bool // Log skipped polls and other debug output
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Top Pages"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Host == "" {
		c.Host = "gizmodo.com"
	}
	if c.BaseURL == "" {
		c.BaseURL = chartbeat.DefaultBaseURL
	}
	if c.Path == "" {
		c.Path = chartbeat.DefaultPath
	}
	if c.PageLimit <= 0 {
		c.PageLimit = beat.DefaultPageLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = beat.DefaultInterval
	}
	if c.HistoryDatabasePath == "" {
		c.HistoryDatabasePath = filepath.Join(DataDir(), "history.db")
	}
	if c.HistoryRetention <= 0 {
		c.HistoryRetention = 7 * 24 * time.Hour
	}
}

// DataDir returns the XDG data directory for livepages.
// On Linux: ~/.local/share/livepages
func DataDir() string {
	return filepath.Join(xdg.DataHome, "livepages")
}

// requestTimeout is the timeout handed to the HTTP client. Zero means the
// request is bounded only by the poller's context.
func (c *Config) requestTimeout() time.Duration {
	if c.FetchTimeout <= 0 {
		return 0
	}
	return c.FetchTimeout
}

// NewClient builds the Chartbeat client described by the configuration,
// filling unset fields with their defaults.
func (c Config) NewClient() *chartbeat.Client {
	c.setDefaults()
	client := chartbeat.NewClient(c.APIKey, c.Host, c.requestTimeout())
	client.BaseURL = c.BaseURL
	client.Path = c.Path
	return client
}

// Option configures additional App behavior.
type Option func(*App)

// WithFetcher replaces the Chartbeat client, e.g. with a fixture in tests.
func WithFetcher(f beat.Fetcher) Option {
	return func(a *App) {
		a.fetcher = f
	}
}

// WithViews overrides the default components. Nil fields keep the defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("livepages: configuration file not found")

type fileConfig struct {
	Name         string `yaml:"name"`
	Addr         string `yaml:"addr"`
	APIKey       string `yaml:"api_key"`
	Host         string `yaml:"host"`
	BaseURL      string `yaml:"base_url"`
	Path         string `yaml:"path"`
	PageLimit    int    `yaml:"page_limit"`
	PollInterval string `yaml:"poll_interval"`
	FetchTimeout string `yaml:"fetch_timeout"`
	History      struct {
		Enabled      bool   `yaml:"enabled"`
		DatabasePath string `yaml:"database_path"`
		Retention    string `yaml:"retention"`
	} `yaml:"history"`
	SessionSecret string `yaml:"session_secret"`
	CookieSecure  bool   `yaml:"cookie_secure"`
	Debug         bool   `yaml:"debug"`
}

// LoadConfigFile reads a YAML configuration file. Durations use Go syntax ("5s", "168h").
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("livepages: parse %s: %w", path, err)
	}

	cfg := Config{
		Name:                fc.Name,
		Addr:                fc.Addr,
		APIKey:              fc.APIKey,
		Host:                fc.Host,
		BaseURL:             fc.BaseURL,
		Path:                fc.Path,
		PageLimit:           fc.PageLimit,
		HistoryEnabled:      fc.History.Enabled,
		HistoryDatabasePath: fc.History.DatabasePath,
		SessionSecret:       fc.SessionSecret,
		CookieSecure:        fc.CookieSecure,
		Debug:               fc.Debug,
	}
	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"poll_interval", fc.PollInterval, &cfg.PollInterval},
		{"fetch_timeout", fc.FetchTimeout, &cfg.FetchTimeout},
		{"history.retention", fc.History.Retention, &cfg.HistoryRetention},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return Config{}, fmt.Errorf("livepages: %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Unset variables leave fields untouched.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"SITE_NAME":             &cfg.Name,
		"ADDR":                  &cfg.Addr,
		"CHARTBEAT_API_KEY":     &cfg.APIKey,
		"CHARTBEAT_HOST":        &cfg.Host,
		"CHARTBEAT_BASE_URL":    &cfg.BaseURL,
		"CHARTBEAT_PATH":        &cfg.Path,
		"HISTORY_DATABASE_PATH": &cfg.HistoryDatabasePath,
		"SESSION_SECRET":        &cfg.SessionSecret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"HISTORY_ENABLED": &cfg.HistoryEnabled,
		"COOKIE_SECURE":   &cfg.CookieSecure,
		"DEBUG":           &cfg.Debug,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	if v := os.Getenv("PAGE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("livepages: PAGE_LIMIT: %w", err)
		}
		cfg.PageLimit = n
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":     &cfg.PollInterval,
		"FETCH_TIMEOUT":     &cfg.FetchTimeout,
		"HISTORY_RETENTION": &cfg.HistoryRetention,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("livepages: %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
