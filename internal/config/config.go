package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen string
	Relay  RelayConfig
	Store  StoreConfig
	Admin  AdminConfig
	Probe  ProbeConfig
	HTTP   HTTPConfig
}

type RelayConfig struct {
	BaseURL      string
	LegacyURLEnv string
}

type StoreConfig struct {
	SQLitePath string
}

type AdminConfig struct {
	PasswordFile    string
	Password        string
	JWTSecret       string
	SessionTTLHours int
	LegacyPassEnv   string
}

type ProbeConfig struct {
	Enabled       bool
	Interval      string
	DialTimeoutMS int
}

type HTTPConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

const (
	defaultListen        = ":8080"
	defaultSQLitePath    = "console.db"
	defaultSessionHours  = 24
	defaultProbeInterval = "30s"
	defaultProbeDialMS   = 5000
	defaultRateRPS       = 20
	defaultRateBurst     = 40
)

// Load reads configuration from the environment, with an optional YAML
// file underneath it (NAPGRAM_CONFIG_FILE). Environment always wins over
// the file; legacy names from pre-console deployments are honored when a
// NAPGRAM_* variable is absent and recorded so startup can warn.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("NAPGRAM_CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Listen = firstEnv(cfg.Listen, "NAPGRAM_LISTEN")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && strings.TrimSpace(os.Getenv("NAPGRAM_LISTEN")) == "" {
		cfg.Listen = ":" + port
	}

	if v := strings.TrimSpace(os.Getenv("NAPGRAM_RELAY_URL")); v != "" {
		cfg.Relay.BaseURL = v
	} else if v := strings.TrimSpace(os.Getenv("BACKEND_URL")); v != "" {
		cfg.Relay.BaseURL = v
		cfg.Relay.LegacyURLEnv = "BACKEND_URL"
	}

	cfg.Store.SQLitePath = firstEnv(cfg.Store.SQLitePath, "NAPGRAM_SQLITE_PATH")

	cfg.Admin.PasswordFile = firstEnv(cfg.Admin.PasswordFile, "NAPGRAM_ADMIN_PASSWORD_FILE")
	if v := strings.TrimSpace(os.Getenv("NAPGRAM_ADMIN_PASSWORD")); v != "" {
		cfg.Admin.Password = v
	} else if v := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")); v != "" {
		cfg.Admin.Password = v
		cfg.Admin.LegacyPassEnv = "ADMIN_PASSWORD"
	}
	cfg.Admin.JWTSecret = firstEnv(cfg.Admin.JWTSecret, "NAPGRAM_JWT_SECRET")
	cfg.Admin.SessionTTLHours = readInt("NAPGRAM_SESSION_TTL_HOURS", cfg.Admin.SessionTTLHours)

	cfg.Probe.Enabled = readBool("NAPGRAM_PROBE_ENABLED", cfg.Probe.Enabled)
	cfg.Probe.Interval = firstEnv(cfg.Probe.Interval, "NAPGRAM_PROBE_INTERVAL")
	cfg.Probe.DialTimeoutMS = readInt("NAPGRAM_PROBE_DIAL_TIMEOUT_MS", cfg.Probe.DialTimeoutMS)

	cfg.HTTP.RateLimitRPS = readFloat("NAPGRAM_RATE_LIMIT_RPS", cfg.HTTP.RateLimitRPS)
	cfg.HTTP.RateLimitBurst = readInt("NAPGRAM_RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst)
	if origins := splitList(os.Getenv("NAPGRAM_CORS_ORIGINS")); len(origins) > 0 {
		cfg.HTTP.CORSOrigins = origins
	}

	return cfg, cfg.validate()
}

func defaults() Config {
	return Config{
		Listen: defaultListen,
		Store:  StoreConfig{SQLitePath: defaultSQLitePath},
		Admin:  AdminConfig{SessionTTLHours: defaultSessionHours},
		Probe: ProbeConfig{
			Enabled:       true,
			Interval:      defaultProbeInterval,
			DialTimeoutMS: defaultProbeDialMS,
		},
		HTTP: HTTPConfig{
			RateLimitRPS:   defaultRateRPS,
			RateLimitBurst: defaultRateBurst,
		},
	}
}

// fileConfig mirrors the YAML layout; only set fields override defaults.
type fileConfig struct {
	Listen string `yaml:"listen"`
	Relay  struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"relay"`
	Store struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"store"`
	Admin struct {
		PasswordFile    string `yaml:"password_file"`
		JWTSecret       string `yaml:"jwt_secret"`
		SessionTTLHours int    `yaml:"session_ttl_hours"`
	} `yaml:"admin"`
	Probe struct {
		Enabled       *bool  `yaml:"enabled"`
		Interval      string `yaml:"interval"`
		DialTimeoutMS int    `yaml:"dial_timeout_ms"`
	} `yaml:"probe"`
	HTTP struct {
		RateLimitRPS   float64  `yaml:"rate_limit_rps"`
		RateLimitBurst int      `yaml:"rate_limit_burst"`
		CORSOrigins    []string `yaml:"cors_origins"`
	} `yaml:"http"`
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if fc.Listen != "" {
		c.Listen = fc.Listen
	}
	if fc.Relay.BaseURL != "" {
		c.Relay.BaseURL = fc.Relay.BaseURL
	}
	if fc.Store.SQLitePath != "" {
		c.Store.SQLitePath = fc.Store.SQLitePath
	}
	if fc.Admin.PasswordFile != "" {
		c.Admin.PasswordFile = fc.Admin.PasswordFile
	}
	if fc.Admin.JWTSecret != "" {
		c.Admin.JWTSecret = fc.Admin.JWTSecret
	}
	if fc.Admin.SessionTTLHours > 0 {
		c.Admin.SessionTTLHours = fc.Admin.SessionTTLHours
	}
	if fc.Probe.Enabled != nil {
		c.Probe.Enabled = *fc.Probe.Enabled
	}
	if fc.Probe.Interval != "" {
		c.Probe.Interval = fc.Probe.Interval
	}
	if fc.Probe.DialTimeoutMS > 0 {
		c.Probe.DialTimeoutMS = fc.Probe.DialTimeoutMS
	}
	if fc.HTTP.RateLimitRPS > 0 {
		c.HTTP.RateLimitRPS = fc.HTTP.RateLimitRPS
	}
	if fc.HTTP.RateLimitBurst > 0 {
		c.HTTP.RateLimitBurst = fc.HTTP.RateLimitBurst
	}
	if len(fc.HTTP.CORSOrigins) > 0 {
		c.HTTP.CORSOrigins = dedupe(fc.HTTP.CORSOrigins)
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Relay.BaseURL) == "" {
		return fmt.Errorf("relay base URL is required (NAPGRAM_RELAY_URL)")
	}
	if c.Admin.SessionTTLHours <= 0 {
		return fmt.Errorf("session TTL must be positive, got %d", c.Admin.SessionTTLHours)
	}
	return nil
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Admin.SessionTTLHours) * time.Hour
}

func (c Config) ProbeDialTimeout() time.Duration {
	if c.Probe.DialTimeoutMS <= 0 {
		return time.Duration(defaultProbeDialMS) * time.Millisecond
	}
	return time.Duration(c.Probe.DialTimeoutMS) * time.Millisecond
}

func firstEnv(current string, name string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return current
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return dedupe(out)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readFloat(name string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Redacted returns the config as a loggable map with secrets masked.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"listen": c.Listen,
		"relay": map[string]any{
			"base_url":   c.Relay.BaseURL,
			"legacy_env": c.Relay.LegacyURLEnv,
		},
		"store": map[string]any{
			"sqlite_path": c.Store.SQLitePath,
		},
		"admin": map[string]any{
			"password":          redactString(c.Admin.Password),
			"password_file":     c.Admin.PasswordFile,
			"jwt_secret":        redactString(c.Admin.JWTSecret),
			"session_ttl_hours": c.Admin.SessionTTLHours,
		},
		"probe": map[string]any{
			"enabled":         c.Probe.Enabled,
			"interval":        c.Probe.Interval,
			"dial_timeout_ms": c.Probe.DialTimeoutMS,
		},
		"http": map[string]any{
			"rate_limit_rps":   c.HTTP.RateLimitRPS,
			"rate_limit_burst": c.HTTP.RateLimitBurst,
			"cors_origins":     append([]string(nil), c.HTTP.CORSOrigins...),
		},
	}
}

func (c Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
