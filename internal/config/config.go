package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g. "127.0.0.1:8080" or ":8080" in Docker
	LogDir      string
	LogLevel    string
	LogStderr   bool
	DatabaseURL string // empty = memory, postgres:// = Postgres, anything else = SQLite path
	SitesFile   string

	ProbeTimeout  time.Duration
	MaxConcurrent int
	AutoRefresh   bool          // global auto-refresh switch
	BatchInterval time.Duration // 0 disables the periodic batch

	SlackWebhook  string
	AlertCooldown time.Duration

	PublicAPIKeys []string
	AdminAPIKeys  []string
	PublicRPM     int
	PublicBurst   int
}

func FromEnv() Config {
	return Config{
		Addr:        getEnv("API_ADDR", "127.0.0.1:8080"),
		LogDir:      getEnv("LOG_DIR", "logs"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogStderr:   getBool("LOG_STDERR", false),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SitesFile:   getEnv("SITES_FILE", "sites.yaml"),

		ProbeTimeout:  time.Duration(getInt("PROBE_TIMEOUT_SEC", 30, 1)) * time.Second,
		MaxConcurrent: getInt("MAX_CONCURRENT", 3, 1),
		AutoRefresh:   getBool("AUTO_REFRESH", true),
		BatchInterval: getDuration("BATCH_INTERVAL", 0),

		SlackWebhook:  os.Getenv("SLACK_WEBHOOK"),
		AlertCooldown: getDuration("ALERT_COOLDOWN", 10*time.Minute),

		PublicAPIKeys: splitList(os.Getenv("PUBLIC_API_KEYS")),
		AdminAPIKeys:  splitList(os.Getenv("ADMIN_API_KEYS")),
		PublicRPM:     getInt("PUBLIC_RPM", 120, 1),
		PublicBurst:   getInt("PUBLIC_BURST", 60, 1),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def, floor int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= floor {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
