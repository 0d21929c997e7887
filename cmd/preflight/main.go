// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/sitewatch/internal/config"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))

	if admin == "" {
		warn("ADMIN_API_KEYS is empty; refresh and prompt routes are open to anyone who can reach the API.")
	}
	if pub == "" && admin != "" {
		warn("PUBLIC_API_KEYS is empty; read routes need an admin key.")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	for _, k := range []string{"PROBE_TIMEOUT_SEC", "MAX_CONCURRENT", "PUBLIC_RPM", "PUBLIC_BURST"} {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err != nil || n < 1 {
				fail(k + " must be a positive integer; the default will be used.")
			}
		}
	}
	for _, k := range []string{"BATCH_INTERVAL", "ALERT_COOLDOWN"} {
		if v := os.Getenv(k); v != "" {
			if _, err := time.ParseDuration(v); err != nil {
				fail(k + " must be a Go duration such as 15m; the default will be used.")
			}
		}
	}

	cfg := config.FromEnv()
	ok("API_ADDR=" + cfg.Addr)
	if cfg.MaxConcurrent > 5 {
		warn(fmt.Sprintf("MAX_CONCURRENT=%d is clamped to 5.", cfg.MaxConcurrent))
	}

	switch db := cfg.DatabaseURL; {
	case db == "":
		warn("DATABASE_URL empty; results live in memory and are lost on restart.")
	case strings.HasPrefix(db, "postgres://"), strings.HasPrefix(db, "postgresql://"):
		ok("DATABASE_URL points at Postgres")
	default:
		ok("DATABASE_URL is a SQLite file: " + db)
	}

	sites, err := config.LoadSites(cfg.SitesFile)
	switch {
	case err != nil:
		fail("sites file " + cfg.SitesFile + ": " + err.Error())
	case len(sites) == 0:
		warn("no sites configured in " + cfg.SitesFile)
	default:
		auto := 0
		for _, s := range sites {
			if s.AutoRefresh {
				auto++
			}
			if s.APIKey == "" && s.AccessToken == "" {
				warn("site " + s.Name + " has no api_key or access_token; probes will fail.")
			}
		}
		ok(fmt.Sprintf("%d sites loaded, %d with auto-refresh", len(sites), auto))
	}

	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK empty; alerts and login links only go to the log.")
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
