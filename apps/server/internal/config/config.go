// Package config reads the server's settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tilsley/repolens/apps/server/internal/repos/scanner"
	"github.com/tilsley/repolens/apps/server/internal/workerpool"
)

// Config is the fully parsed server configuration.
type Config struct {
	Port string

	GitHub GitHub
	Pool   workerpool.Config
	Scan   Scan

	WebhookPageSize int

	RedisAddr string
	BuildTTL  time.Duration

	PostgresURL string
	OTelEnabled bool
}

// GitHub selects the API endpoint and the server's default credential. An
// App installation takes precedence over a token when AppID is set.
type GitHub struct {
	APIURL         string
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// UsesApp reports whether the default credential is a GitHub App.
func (g GitHub) UsesApp() bool { return g.AppID != 0 }

// Scan configures the content scanner.
type Scan struct {
	Strategy       scanner.Strategy
	BatchSize      int
	ConfigSuffixes []string
}

// Load parses every setting from getenv (usually os.Getenv). All malformed
// values are reported together.
func Load(getenv func(string) string) (Config, error) {
	e := env{getenv: getenv}

	cfg := Config{
		Port: e.str("PORT", "8080"),
		GitHub: GitHub{
			APIURL:         e.str("GITHUB_API_URL", ""),
			Token:          e.str("GITHUB_TOKEN", ""),
			AppID:          e.num64("GITHUB_APP_ID", 0),
			InstallationID: e.num64("GITHUB_APP_INSTALLATION_ID", 0),
			PrivateKeyPath: e.str("GITHUB_APP_PRIVATE_KEY_PATH", ""),
		},
		Pool: workerpool.Config{
			Workers:      e.num("WORKER_COUNT", 2),
			Timeout:      e.duration("TASK_TIMEOUT", 200*time.Second),
			PollInterval: e.duration("WORKER_POLL_INTERVAL", 10*time.Millisecond),
		},
		Scan: Scan{
			BatchSize:      e.num("SCAN_BATCH_SIZE", scanner.DefaultBatchSize),
			ConfigSuffixes: splitList(e.str("SCAN_CONFIG_SUFFIXES", strings.Join(scanner.DefaultConfigSuffixes, ","))),
		},
		WebhookPageSize: e.num("WEBHOOK_PAGE_SIZE", 100),
		RedisAddr:       e.str("REDIS_ADDR", ""),
		BuildTTL:        e.duration("BUILD_TTL", 24*time.Hour),
		PostgresURL:     e.str("POSTGRES_URL", ""),
		OTelEnabled:     e.flag("OTEL_ENABLED", false),
	}

	order, err := workerpool.ParseOrder(e.str("WORKER_DEQUEUE_ORDER", ""))
	e.add(err)
	cfg.Pool.Order = order

	strategy, err := scanner.ParseStrategy(e.str("SCAN_STRATEGY", ""))
	e.add(err)
	cfg.Scan.Strategy = strategy

	e.check(cfg.Pool.Workers >= 1, "WORKER_COUNT must be at least 1")
	e.check(cfg.Pool.Timeout > 0, "TASK_TIMEOUT must be positive")
	e.check(cfg.Pool.PollInterval > 0, "WORKER_POLL_INTERVAL must be positive")
	e.check(cfg.Scan.BatchSize >= 1, "SCAN_BATCH_SIZE must be at least 1")
	e.check(cfg.WebhookPageSize >= 1 && cfg.WebhookPageSize <= 100, "WEBHOOK_PAGE_SIZE must be between 1 and 100")
	if cfg.GitHub.UsesApp() {
		e.check(cfg.GitHub.InstallationID != 0, "GITHUB_APP_INSTALLATION_ID is required with GITHUB_APP_ID")
		e.check(cfg.GitHub.PrivateKeyPath != "", "GITHUB_APP_PRIVATE_KEY_PATH is required with GITHUB_APP_ID")
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) num(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (e *env) num64(key string, fallback int64) int64 {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (e *env) flag(key string, fallback bool) bool {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

// duration accepts Go duration strings ("90s") or a bare number of seconds.
func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func (e *env) add(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func (e *env) check(ok bool, msg string) {
	if !ok {
		e.errs = append(e.errs, errors.New(msg))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
