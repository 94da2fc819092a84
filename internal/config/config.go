package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are parsed with time.ParseDuration.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DB DBConfig

	// SessionCachePrefix namespaces cached sessions as <prefix>:<token>.
	SessionCachePrefix string
	// SessionCacheTTLCap bounds how long a validated session stays cached,
	// independent of the session's real expiry.
	SessionCacheTTLCap time.Duration

	WS WebSocketConfig
}

// DBConfig describes the durable store connection.
type DBConfig struct {
	Driver       string // "mysql" or "postgres"
	User         string
	Pass         string // optional
	Host         string
	Port         string
	Name         string
	MaxOpenConns int
}

// WebSocketConfig tunes the room and connection orchestrator.
type WebSocketConfig struct {
	RoomBacklog    int           // per-subscriber broadcast buffer before lag
	WriteTimeout   time.Duration // deadline for a single frame write
	CommandTimeout time.Duration // upper bound for one engine invocation
	ReadLimit      int64         // maximum inbound frame size in bytes
	AllowedOrigins []string      // "*" accepts any origin
	PruneInterval  time.Duration // 0 keeps rooms for the process lifetime
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	driver := strings.ToLower(envStr("DB_DRIVER", "mysql"))
	if driver != "mysql" && driver != "postgres" {
		log.Fatalf("invalid DB_DRIVER: %q (want mysql or postgres)", driver)
	}
	return Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),
		DB: DBConfig{
			Driver:       driver,
			User:         must("DB_USER"),
			Pass:         os.Getenv("DB_PASS"),
			Host:         must("DB_HOST"),
			Port:         must("DB_PORT"),
			Name:         must("DB_NAME"),
			MaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		},
		SessionCachePrefix: envStr("SESSION_CACHE_PREFIX", "session"),
		SessionCacheTTLCap: envDur("SESSION_CACHE_TTL_CAP", 5*time.Minute),
		WS: WebSocketConfig{
			RoomBacklog:    envInt("WS_ROOM_BACKLOG", 1024),
			WriteTimeout:   envDur("WS_WRITE_TIMEOUT", 10*time.Second),
			CommandTimeout: envDur("WS_COMMAND_TIMEOUT", 10*time.Second),
			ReadLimit:      int64(envInt("WS_READ_LIMIT", 64*1024)),
			AllowedOrigins: splitList(envStr("WS_ALLOWED_ORIGINS", "*")),
			PruneInterval:  envDur("ROOM_PRUNE_INTERVAL", 0),
		},
	}
}

// IsProduction reports whether the service runs with APP_ENV=prod.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
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
