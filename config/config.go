package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// PermsCode - Minimal perms code for the bot to work
// (view channel, send messages, manage messages, manage roles)
const PermsCode int64 = 268446720

// Config - Runtime configuration, loaded from GUARDIAN_* env vars
type Config struct {
	Token  string `envconfig:"TOKEN" required:"true"`
	Prefix string `envconfig:"PREFIX" default:"!"`
	DBPath string `envconfig:"DB_PATH" default:"data/data.db"`

	// Blocklist file for the default text scorer, one term per line,
	// optional weight after a space (defaults to 1.0).
	BlocklistPath string `envconfig:"BLOCKLIST_PATH" default:"blocklist.txt"`

	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	MaxImageBytes int64         `envconfig:"MAX_IMAGE_BYTES" default:"8388608"`

	// Hash index retention cap, oldest non-flagged records evicted past this.
	IndexCap int `envconfig:"INDEX_CAP" default:"10000"`

	// Gateway event workers for message screening.
	Workers int `envconfig:"WORKERS" default:"8"`
}

// Per-guild tuning defaults, used when a profile leaves them unset
const (
	DefaultHashThreshold   = 5
	DefaultTextThreshold   = 1.0
	DefaultRepostThreshold = 3
)

// UrlCacheSize - url->hash memo cache capacity
const UrlCacheSize = 2048

// UrlCacheTTL - url->hash memo cache entry lifetime
const UrlCacheTTL = 6 * time.Hour

// ProfileCacheSize - guild profile read-through cache capacity
const ProfileCacheSize = 512

// Load - Read configuration from the environment
func Load() (Config, error) {
	var cfg Config
	err := envconfig.Process("guardian", &cfg)
	return cfg, err
}
