package config

import (
	"strings"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for stylefeed.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"      yaml:"http"`
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// HTTPConfig controls the polite HTTP client.
type HTTPConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  yaml:"request_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	RespectRobots   bool          `mapstructure:"respect_robots"   yaml:"respect_robots"`
	FollowRedirects bool          `mapstructure:"follow_redirects" yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"    yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"    yaml:"max_body_size"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"   yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"     yaml:"tls_insecure"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
}

// BrowserConfig controls the headless-browser fallback.
type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled"            yaml:"enabled"`
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"       yaml:"settle_delay"`
	ScrollPasses      int           `mapstructure:"scroll_passes"      yaml:"scroll_passes"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
}

// StorageConfig controls the storage backend.
type StorageConfig struct {
	Type       string `mapstructure:"type"       yaml:"type"` // postgres, mongodb, jsonl
	DSN        string `mapstructure:"dsn"        yaml:"dsn"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Table      string `mapstructure:"table"      yaml:"table"`
	Collection string `mapstructure:"collection" yaml:"collection"`
	Path       string `mapstructure:"path"       yaml:"path"` // jsonl output file
	BatchSize  int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// EmbeddingConfig controls the image-embedding service client.
type EmbeddingConfig struct {
	Endpoint       string        `mapstructure:"endpoint"        yaml:"endpoint"`
	Model          string        `mapstructure:"model"           yaml:"model"`
	Dimensions     int           `mapstructure:"dimensions"      yaml:"dimensions"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			RequestTimeout:  30 * time.Second,
			PolitenessDelay: time.Second,
			RespectRobots:   false,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 << 20, // 10 MiB
			MaxIdleConns:    20,
			IdleConnTimeout: 90 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			Enabled:           true,
			Headless:          true,
			NavigationTimeout: 60 * time.Second,
			SettleDelay:       2 * time.Second,
			ScrollPasses:      3,
			Stealth:           true,
		},
		Storage: StorageConfig{
			Type:       "postgres",
			Table:      "products",
			Database:   "stylefeed",
			Collection: "products",
			BatchSize:  50,
		},
		Embedding: EmbeddingConfig{
			Model:          "google/siglip-base-patch16-384",
			Dimensions:     768,
			MaxRetries:     3,
			RequestTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Expand substitutes {name} placeholders in a URL template. Unknown
// placeholders are left untouched so malformed templates surface in
// logs instead of silently vanishing.
func Expand(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
