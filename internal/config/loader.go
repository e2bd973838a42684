package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("STYLEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stylefeed")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".stylefeed"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadSites reads the site configuration list from a YAML file. The
// file holds either a top-level "sites" list or a bare list.
func LoadSites(path string) ([]Site, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sites config %s: %w", path, err)
	}

	var wrapper struct {
		Sites []Site `mapstructure:"sites"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal sites config: %w", err)
	}
	if len(wrapper.Sites) == 0 {
		return nil, fmt.Errorf("no sites configured in %s", path)
	}
	return wrapper.Sites, nil
}

// FilterSites keeps only the sites whose brand matches one of the
// comma-separated names; "all" or "" keeps everything.
func FilterSites(sites []Site, brands string) []Site {
	if brands == "" || strings.EqualFold(brands, "all") {
		return sites
	}
	want := make(map[string]bool)
	for _, b := range strings.Split(brands, ",") {
		want[strings.ToLower(strings.TrimSpace(b))] = true
	}
	var out []Site
	for _, s := range sites {
		if want[strings.ToLower(s.Brand)] {
			out = append(out, s)
		}
	}
	return out
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("http.request_timeout", cfg.HTTP.RequestTimeout)
	v.SetDefault("http.politeness_delay", cfg.HTTP.PolitenessDelay)
	v.SetDefault("http.respect_robots", cfg.HTTP.RespectRobots)
	v.SetDefault("http.follow_redirects", cfg.HTTP.FollowRedirects)
	v.SetDefault("http.max_redirects", cfg.HTTP.MaxRedirects)
	v.SetDefault("http.max_body_size", cfg.HTTP.MaxBodySize)
	v.SetDefault("http.max_idle_conns", cfg.HTTP.MaxIdleConns)
	v.SetDefault("http.idle_conn_timeout", cfg.HTTP.IdleConnTimeout)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)

	v.SetDefault("browser.enabled", cfg.Browser.Enabled)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.settle_delay", cfg.Browser.SettleDelay)
	v.SetDefault("browser.scroll_passes", cfg.Browser.ScrollPasses)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.table", cfg.Storage.Table)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.collection", cfg.Storage.Collection)
	v.SetDefault("storage.batch_size", cfg.Storage.BatchSize)

	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.dimensions", cfg.Embedding.Dimensions)
	v.SetDefault("embedding.max_retries", cfg.Embedding.MaxRetries)
	v.SetDefault("embedding.request_timeout", cfg.Embedding.RequestTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
