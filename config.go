package main

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/schedule"
	"github.com/soter-security/soter/transport"
	"github.com/soter-security/soter/utils"
)

const envPrefix = "SOTER"

type config struct {
	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Retry   int           `mapstructure:"retry"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`

	Cache struct {
		Backend string        `mapstructure:"backend"`
		Dir     string        `mapstructure:"dir"`
		DSN     string        `mapstructure:"dsn"`
		TTL     time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Site struct {
		Name string `mapstructure:"name"`
		URL  string `mapstructure:"url"`
	} `mapstructure:"site"`

	Inventory struct {
		Source       string   `mapstructure:"source"`
		Manifest     string   `mapstructure:"manifest"`
		WordPress    string   `mapstructure:"wordpress"`
		ActiveThemes []string `mapstructure:"active_themes"`
	} `mapstructure:"inventory"`

	Notify struct {
		Enabled      bool   `mapstructure:"enabled"`
		Stdout       bool   `mapstructure:"stdout"`
		SlackWebhook string `mapstructure:"slack_webhook"`
		ReportDir    string `mapstructure:"report_dir"`
	} `mapstructure:"notify"`

	Schedule struct {
		Interval time.Duration `mapstructure:"interval"`
		StateDir string        `mapstructure:"state_dir"`
	} `mapstructure:"schedule"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	Debug bool `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", transport.DefaultBaseURL)
	v.SetDefault("api.retry", 0)
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", utils.CacheDir())
	v.SetDefault("cache.dsn", "")
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("site.name", "WordPress")
	v.SetDefault("site.url", "")

	v.SetDefault("inventory.source", "manifest")
	v.SetDefault("inventory.manifest", "inventory.yaml")
	v.SetDefault("inventory.wordpress", "/var/www/html")
	v.SetDefault("inventory.active_themes", []string{})

	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.stdout", true)
	v.SetDefault("notify.slack_webhook", "")
	v.SetDefault("notify.report_dir", "")

	v.SetDefault("schedule.interval", schedule.DefaultInterval)
	v.SetDefault("schedule.state_dir", utils.CacheDir())

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("debug", false)
}

// loadConfig merges, from lowest to highest precedence: defaults, the config
// file, .env and the environment (SOTER_CACHE_BACKEND for cache.backend).
// Flags are bound to v by the caller.
func loadConfig(v *viper.Viper, cfgFile string) (config, error) {
	_ = godotenv.Load()

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("soter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/soter")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !xerrors.As(err, &notFound) {
			return config{}, xerrors.Errorf("failed to read the config file: %w", err)
		}
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return config{}, xerrors.Errorf("failed to decode the config: %w", err)
	}
	if err := c.validate(); err != nil {
		return config{}, xerrors.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func (c config) validate() error {
	switch c.Cache.Backend {
	case "memory", "file", "sqlite", "postgres":
	default:
		return xerrors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if (c.Cache.Backend == "sqlite" || c.Cache.Backend == "postgres") && c.Cache.DSN == "" {
		return xerrors.Errorf("cache.dsn is required for the %s backend", c.Cache.Backend)
	}

	switch c.Inventory.Source {
	case "manifest", "wordpress":
	default:
		return xerrors.Errorf("unknown inventory source %q", c.Inventory.Source)
	}

	if c.Cache.TTL <= 0 {
		return xerrors.New("cache.ttl must be positive")
	}
	if c.API.Retry < 0 {
		return xerrors.New("api.retry must not be negative")
	}
	return nil
}
