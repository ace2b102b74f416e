package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"sourcewatch/internal/logging"
)

// Monitor kinds, mapping each configured source to its strategy pair.
const (
	KindSetDiff     = "setdiff"
	KindMultiSource = "multisource"
	KindPrice       = "price"
	KindOnchain     = "onchain"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Logging  logging.Config  `mapstructure:"logging"`
	Database DatabaseConfig  `mapstructure:"database"`
	Fetch    FetchConfig     `mapstructure:"fetch"`
	Ethereum EthereumConfig  `mapstructure:"ethereum"`
	Telegram TelegramConfig  `mapstructure:"telegram"`
	Render   RenderConfig    `mapstructure:"render"`
	Monitors []MonitorConfig `mapstructure:"monitors"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// FetchConfig bounds source retrieval.
type FetchConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// EthereumConfig covers on-chain feed access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig describes the notification channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RenderConfig bounds diff rendering.
type RenderConfig struct {
	ContextLines int `mapstructure:"context_lines"`
	MaxLen       int `mapstructure:"max_len"`
}

// SourceConfig declares one fetchable sub-source.
type SourceConfig struct {
	Key    string            `mapstructure:"key"`
	URL    string            `mapstructure:"url"`
	Header map[string]string `mapstructure:"header"`
}

// MonitorConfig declares one monitored source and its comparator tuning.
type MonitorConfig struct {
	Name     string         `mapstructure:"name"`
	Kind     string         `mapstructure:"kind"`
	Interval time.Duration  `mapstructure:"interval"`
	Disabled bool           `mapstructure:"disabled"`
	Sources  []SourceConfig `mapstructure:"sources"`

	// KeyBy selects the set-diff composite key: "id" or "id_name".
	KeyBy string `mapstructure:"key_by"`

	// Hysteresis tuning for price/onchain kinds. The defaults are
	// domain-tuned, environment-specific values, hence configuration.
	Tolerance   float64       `mapstructure:"tolerance"`
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// Onchain-kind parameters.
	Contract string `mapstructure:"contract"`
	ItemName string `mapstructure:"item_name"`
	Field    string `mapstructure:"field"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOURCEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyMonitorDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sourcewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.retry_delay", "2s")
	v.SetDefault("fetch.user_agent", "sourcewatch/1.0")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")

	v.SetDefault("render.context_lines", 3)
	v.SetDefault("render.max_len", 3500)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func (c *Config) applyMonitorDefaults() {
	for i := range c.Monitors {
		m := &c.Monitors[i]
		if m.Interval <= 0 {
			m.Interval = 30 * time.Minute
		}
		if m.Kind == KindPrice || m.Kind == KindOnchain {
			if m.Tolerance <= 0 {
				m.Tolerance = 500
			}
			if m.GracePeriod <= 0 {
				m.GracePeriod = 12 * time.Hour
			}
		}
		if m.KeyBy == "" {
			m.KeyBy = "id"
		}
	}
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Render.MaxLen <= 0 {
		return fmt.Errorf("render.max_len must be greater than zero")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries cannot be negative")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token must be configured")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id must be configured")
		}
	}

	seen := make(map[string]struct{}, len(c.Monitors))
	for _, m := range c.Monitors {
		if m.Name == "" {
			return fmt.Errorf("monitor without a name")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("duplicate monitor name %q", m.Name)
		}
		seen[m.Name] = struct{}{}

		switch m.Kind {
		case KindSetDiff, KindMultiSource, KindPrice:
			if len(m.Sources) == 0 {
				return fmt.Errorf("monitor %q: at least one source required", m.Name)
			}
		case KindOnchain:
			if m.Contract == "" {
				return fmt.Errorf("monitor %q: contract address required", m.Name)
			}
			if c.Ethereum.RPCURL == "" {
				return fmt.Errorf("monitor %q: ethereum.rpc_url required for onchain kind", m.Name)
			}
		default:
			return fmt.Errorf("monitor %q: unknown kind %q", m.Name, m.Kind)
		}

		if m.KeyBy != "id" && m.KeyBy != "id_name" {
			return fmt.Errorf("monitor %q: key_by must be id or id_name", m.Name)
		}
	}
	return nil
}
