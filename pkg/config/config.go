// Package config loads perch settings from defaults, a config file, a .env
// file, PERCH_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/yurifrl/perch/pkg/lunchmoney"
	"github.com/yurifrl/perch/pkg/plaid"
	"github.com/yurifrl/perch/pkg/provider"
)

const (
	EnvPrefix = "PERCH"
	AppName   = "perch"
)

type LunchMoney struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type Plaid struct {
	BackendURL string `mapstructure:"backend_url" yaml:"backend_url"`
}

type YNAB struct {
	BudgetID string `mapstructure:"budget_id" yaml:"budget_id"`
}

// Store selects where the viewed set and provider choice live.
type Store struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
}

// Credentials selects where API keys and tokens live.
type Credentials struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type Config struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	LunchMoney  LunchMoney    `mapstructure:"lunchmoney" yaml:"lunchmoney"`
	Plaid       Plaid         `mapstructure:"plaid" yaml:"plaid"`
	YNAB        YNAB          `mapstructure:"ynab" yaml:"ynab"`
	Store       Store         `mapstructure:"store" yaml:"store"`
	Credentials Credentials   `mapstructure:"credentials" yaml:"credentials"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Dwell       time.Duration `mapstructure:"dwell" yaml:"dwell"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	LogLevel    string        `mapstructure:"log_level" yaml:"log_level"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"provider":     "provider",
	"log-level":    "log_level",
	"budget":       "ynab.budget_id",
	"backend-url":  "plaid.backend_url",
	"store":        "store.driver",
	"redis-addr":   "store.redis_addr",
	"http-timeout": "http_timeout",
}

// Dir is the per-user directory perch keeps its files in.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return "." + AppName
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("provider", provider.LunchMoney)
	v.SetDefault("lunchmoney.base_url", lunchmoney.DefaultBaseURL)
	v.SetDefault("plaid.backend_url", plaid.DefaultBackendURL)
	v.SetDefault("ynab.budget_id", "last-used")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", filepath.Join(dir, "state.json"))
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("credentials.driver", "keyring")
	v.SetDefault("credentials.path", filepath.Join(dir, "credentials.json"))
	v.SetDefault("cache_ttl", "30s")
	v.SetDefault("dwell", "3s")
	v.SetDefault("http_timeout", provider.DefaultTimeout.String())
	v.SetDefault("log_level", "info")
}

// Build resolves the configuration. cfgFile may be empty, in which case
// config.yaml is looked up in the working directory and in Dir. flags may be
// nil.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv exports the variables in path that are not already set. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case provider.LunchMoney, provider.Plaid, provider.YNAB:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Store.Driver {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Credentials.Driver {
	case "memory", "file", "keyring":
	default:
		return fmt.Errorf("unknown credentials driver %q", c.Credentials.Driver)
	}
	if c.CacheTTL < 0 || c.Dwell <= 0 || c.HTTPTimeout <= 0 {
		return errors.New("cache_ttl, dwell and http_timeout must be positive")
	}
	return nil
}

// Level is the parsed log level, Info when unparseable.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Server is the bank-aggregation proxy's configuration. The Plaid variables
// are read without a prefix to match Plaid's own tooling.
type Server struct {
	ClientID    string `mapstructure:"client_id"`
	Secret      string `mapstructure:"secret"`
	Environment string `mapstructure:"env"`
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
}

func BuildServer() (*Server, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("env", "sandbox")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	for key, env := range map[string]string{
		"client_id": "PLAID_CLIENT_ID",
		"secret":    "PLAID_SECRET",
		"env":       "PLAID_ENV",
		"port":      "PORT",
		"log_level": "LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	var s Server
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode server config: %w", err)
	}
	if s.ClientID == "" || s.Secret == "" {
		return nil, errors.New("PLAID_CLIENT_ID and PLAID_SECRET must be set")
	}
	return &s, nil
}

func (s *Server) Level() log.Level {
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
