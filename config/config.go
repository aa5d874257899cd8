// ABOUTME: Application configuration loaded from env, .env files and an optional YAML file
// ABOUTME: Exposes Edumate and FSI credentials plus sync, storage and logging settings
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AppName = "patronsync"

	DefaultDomain      = "kambala.nsw.edu.au"
	DefaultPageSize    = 50
	DefaultHTTPTimeout = 30 * time.Second
)

// ErrMissingSetting is wrapped by Validate for every absent credential.
var ErrMissingSetting = errors.New("missing required setting")

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"fsi.url":               "FSI_URL",
	"fsi.api_key":           "FSI_API_KEY",
	"fsi.api_secret":        "FSI_API_SECRET",
	"fsi.page_size":         "PATRONSYNC_PAGE_SIZE",
	"edumate.url":           "EDUMATE_URL",
	"edumate.auth_url":      "EDUMATE_AUTH_URL",
	"edumate.client_id":     "EDUMATE_CLIENT_ID",
	"edumate.client_secret": "EDUMATE_CLIENT_SECRET",
	"domain":                "PATRONSYNC_DOMAIN",
	"upsert_policy":         "PATRONSYNC_UPSERT_POLICY",
	"db_path":               "PATRONSYNC_DB_PATH",
	"http_timeout":          "PATRONSYNC_HTTP_TIMEOUT",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
	"log.output":            "LOG_OUTPUT",
}

type FSIConfig struct {
	URL       string
	APIKey    string
	APISecret string
	PageSize  int
}

type EdumateConfig struct {
	URL          string
	AuthURL      string
	ClientID     string
	ClientSecret string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Config holds everything a sync needs.
type Config struct {
	FSI          FSIConfig
	Edumate      EdumateConfig
	Domain       string
	UpsertPolicy string
	DBPath       string
	HTTPTimeout  time.Duration
	Log          LogConfig

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string
}

// Load reads configuration in order of precedence: environment variables,
// .env.local, .env, the YAML config file, defaults. An explicit
// configFile must exist; otherwise patronsync.yaml is looked up in the
// working directory and the XDG config home.
func Load(configFile string) (*Config, error) {
	loadEnvFiles()

	// Only the bound names are read; bare key names such as DOMAIN are not.
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		FSI: FSIConfig{
			URL:       v.GetString("fsi.url"),
			APIKey:    v.GetString("fsi.api_key"),
			APISecret: v.GetString("fsi.api_secret"),
			PageSize:  v.GetInt("fsi.page_size"),
		},
		Edumate: EdumateConfig{
			URL:          v.GetString("edumate.url"),
			AuthURL:      v.GetString("edumate.auth_url"),
			ClientID:     v.GetString("edumate.client_id"),
			ClientSecret: v.GetString("edumate.client_secret"),
		},
		Domain:       v.GetString("domain"),
		UpsertPolicy: v.GetString("upsert_policy"),
		DBPath:       v.GetString("db_path"),
		HTTPTimeout:  v.GetDuration("http_timeout"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		ConfigFile: v.ConfigFileUsed(),
	}

	if cfg.FSI.PageSize <= 0 {
		cfg.FSI.PageSize = DefaultPageSize
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}

	return cfg, nil
}

type setting struct {
	env   string
	value string
}

// Validate reports every missing credential in one error.
func (c *Config) Validate() error {
	return missing(append(c.fsiSettings(), c.edumateSettings()...))
}

// ValidateFSI reports missing FSI credentials only.
func (c *Config) ValidateFSI() error {
	return missing(c.fsiSettings())
}

func (c *Config) fsiSettings() []setting {
	return []setting{
		{"FSI_URL", c.FSI.URL},
		{"FSI_API_KEY", c.FSI.APIKey},
		{"FSI_API_SECRET", c.FSI.APISecret},
	}
}

func (c *Config) edumateSettings() []setting {
	return []setting{
		{"EDUMATE_URL", c.Edumate.URL},
		{"EDUMATE_AUTH_URL", c.Edumate.AuthURL},
		{"EDUMATE_CLIENT_ID", c.Edumate.ClientID},
		{"EDUMATE_CLIENT_SECRET", c.Edumate.ClientSecret},
	}
}

func missing(settings []setting) error {
	var errs []error
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, s.env))
		}
	}
	return errors.Join(errs...)
}

// DefaultDBPath is the run history database under the XDG data home.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, AppName, "history.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("domain", DefaultDomain)
	v.SetDefault("upsert_policy", "continue")
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("fsi.page_size", DefaultPageSize)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
}

// loadEnvFiles loads .env.local before .env. godotenv never overrides a
// variable that is already set, so the real environment wins over
// .env.local, which wins over .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
