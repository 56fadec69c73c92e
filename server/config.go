package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFile is looked up in the config directory
const ConfigFile = "rsm.cfg.json"

// Config holds runtime settings
type Config struct {
	LogLevel  string `mapstructure:"logLevel"`
	LogFormat string `mapstructure:"logFormat"` // "console" or "json"

	HTTP struct {
		Addr      string `mapstructure:"addr"`
		PublicURL string `mapstructure:"publicURL"`
	} `mapstructure:"http"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	Replay struct {
		StepInterval time.Duration `mapstructure:"stepInterval"`
	} `mapstructure:"replay"`

	Scenario struct {
		Path string `mapstructure:"path"` // "" plays the reference scenario
	} `mapstructure:"scenario"`

	Spectate struct {
		Secret       string        `mapstructure:"secret"`       // "" generates and persists one
		PasswordHash string        `mapstructure:"passwordHash"` // bcrypt; "" issues tokens freely
		TokenTTL     time.Duration `mapstructure:"tokenTTL"`
		RateLimit    float64       `mapstructure:"rateLimit"` // requests/s per IP
		RateBurst    int           `mapstructure:"rateBurst"`
	} `mapstructure:"spectate"`
}

// LoadConfig reads configDir/rsm.cfg.json if present, then RSM_* environment
// overrides (RSM_DB_PATH, RSM_HTTP_ADDR, ...), on top of defaults.
func LoadConfig(configDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "console")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.publicURL", "http://localhost:8080")
	v.SetDefault("db.path", "rsm.db")
	v.SetDefault("replay.stepInterval", "500ms")
	v.SetDefault("scenario.path", "")
	v.SetDefault("spectate.secret", "")
	v.SetDefault("spectate.passwordHash", "")
	v.SetDefault("spectate.tokenTTL", "24h")
	v.SetDefault("spectate.rateLimit", 2.0)
	v.SetDefault("spectate.rateBurst", 5)

	v.SetConfigName(ConfigFile)
	v.SetConfigType("json")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix("RSM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}
