package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
	"github.com/spf13/viper"
)

// Config holds all configuration for the relay.
type Config struct {
	ServerPort int    `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`

	// Region is informational only (logged and shown on the info endpoint).
	Region string `mapstructure:"REGION"`

	ProviderTimeout   time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	StatusPollEnabled bool          `mapstructure:"STATUS_POLL_ENABLED"`
	StatusPollDelay   time.Duration `mapstructure:"STATUS_POLL_DELAY"`
	UserAgents        []string      `mapstructure:"USER_AGENTS"`

	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`

	Providers []domain.ProviderConfig `mapstructure:"PROVIDERS"`
}

// Load reads config.defaults.yaml (if present) and APP_-prefixed environment variables.
// serviceName is used only for log context.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	return load(v, serviceName)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(serviceName, path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v, serviceName)
}

func load(v *viper.Viper, serviceName string) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("APP") // APP_LOG_LEVEL, APP_SERVER_PORT etc.

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REGION", "development")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("STATUS_POLL_ENABLED", false)
	v.SetDefault("STATUS_POLL_DELAY", "5s")
	v.SetDefault("OTLP_ENDPOINT", "")
	_ = v.BindEnv("REGION", "APP_REGION", "VERCEL_REGION")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("%s: configuration file not found; using defaults and environment variables.", serviceName)
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = domain.DefaultProviders()
	}
	for i := range cfg.Providers {
		cfg.Providers[i] = cfg.Providers[i].Normalize()
		if err := cfg.Providers[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
