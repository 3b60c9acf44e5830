package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "octopus"
	envPrefix  = "OCTOPUS"
)

var defaults = map[string]any{
	"api_key":          "",
	"account_number":   "",
	"user_agent":       "octopyenergy/0.1",
	"rest.base_url":    "https://api.octopus.energy/",
	"rest.timeout":     "30s",
	"graphql.url":      "https://api.octopus.energy/v1/graphql/",
	"graphql.timeout":  "30s",
	"graphql.lookback": "2688h",
	"log.level":        "info",
	"log.format":       "console",
	"store.path":       "",
}

// Load reads configuration from path, or from octopus.yaml in the usual
// locations when path is empty, then applies OCTOPUS_* environment variables.
// A missing config file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "octopus"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the upstream API documentation.
	_ = v.BindEnv("api_key", "OCTOPUS_API_KEY", "OCTOPUS_APIKEY")
	_ = v.BindEnv("account_number", "OCTOPUS_ACCOUNT_NUMBER", "OCTOPUS_ACCOUNT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
