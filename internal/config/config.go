package config

import "time"

type Config struct {
	APIKey        string        `mapstructure:"api_key"`
	AccountNumber string        `mapstructure:"account_number"`
	UserAgent     string        `mapstructure:"user_agent"`
	REST          RESTConfig    `mapstructure:"rest"`
	GraphQL       GraphQLConfig `mapstructure:"graphql"`
	Log           LogConfig     `mapstructure:"log"`
	Store         StoreConfig   `mapstructure:"store"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GraphQLConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Lookback time.Duration `mapstructure:"lookback"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	// Path of the sqlite database. Empty disables persistence.
	Path string `mapstructure:"path"`
}
