package config

import (
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

type Configuration struct {
	Server    Server         `mapstructure:"server"`
	Collector Collector      `mapstructure:"collector"`
	Database  Database       `mapstructure:"database"`
	Auth      Authentication `mapstructure:"auth"`
	LogLevel  string         `mapstructure:"logLevel" default:"info"`
	LogFormat string         `mapstructure:"logFormat" default:"console"`
}

type Server struct {
	Mode     string `mapstructure:"mode" default:"dev"`
	HTTPPort int    `mapstructure:"httpPort" default:"8000"`
}

type Collector struct {
	NumCollectors        int `mapstructure:"numCollectors" default:"10"`
	DefaultInterval      int `mapstructure:"defaultInterval" default:"60"`
	DefaultRetentionDays int `mapstructure:"defaultRetentionDays" default:"30"`
}

type Database struct {
	Path string `mapstructure:"path" default:"netmond.db"`
}

type Authentication struct {
	Enabled     bool   `mapstructure:"enabled" default:"false"`
	JWTFilePath string `mapstructure:"jwtFilePath"`
}

// Load reads configuration from the given file (optional) and NETMOND_*
// environment variables, on top of struct defaults.
func Load(path string) (*Configuration, error) {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("netmond")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
