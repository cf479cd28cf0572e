// Package config loads the converter runtime configuration.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime settings shared by the server and the CLI.
type Config struct {
	Port           int    `mapstructure:"port"`
	SofficePath    string `mapstructure:"soffice_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	TempDir        string `mapstructure:"temp_dir"`
	Debug          bool   `mapstructure:"debug"`
	LogLevel       string `mapstructure:"log_level"`
}

// Timeout returns the conversion timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Port:           8001,
		SofficePath:    "soffice",
		TimeoutSeconds: 180,
		TempDir:        "",
		Debug:          false,
		LogLevel:       "info",
	}
}

// LoadConfig reads configuration from the given file, or from
// $HOME/.converter.yaml then ./.converter.yaml when no path is given.
// Environment variables prefixed CONVERTER_ override file values. A missing
// search-path config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".converter")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CONVERTER")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := NewDefaultConfig()
	v.SetDefault("port", defaults.Port)
	v.SetDefault("soffice_path", defaults.SofficePath)
	v.SetDefault("timeout_seconds", defaults.TimeoutSeconds)
	v.SetDefault("temp_dir", defaults.TempDir)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("log_level", defaults.LogLevel)
}
