package main

import (
	"fmt"
	"strings"

	"github.com/allthriveai/allthriveai-sub012/internal/avatar"
	"github.com/allthriveai/allthriveai-sub012/internal/repository"
	"github.com/allthriveai/allthriveai-sub012/internal/service"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	Auth   AuthConfig         `yaml:"auth"`
	Avatar avatar.Config      `yaml:"avatar"`
	Chat   service.ChatConfig `yaml:"chat"`

	// Adventures overrides the default adventure catalog.
	Adventures []string `yaml:"adventures"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	DebugMode bool   `yaml:"debugMode"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
