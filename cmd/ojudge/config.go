package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ojudge/internal/cache"
	"ojudge/internal/repository"
	"ojudge/pkg/utils/logger"
)

const (
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server timeouts. The bind address comes from
// the service definition file.
type ServerConfig struct {
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	// Driver is "memory" or "mysql".
	Driver string                 `yaml:"driver"`
	MySQL  repository.MySQLConfig `yaml:"mysql"`
}

// JudgeConfig holds judging pool settings.
type JudgeConfig struct {
	Workers  int    `yaml:"workers"`
	WorkRoot string `yaml:"workRoot"`
	DataRoot string `yaml:"dataRoot"`
}

// AppConfig holds the deployment configuration, separate from the
// service definition file.
type AppConfig struct {
	Server  ServerConfig      `yaml:"server"`
	Logger  logger.Config     `yaml:"logger"`
	Storage StorageConfig     `yaml:"storage"`
	Redis   cache.RedisConfig `yaml:"redis"`
	Judge   JudgeConfig       `yaml:"judge"`
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		Storage: StorageConfig{Driver: "memory"},
		Judge:   JudgeConfig{Workers: 4},
	}
}

// loadAppConfig reads the YAML deployment config. A missing file means
// defaults, so the service runs with nothing but the definition file.
func loadAppConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Judge.Workers <= 0 {
		cfg.Judge.Workers = 4
	}
	return cfg, nil
}
