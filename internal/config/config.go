package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to construct the server
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the listener, the worker pool and the handler
type ServerConfig struct {
	Host string `yaml:"host"` // empty means all interfaces
	Port int    `yaml:"port"`

	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // per read/write on a connection
	Root    string        `yaml:"root"`

	// Bind at construction instead of in ServeForever
	Bind bool `yaml:"bind"`

	ReadChunkSize  int           `yaml:"read_chunk_size"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	StopTimeout    time.Duration `yaml:"stop_timeout"` // per worker
	Name           string        `yaml:"name"`         // Server header

	// Answer malformed request lines with 400 instead of 405
	SplitBadRequest bool `yaml:"split_bad_request"`
}

// LogConfig selects the log destination and verbosity
type LogConfig struct {
	File  string `yaml:"file"` // empty means stdout
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "",
			Port:           8080,
			Workers:        3,
			Timeout:        3 * time.Second,
			Root:           ".",
			Bind:           true,
			ReadChunkSize:  24,
			MaxHeaderBytes: 64 << 10,
			StopTimeout:    500 * time.Millisecond,
			Name:           "OTUServer",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if path is not empty), then HTTPD_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Server.Host = getEnvOrDefault("HTTPD_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("HTTPD_PORT", cfg.Server.Port)
	cfg.Server.Workers = getEnvAsIntOrDefault("HTTPD_WORKERS", cfg.Server.Workers)
	cfg.Server.Timeout = getEnvAsDurationOrDefault("HTTPD_TIMEOUT", cfg.Server.Timeout)
	cfg.Server.Root = getEnvOrDefault("HTTPD_ROOT", cfg.Server.Root)
	cfg.Log.Level = getEnvOrDefault("HTTPD_LOG_LEVEL", cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges. The root directory itself is checked when
// the server is constructed.
func (c *Config) Validate() error {
	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.ReadChunkSize < 1 {
		return fmt.Errorf("read_chunk_size must be at least 1, got %d", s.ReadChunkSize)
	}
	if s.MaxHeaderBytes < s.ReadChunkSize {
		return fmt.Errorf("max_header_bytes (%d) is smaller than read_chunk_size (%d)", s.MaxHeaderBytes, s.ReadChunkSize)
	}
	if s.StopTimeout < 0 {
		return fmt.Errorf("stop_timeout must not be negative, got %s", s.StopTimeout)
	}
	if s.Root == "" {
		return errors.New("root must not be empty")
	}
	return nil
}

// Address returns the listen address in host:port form
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault accepts "5s" style durations or plain seconds
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
