package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vogtb/go-spreadsheet/internal/logging"
)

// store kinds
const (
	StoreBolt  = "bolt"
	StoreRedis = "redis"
)

// Config is the sheetctl configuration file
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Log     LogConfig     `toml:"log"`
	History HistoryConfig `toml:"history"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	Kind          string        `toml:"kind"`
	Path          string        `toml:"path"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	Prefix        string        `toml:"prefix"`
	TTL           time.Duration `toml:"ttl"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type HistoryConfig struct {
	// Limit bounds the undo stack, 0 keeps the model default
	Limit int `toml:"limit"`
}

// Default returns the configuration used when no file is given. keys missing
// from a file keep these values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Kind:      StoreBolt,
			Path:      "workbooks.db",
			RedisAddr: "localhost:6379",
			Prefix:    "sheetctl:workbook:",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the TOML file at path over the defaults. an empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.decode(string(data)); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a TOML document over the defaults
func Parse(doc string) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(doc); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(doc string) error {
	md, err := toml.Decode(doc, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return c.Validate()
}

// Validate checks values a file can get wrong
func (c *Config) Validate() error {
	if !slices.Contains([]string{StoreBolt, StoreRedis}, c.Store.Kind) {
		return fmt.Errorf("store.kind must be %q or %q, got %q", StoreBolt, StoreRedis, c.Store.Kind)
	}
	if c.Store.Kind == StoreBolt && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the bolt store")
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative")
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
