package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent engram configuration stored as config.toml
// in the .engram/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Model       ModelConfig       `toml:"model"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Memory      MemoryConfig      `toml:"memory"`
}

// StorageConfig holds the storage driver selection and its targets.
type StorageConfig struct {
	Driver     string `toml:"driver,omitempty"`
	DSN        string `toml:"dsn,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. engram chat, engram consolidate).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// ModelConfig holds the generative model provider settings.
type ModelConfig struct {
	APIKey         string `toml:"api_key,omitempty"`
	Generation     string `toml:"generation,omitempty"`
	Embedding      string `toml:"embedding,omitempty"`
	TimeoutSeconds uint   `toml:"timeout_seconds,omitempty"`
}

// EmbeddingConfig holds embedding gateway settings.
type EmbeddingConfig struct {
	Dimensions uint `toml:"dimensions,omitempty"`
}

// EventStreamConfig holds turn event publishing settings.
type EventStreamConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// MemoryConfig holds the recall window sizes used when assembling prompts.
type MemoryConfig struct {
	HistoryWindow uint `toml:"history_window,omitempty"`
	MemoryWindow  uint `toml:"memory_window,omitempty"`
	DomainWindow  uint `toml:"domain_window,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.dsn": {
		get: func(c *Config) string { return c.Storage.DSN },
		set: func(c *Config, v string) error { c.Storage.DSN = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"model.api_key": {
		get: func(c *Config) string { return c.Model.APIKey },
		set: func(c *Config, v string) error { c.Model.APIKey = v; return nil },
	},
	"model.generation": {
		get: func(c *Config) string { return c.Model.Generation },
		set: func(c *Config, v string) error { c.Model.Generation = v; return nil },
	},
	"model.embedding": {
		get: func(c *Config) string { return c.Model.Embedding },
		set: func(c *Config, v string) error { c.Model.Embedding = v; return nil },
	},
	"model.timeout_seconds": {
		get: func(c *Config) string { return formatUint(c.Model.TimeoutSeconds) },
		set: func(c *Config, v string) error { return parseUint("model.timeout_seconds", v, &c.Model.TimeoutSeconds) },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return formatUint(c.Embedding.Dimensions) },
		set: func(c *Config, v string) error { return parseUint("embedding.dimensions", v, &c.Embedding.Dimensions) },
	},
	"eventstream.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.EventStream.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for eventstream.enabled: %w", err)
			}
			c.EventStream.Enabled = b
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"memory.history_window": {
		get: func(c *Config) string { return formatUint(c.Memory.HistoryWindow) },
		set: func(c *Config, v string) error { return parseUint("memory.history_window", v, &c.Memory.HistoryWindow) },
	},
	"memory.memory_window": {
		get: func(c *Config) string { return formatUint(c.Memory.MemoryWindow) },
		set: func(c *Config, v string) error { return parseUint("memory.memory_window", v, &c.Memory.MemoryWindow) },
	},
	"memory.domain_window": {
		get: func(c *Config) string { return formatUint(c.Memory.DomainWindow) },
		set: func(c *Config, v string) error { return parseUint("memory.domain_window", v, &c.Memory.DomainWindow) },
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string, target *uint) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = uint(n)
	return nil
}
