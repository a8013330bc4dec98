// Package config loads and holds the desensitizer configuration.
// Settings are layered: built-in defaults, then desensitizer-config.json,
// then a .env file, then environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"numeric-desensitizer/internal/textio"
)

// DefaultFile is read when no explicit config path is given.
const DefaultFile = "desensitizer-config.json"

// Config holds the full configuration.
type Config struct {
	APIPort      int    `json:"apiPort"`
	BindAddress  string `json:"bindAddress"`
	APIToken     string `json:"apiToken"`
	MaxBodyBytes int64  `json:"maxBodyBytes"`
	LogLevel     string `json:"logLevel"`

	// StorePath is the bbolt file for API mappings; empty keeps them in memory.
	StorePath string `json:"storePath"`

	// CacheSize is how many decoded mappings the API keeps in memory in
	// front of the bbolt store; 0 disables the cache.
	CacheSize int `json:"cacheSize"`

	// Extensions limits which files directory runs pick up.
	Extensions []string `json:"extensions"`
}

// Load returns config with defaults overridden by the JSON file at path
// (DefaultFile when empty), .env and environment variables. A missing
// default file is fine; a missing explicit file or unparsable JSON is an
// error.
func Load(path string) (*Config, error) {
	cfg := defaults()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := loadFile(cfg, path, explicit); err != nil {
		return nil, err
	}
	// Best-effort: a .env in the working directory feeds loadEnv.
	_ = godotenv.Load()
	loadEnv(cfg)
	return cfg, nil
}

// Addr is the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.APIPort)
}

func defaults() *Config {
	return &Config{
		APIPort:      8090,
		BindAddress:  "127.0.0.1",
		MaxBodyBytes: 10 << 20,
		LogLevel:     "info",
		StorePath:    "mappings.db",
		CacheSize:    256,
		Extensions:   append([]string(nil), textio.DefaultExtensions...),
	}
}

func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = n
		}
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("STORE_PATH"); ok {
		cfg.StorePath = v
	}
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("FILE_EXTENSIONS"); v != "" {
		cfg.Extensions = parseExtensions(v)
	}
}

// parseExtensions turns "md, .TXT,csv" into [".md" ".txt" ".csv"].
func parseExtensions(v string) []string {
	var out []string
	for _, e := range strings.Split(v, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
