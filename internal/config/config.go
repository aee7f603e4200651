// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the variable pointing at the YAML config file.
const FileEnv = "UCONNECT_CONFIG"

type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // text | json
	Storage   string `yaml:"storage"`   // postgres | memory

	Postgres struct {
		URL      string `yaml:"url"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Database string `yaml:"database"`
	} `yaml:"postgres"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	Auth struct {
		TokenTTL       time.Duration `yaml:"tokenTTL"`
		PrivateKeyPath string        `yaml:"privateKeyPath"`
		PublicKeyPath  string        `yaml:"publicKeyPath"`
	} `yaml:"auth"`

	RequestTimeout time.Duration `yaml:"requestTimeout"`

	WebSocket struct {
		RequireAuth    bool     `yaml:"requireAuth"`
		OriginPatterns []string `yaml:"originPatterns"`
		SendBuffer     int      `yaml:"sendBuffer"`
	} `yaml:"websocket"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	c := &Config{
		Port:           8080,
		LogLevel:       "info",
		LogFormat:      "text",
		Storage:        "postgres",
		RequestTimeout: 10 * time.Second,
	}
	c.Postgres.Host = "localhost"
	c.Postgres.Port = "5432"
	c.Redis.Addr = "localhost:6379"
	c.Redis.Channel = "uconnect_events"
	c.WebSocket.OriginPatterns = []string{"*"}
	c.WebSocket.SendBuffer = 16
	return c
}

// Load builds the configuration from defaults, the file named by
// UCONNECT_CONFIG (if set) and the environment.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.Port, err = getEnvInt("PORT", c.Port); err != nil {
		return err
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Storage = getEnv("STORAGE", c.Storage)

	c.Postgres.URL = getEnv("DATABASE_URL", c.Postgres.URL)
	c.Postgres.User = getEnv("POSTGRES_USER", c.Postgres.User)
	c.Postgres.Password = getEnv("POSTGRES_PASSWORD", c.Postgres.Password)
	c.Postgres.Host = getEnv("PG_HOST", c.Postgres.Host)
	c.Postgres.Port = getEnv("PG_PORT", c.Postgres.Port)
	c.Postgres.Database = getEnv("PG_DATABASE", c.Postgres.Database)

	if c.Redis.Enabled, err = getEnvBool("REDIS_ENABLED", c.Redis.Enabled); err != nil {
		return err
	}
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	c.Redis.Channel = getEnv("REDIS_CHANNEL", c.Redis.Channel)

	// "never" and "0" keep tokens without an exp claim
	if v := os.Getenv("TOKEN_EXPIRE_TIME"); v != "" {
		if v == "never" || v == "0" {
			c.Auth.TokenTTL = 0
		} else if c.Auth.TokenTTL, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
		}
	}
	c.Auth.PrivateKeyPath = getEnv("JWT_PRIVATE_KEY_PATH", c.Auth.PrivateKeyPath)
	c.Auth.PublicKeyPath = getEnv("JWT_PUBLIC_KEY_PATH", c.Auth.PublicKeyPath)

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if c.RequestTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
	}

	if c.WebSocket.RequireAuth, err = getEnvBool("WS_REQUIRE_AUTH", c.WebSocket.RequireAuth); err != nil {
		return err
	}
	if v := os.Getenv("WS_ORIGIN_PATTERNS"); v != "" {
		c.WebSocket.OriginPatterns = splitList(v)
	}
	if c.WebSocket.SendBuffer, err = getEnvInt("WS_SEND_BUFFER", c.WebSocket.SendBuffer); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage must be postgres or memory, got %q", c.Storage)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive")
	}
	if (c.Auth.PrivateKeyPath == "") != (c.Auth.PublicKeyPath == "") {
		return fmt.Errorf("both JWT key paths must be set together")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the parts.
func (c *Config) DSN() string {
	if c.Postgres.URL != "" {
		return c.Postgres.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Postgres.Host + ":" + c.Postgres.Port,
		Path:   "/" + c.Postgres.Database,
	}
	if c.Postgres.User != "" {
		u.User = url.UserPassword(c.Postgres.User, c.Postgres.Password)
	}
	return u.String()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
