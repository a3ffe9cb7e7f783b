// Package config loads the service configuration from TOML and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	AuthModeOIDC = "oidc"
	AuthModeHMAC = "hmac"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Auth      AuthConfig      `toml:"auth"`
	Directory DirectoryConfig `toml:"directory"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	URL          string `toml:"url"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Name         string `toml:"name"`
	SSLMode      string `toml:"sslmode"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	SlowQueryMS  int    `toml:"slow_query_ms"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	if d.URL != "" {
		return d.URL
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s port=%d sslmode=%s password=%s",
		d.Host, d.User, d.Name, d.Port, sslmode, d.Password)
}

func (d DatabaseConfig) SlowThreshold() time.Duration {
	return time.Duration(d.SlowQueryMS) * time.Millisecond
}

type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AuthConfig struct {
	Mode          string `toml:"mode"`
	IssuerURL     string `toml:"issuer_url"`
	ClientID      string `toml:"client_id"`
	JWTSecret     string `toml:"jwt_secret"`
	CookieName    string `toml:"cookie_name"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

type DirectoryConfig struct {
	BaseURL      string `toml:"base_url"`
	SecretKey    string `toml:"secret_key"`
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration embedded in config.example.toml.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, the TOML file at
// path (skipped when path is empty or the file does not exist), a .env file
// and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v))
				return
			}
			*dst = n
		}
	}

	num("PORT", &c.Server.Port)
	str("HOST", &c.Server.Host)
	str("GIN_MODE", &c.Server.GinMode)

	str("DB_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)
	str("DB_PATH", &c.Database.Path)

	str("CATALOG_BASE_URL", &c.Catalog.BaseURL)
	num("CATALOG_TIMEOUT_SECONDS", &c.Catalog.TimeoutSeconds)

	str("AUTH_MODE", &c.Auth.Mode)
	str("OIDC_ISSUER_URL", &c.Auth.IssuerURL)
	str("OIDC_CLIENT_ID", &c.Auth.ClientID)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("AUTH_COOKIE_NAME", &c.Auth.CookieName)
	num("JWT_EXPIRES_HOURS", &c.Auth.TokenTTLHours)

	str("DIRECTORY_BASE_URL", &c.Directory.BaseURL)
	str("DIRECTORY_SECRET_KEY", &c.Directory.SecretKey)
	str("DIRECTORY_TOKEN_URL", &c.Directory.TokenURL)
	str("DIRECTORY_CLIENT_ID", &c.Directory.ClientID)
	str("DIRECTORY_CLIENT_SECRET", &c.Directory.ClientSecret)

	str("LOG_LEVEL", &c.Log.Level)

	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))

	return errors.Join(errs...)
}

// Validate checks that the settings needed to serve requests are present.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Catalog.BaseURL == "" {
		problems = append(problems, "catalog.base_url is required")
	}

	switch c.Auth.Mode {
	case AuthModeOIDC:
		if c.Auth.IssuerURL == "" {
			problems = append(problems, "auth.issuer_url is required in oidc mode")
		}
	case AuthModeHMAC:
		if c.Auth.JWTSecret == "" {
			problems = append(problems, "auth.jwt_secret is required in hmac mode")
		}
	default:
		problems = append(problems, fmt.Sprintf("auth.mode %q is not supported", c.Auth.Mode))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
