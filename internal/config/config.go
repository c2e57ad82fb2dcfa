package config

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIPort    int            `mapstructure:"apiPort"`
	PortalPort int            `mapstructure:"portalPort"`
	JWT        JWTConfig      `mapstructure:"jwt"`
	Database   DatabaseConfig `mapstructure:"database"`
	CORS       CORSConfig     `mapstructure:"cors"`
	Session    SessionConfig  `mapstructure:"session"`
	Log        LogConfig      `mapstructure:"log"`
}

// JWTConfig configures bearer token issuance for the API.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	TTL        time.Duration `mapstructure:"ttl"`
	BcryptCost int           `mapstructure:"bcryptCost"`
}

// DatabaseConfig selects the credential store backend.
// Type is one of "memory", "sqlite" or "postgres".
type DatabaseConfig struct {
	Type       string        `mapstructure:"type"`
	Path       string        `mapstructure:"path"`
	DSN        string        `mapstructure:"dsn"`
	MaxRetries int           `mapstructure:"maxRetries"`
	RetryDelay time.Duration `mapstructure:"retryDelay"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// SessionConfig configures the portal's session framework and its providers.
type SessionConfig struct {
	Secret      string            `mapstructure:"secret"`
	SignInPage  string            `mapstructure:"signInPage"`
	BaseURL     string            `mapstructure:"baseURL"`
	MaxAge      time.Duration     `mapstructure:"maxAge"`
	Google      OAuthClientConfig `mapstructure:"google"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

type OAuthClientConfig struct {
	ClientID     string `mapstructure:"clientID"`
	ClientSecret string `mapstructure:"clientSecret"`
}

// CredentialsConfig controls how the credentials provider authorizes a sign-in.
// Static replaces the store lookup with a fixed identity and is meant for local
// development only.
type CredentialsConfig struct {
	Static StaticIdentity `mapstructure:"static"`
}

type StaticIdentity struct {
	Enabled bool   `mapstructure:"enabled"`
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Email   string `mapstructure:"email"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ErrUnsupportedDatabase is returned for an unknown database.type.
var ErrUnsupportedDatabase = errors.New("unsupported database type")

func setDefaults(v *viper.Viper) {
	v.SetDefault("apiPort", 5000)
	v.SetDefault("portalPort", 3000)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("jwt.bcryptCost", 10)

	v.SetDefault("database.type", "memory")
	v.SetDefault("database.path", "authkit.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxRetries", 5)
	v.SetDefault("database.retryDelay", 2*time.Second)

	v.SetDefault("cors.allowedOrigins", []string{"*"})

	v.SetDefault("session.secret", "")
	v.SetDefault("session.signInPage", "/signin")
	v.SetDefault("session.baseURL", "")
	v.SetDefault("session.maxAge", 30*24*time.Hour)
	v.SetDefault("session.google.clientID", "")
	v.SetDefault("session.google.clientSecret", "")
	v.SetDefault("session.credentials.static.enabled", false)
	v.SetDefault("session.credentials.static.id", "user1")
	v.SetDefault("session.credentials.static.name", "Abhinav Sharma")
	v.SetDefault("session.credentials.static.email", "abhinav@sharma.com")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// bindEnv wires the environment variable names used by existing deployments
// in addition to the names derived by AutomaticEnv.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"apiPort":                     {"APIPORT", "PORT"},
		"session.secret":              {"SESSION_SECRET", "NEXTAUTH_SECRET"},
		"session.baseURL":             {"SESSION_BASEURL", "NEXTAUTH_URL"},
		"session.google.clientID":     {"SESSION_GOOGLE_CLIENTID", "GOOGLE_CLIENT_ID"},
		"session.google.clientSecret": {"SESSION_GOOGLE_CLIENTSECRET", "GOOGLE_CLIENT_SECRET"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig loads the configuration from file and environment variables.
// An empty path skips the file and reads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		log.Println("No config file given, using defaults and environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: apiPort=%d portalPort=%d database=%s", cfg.APIPort, cfg.PortalPort, cfg.Database.Type)
	return &cfg, nil
}

// Validate checks values that viper cannot check while decoding.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid apiPort %d", c.APIPort)
	}
	if c.PortalPort <= 0 || c.PortalPort > 65535 {
		return fmt.Errorf("invalid portalPort %d", c.PortalPort)
	}
	switch c.Database.Type {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDatabase, c.Database.Type)
	}
	if c.Database.Type == "postgres" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for postgres")
	}
	return nil
}
