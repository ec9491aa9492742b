package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agora/internal/auth"
)

// Auth modes.
const (
	AuthModeStatic = "static"
	AuthModeFile   = "file"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Blobs  BlobsConfig       `yaml:"blobs"`
	Auth   AuthConfig        `yaml:"auth"`
	Events EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Blobs.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// BlobsConfig holds the attachment directory and the URL prefix it is
// served under.
type BlobsConfig struct {
	Path    string `yaml:"path"`
	BaseURL string `yaml:"base_url"`
}

// Validate validates the blob configuration.
func (c *BlobsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, validation.By(func(any) error {
			if !strings.HasPrefix(c.BaseURL, "/") || c.BaseURL == "/" {
				return fmt.Errorf("must be an absolute path such as /files")
			}
			return nil
		})),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode selects where bearer tokens come from:
//   - "static" (default): Tokens listed inline in this file.
//   - "file": TokensFile, a YAML file with a top-level "tokens" list that is
//     reloaded whenever it changes.
type AuthConfig struct {
	Mode       string       `yaml:"mode"`
	Tokens     []auth.Token `yaml:"tokens"`
	TokensFile string       `yaml:"tokens_file"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeStatic
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeStatic, AuthModeFile)),
	); err != nil {
		return err
	}
	switch c.Mode {
	case AuthModeFile:
		if c.TokensFile == "" {
			return fmt.Errorf("auth: mode is %q but tokens_file is empty", AuthModeFile)
		}
	case AuthModeStatic:
		if _, err := auth.NewStatic(c.Tokens); err != nil {
			return err
		}
	}
	return nil
}

// EventsConfig holds event stream configuration.
type EventsConfig struct {
	// Throttle is the minimum interval between feed.updated events.
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./agora.db",
		},
		Blobs: BlobsConfig{
			Path:    "./files",
			BaseURL: "/files",
		},
		Auth: AuthConfig{
			Mode: AuthModeStatic,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
