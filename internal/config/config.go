// Package config declares the settings shared by the server and corpusctl.
//
// The structs are plain kong targets: each field names its flag, its
// environment variable and its default in tags, and kong fills them from the
// command line first, then the environment, then the default. Both binaries
// embed what they need, so there is one place that knows DB_PATH or
// LOG_LEVEL.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Logging selects the slog handler.
type Logging struct {
	LogLevel  string `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Minimum log level (${enum})."`
	LogFormat string `name:"log-format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log output format (${enum})."`
}

// Storage locates the SQLite database.
type Storage struct {
	DBPath string `name:"db" env:"DB_PATH" default:"data/quran-notes.db" type:"path" help:"SQLite database file."`
}

// Server is the configuration of cmd/server.
type Server struct {
	Logging `embed:""`
	Storage `embed:""`

	Port        int           `env:"PORT" default:"8080" help:"HTTP listen port."`
	JWTSecret   string        `name:"jwt-secret" env:"JWT_SECRET" required:"" help:"HMAC key for access tokens (min 16 chars)."`
	TokenTTL    time.Duration `name:"token-ttl" env:"TOKEN_TTL" default:"24h" help:"Access token lifetime."`
	CORSOrigins []string      `name:"cors-origins" env:"CORS_ORIGINS" default:"http://localhost:3000" sep:"," help:"Allowed CORS origins."`

	AdminUsername string `name:"admin-username" env:"ADMIN_USERNAME" help:"Bootstrap admin account, created at startup if missing."`
	AdminPassword string `name:"admin-password" env:"ADMIN_PASSWORD" help:"Password of the bootstrap admin account."`

	GitHubClientID     string `name:"github-client-id" env:"GITHUB_CLIENT_ID" help:"Enables GitHub sign-in when set."`
	GitHubClientSecret string `name:"github-client-secret" env:"GITHUB_CLIENT_SECRET" help:"GitHub OAuth app secret."`
	GitHubCallbackURL  string `name:"github-callback-url" env:"GITHUB_CALLBACK_URL" help:"GitHub OAuth callback URL (default http://localhost:<port>/auth/github/callback)."`

	MaxImportBytes int64 `name:"max-import-bytes" env:"MAX_IMPORT_BYTES" default:"268435456" help:"Largest decompressed corpus upload accepted."`
}

// Validate is called by kong after parsing.
func (c *Server) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT secret must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token TTL must be positive"))
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("admin username and password must be set together"))
	}
	if c.GitHubClientID != "" && c.GitHubClientSecret == "" {
		errs = append(errs, errors.New("GitHub client secret is required with a client ID"))
	}
	if c.MaxImportBytes <= 0 {
		errs = append(errs, errors.New("max import bytes must be positive"))
	}
	return errors.Join(errs...)
}

// CallbackURL returns the GitHub callback URL, defaulting to localhost.
func (c *Server) CallbackURL() string {
	if c.GitHubCallbackURL != "" {
		return c.GitHubCallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
}

// NewLogger builds the process logger.
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.LogLevel))); err != nil {
		return nil, fmt.Errorf("config: log level %q: %w", l.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch l.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("config: unknown log format %q", l.LogFormat)
	}
}
