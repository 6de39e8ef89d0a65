package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	GrantCode     = "code"
	GrantImplicit = "implicit"

	envClientID     = "SPOTX_CLIENT_ID"
	envClientSecret = "SPOTX_CLIENT_SECRET"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Export   ExportConfig   `toml:"export"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// SpotifyConfig contains Spotify application credentials and the grant to use.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Grant        string   `toml:"grant"`
	Scopes       []string `toml:"scopes"`
	RedirectURI  string   `toml:"redirect_uri"`
	HTTPTimeout  Duration `toml:"http_timeout"`
}

// ServerConfig contains loopback callback server settings.
type ServerConfig struct {
	Host    string   `toml:"host"`
	Port    int      `toml:"port"`
	Timeout Duration `toml:"timeout"`
}

// AuthConfig contains token persistence and refresh settings.
type AuthConfig struct {
	TokenFile     string   `toml:"token_file"`
	RefreshMargin Duration `toml:"refresh_margin"`
	ShowDialog    bool     `toml:"show_dialog"`
}

// ExportConfig contains library export settings.
type ExportConfig struct {
	OutputDir string   `toml:"output_dir"`
	Format    string   `toml:"format"`
	PageSize  int      `toml:"page_size"`
	Workers   int      `toml:"workers"`
	RateLimit float64  `toml:"rate_limit"`
	Resources []string `toml:"resources"`
	Zip       bool     `toml:"zip"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger level and optional rotating file settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Duration wraps [time.Duration] so TOML strings like "2m" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to the embedded defaults otherwise.
//
// Environment overrides apply either way. found reports whether the file was read.
func LoadConfigOrDefault(path string) (config *Config, found bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		config = DefaultConfig()
		config.applyEnv()
		return config, false, nil
	}

	config, err = LoadConfig(path)
	if err != nil {
		return nil, true, err
	}
	return config, true, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envClientID); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv(envClientSecret); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// Validate checks the settings needed to authenticate and export.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify.client_id", ErrMissingCredentials)
	}

	switch c.Spotify.Grant {
	case GrantCode:
		if c.Spotify.ClientSecret == "" {
			return fmt.Errorf("%w: spotify.client_secret is required for the code grant", ErrMissingCredentials)
		}
	case GrantImplicit:
	default:
		return fmt.Errorf("%w: spotify.grant must be %q or %q, got %q", ErrInvalidConfig, GrantCode, GrantImplicit, c.Spotify.Grant)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}

	if c.Export.PageSize < 1 || c.Export.PageSize > 50 {
		return fmt.Errorf("%w: export.page_size must be between 1 and 50", ErrInvalidConfig)
	}

	if !slices.Contains([]string{"json", "csv"}, c.Export.Format) {
		return fmt.Errorf("%w: export.format %q", ErrInvalidConfig, c.Export.Format)
	}

	return nil
}

// RedirectURL returns the redirect URI registered with Spotify.
//
// Defaults to http://localhost:<port>/callback when unset.
func (c *Config) RedirectURL() string {
	if c.Spotify.RedirectURI != "" {
		return c.Spotify.RedirectURI
	}
	return fmt.Sprintf("http://localhost:%d/callback", c.Server.Port)
}

// ListenAddr returns the host:port the callback server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
