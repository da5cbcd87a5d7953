package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/joho/godotenv"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
)

const (
	DefaultConfigDir = "/etc/hearth-ctl"
	DefaultStateDir  = "/var/lib/hearth-ctl"
	ConfigFileName   = "config.toml"
	DatabaseFileName = "panel.db"

	DefaultDaemonTimeout   = 30 * time.Second
	DefaultRangeStart      = 25565
	DefaultRangeEnd        = 25665
	DefaultActivitySubject = "hearth.activity"
	DefaultListenAddr      = "127.0.0.1:8080"
)

// nodeNameRegex validates node names. Names start with a lowercase letter or
// digit and may contain lowercase letters, digits, dots, underscores, or
// hyphens, up to 63 characters.
var nodeNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,62}$`)

// ValidateNodeName checks if a node name is valid.
func ValidateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	if !nodeNameRegex.MatchString(name) {
		return fmt.Errorf("invalid node name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, dots, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// Config is the panel configuration loaded from config.toml and the
// HEARTH_* environment variables.
type Config struct {
	Database    DatabaseConfig   `toml:"database"`
	Daemon      DaemonConfig     `toml:"daemon"`
	Allocations AllocationConfig `toml:"allocations"`
	Activity    ActivityConfig   `toml:"activity"`
	API         APIConfig        `toml:"api"`
	Tracing     TracingConfig    `toml:"tracing"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `toml:"path" env:"HEARTH_DB_PATH"`
}

// DaemonConfig controls calls to node daemons.
type DaemonConfig struct {
	Timeout time.Duration `toml:"timeout" env:"HEARTH_DAEMON_TIMEOUT"`
}

// AllocationConfig controls automatic allocation creation. The range applies
// to nodes without a port range of their own. ClientEnabled allows adding
// allocations to existing servers.
type AllocationConfig struct {
	AutoCreate    bool `toml:"auto_create" env:"HEARTH_ALLOCATIONS_AUTO_CREATE"`
	RangeStart    int  `toml:"range_start" env:"HEARTH_ALLOCATIONS_RANGE_START"`
	RangeEnd      int  `toml:"range_end" env:"HEARTH_ALLOCATIONS_RANGE_END"`
	ClientEnabled bool `toml:"client_enabled" env:"HEARTH_ALLOCATIONS_CLIENT_ENABLED"`
}

// ActivityConfig controls where activity events go.
type ActivityConfig struct {
	Dir     string `toml:"dir" env:"HEARTH_ACTIVITY_DIR"`
	NatsURL string `toml:"nats_url" env:"HEARTH_NATS_URL"`
	Subject string `toml:"subject" env:"HEARTH_NATS_SUBJECT"`
}

// APIConfig configures the HTTP API served by "hearth-ctl serve".
type APIConfig struct {
	Listen string `toml:"listen" env:"HEARTH_API_LISTEN"`
	Token  string `toml:"token" env:"HEARTH_API_TOKEN"`
}

// TracingConfig enables span export to stdout.
type TracingConfig struct {
	Enabled bool `toml:"enabled" env:"HEARTH_TRACING"`
}

// Default returns the configuration used when no file is present.
func Default(paths *Paths) *Config {
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(paths.StateDir, DatabaseFileName)},
		Daemon:   DaemonConfig{Timeout: DefaultDaemonTimeout},
		Allocations: AllocationConfig{
			AutoCreate: false,
			RangeStart: DefaultRangeStart,
			RangeEnd:   DefaultRangeEnd,
		},
		Activity: ActivityConfig{
			Dir:     paths.ActivityDir,
			Subject: DefaultActivitySubject,
		},
		API: APIConfig{Listen: DefaultListenAddr},
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Daemon.Timeout <= 0 {
		return fmt.Errorf("daemon.timeout must be positive (got %s)", c.Daemon.Timeout)
	}
	a := c.Allocations
	if a.RangeStart < 1024 || a.RangeEnd > 65535 || a.RangeStart > a.RangeEnd {
		return fmt.Errorf("allocations range %d-%d must lie within 1024-65535 with start <= end", a.RangeStart, a.RangeEnd)
	}
	if c.Activity.NatsURL != "" && c.Activity.Subject == "" {
		return fmt.Errorf("activity.subject is required when activity.nats_url is set")
	}
	return nil
}

// Load reads the TOML file at path over the defaults, applies a .env file
// from the working directory if one exists, then overlays HEARTH_*
// environment variables. A missing file is only an error when explicit.
func Load(paths *Paths, path string, explicit bool) (*Config, error) {
	cfg := Default(paths)

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !os.IsNotExist(err) || explicit {
			return nil, errors.ConfigError(fmt.Sprintf("failed to read config %s", path), err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.ConfigError("failed to read .env", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.ConfigError("failed to parse environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid configuration", err)
	}

	return cfg, nil
}

// Paths holds the configured paths
type Paths struct {
	ConfigDir   string
	StateDir    string
	EggsDir     string
	ActivityDir string
}

// DefaultPaths returns the default path configuration
func DefaultPaths() *Paths {
	return NewPaths(DefaultConfigDir, DefaultStateDir)
}

// NewPaths derives every path from a config and state directory.
func NewPaths(configDir, stateDir string) *Paths {
	return &Paths{
		ConfigDir:   configDir,
		StateDir:    stateDir,
		EggsDir:     filepath.Join(configDir, "eggs"),
		ActivityDir: filepath.Join(stateDir, "activity"),
	}
}

// ConfigFile returns the default config file path.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, ConfigFileName)
}

// EggFile resolves an egg file name inside EggsDir. Names that would escape
// the directory are clamped to it.
func (p *Paths) EggFile(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("egg file name cannot be empty")
	}
	return securejoin.SecureJoin(p.EggsDir, name)
}
