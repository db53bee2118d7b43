// Package config loads stackgate settings.
//
// Settings are layered by viper: built-in defaults, then the YAML file
// (the path given with SetPath, ./stackgate.yaml, or
// <user config dir>/stackgate/stackgate.yaml), then STACKGATE_* environment variables. A .env file in the
// working directory is loaded into the environment first when present.
// Cloud credentials live separately in an openstacksdk-style clouds.yaml,
// see clouds.go.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appDir    = "stackgate"
	fileName  = "stackgate.yaml"
	envPrefix = "STACKGATE"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing and the --config flag. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default.
func ResetPath() { pathOverride = "" }

// Config holds the effective settings.
type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	DefaultCloud  string        `mapstructure:"default_cloud" yaml:"default_cloud"`
	CloudsFile    string        `mapstructure:"clouds_file" yaml:"clouds_file"`
	TokenCacheDir string        `mapstructure:"token_cache_dir" yaml:"token_cache_dir"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Compute ComputeConfig `mapstructure:"compute" yaml:"compute"`
	Scaling ScalingConfig `mapstructure:"scaling" yaml:"scaling"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Audit   AuditConfig   `mapstructure:"audit" yaml:"audit"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// ComputeConfig holds defaults applied to create_vm.
type ComputeConfig struct {
	DefaultImage  string `mapstructure:"default_image" yaml:"default_image"`
	DefaultFlavor string `mapstructure:"default_flavor" yaml:"default_flavor"`
	SecurityGroup string `mapstructure:"security_group" yaml:"security_group"`

	// SingleInstancePerNetwork refuses a second instance on a network
	// unless the request sets allow_scale.
	SingleInstancePerNetwork bool `mapstructure:"single_instance_per_network" yaml:"single_instance_per_network"`
}

// ScalingConfig controls clone naming and scale-down ordering.
type ScalingConfig struct {
	// Suffix is appended to the base name before the clone index:
	// "-scale" yields web-1-scale3, "-clone-" yields web-1-clone-3.
	Suffix string `mapstructure:"suffix" yaml:"suffix"`

	// NumericOrder picks the highest clone index on scale-down instead of
	// the lexicographically greatest name.
	NumericOrder bool `mapstructure:"numeric_order" yaml:"numeric_order"`
}

// PollSettings is one bounded poll budget.
type PollSettings struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Attempts    int           `mapstructure:"attempts" yaml:"attempts"`
}

// PollConfig groups the poll budgets per asynchronous operation.
type PollConfig struct {
	Server       PollSettings `mapstructure:"server" yaml:"server"`
	ServerDelete PollSettings `mapstructure:"server_delete" yaml:"server_delete"`
	LBDelete     PollSettings `mapstructure:"lb_delete" yaml:"lb_delete"`
	LBSettle     PollSettings `mapstructure:"lb_settle" yaml:"lb_settle"`
}

// AuditConfig controls the optional SQLite operation log.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("default_cloud", "mycloud")
	v.SetDefault("clouds_file", "")
	v.SetDefault("token_cache_dir", "")
	v.SetDefault("http_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("compute.default_image", "CentOS 7")
	v.SetDefault("compute.default_flavor", "d10.xs1")
	v.SetDefault("compute.security_group", "default")
	v.SetDefault("compute.single_instance_per_network", false)

	v.SetDefault("scaling.suffix", "-scale")
	v.SetDefault("scaling.numeric_order", false)

	v.SetDefault("poll.server.interval", 5*time.Second)
	v.SetDefault("poll.server.max_interval", 10*time.Second)
	v.SetDefault("poll.server.attempts", 60)
	v.SetDefault("poll.server_delete.interval", 2*time.Second)
	v.SetDefault("poll.server_delete.max_interval", 5*time.Second)
	v.SetDefault("poll.server_delete.attempts", 60)
	v.SetDefault("poll.lb_delete.interval", 2*time.Second)
	v.SetDefault("poll.lb_delete.max_interval", 2*time.Second)
	v.SetDefault("poll.lb_delete.attempts", 10)
	v.SetDefault("poll.lb_settle.interval", time.Second)
	v.SetDefault("poll.lb_settle.max_interval", 5*time.Second)
	v.SetDefault("poll.lb_settle.attempts", 30)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", "")
}

// Path returns the path to the config file: the SetPath override, else
// ./stackgate.yaml when it exists, else the file under the user config dir.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	if _, err := os.Stat(fileName); err == nil {
		return fileName, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file (if any) and the environment and returns the
// effective Config. A missing file is not an error.
func Load() (*Config, error) {
	return loadFrom("")
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path (default ".env") into the
// process environment. Variables already set are left alone. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// TokenCachePath returns the configured token cache directory, or "" to
// let the cache package pick its default.
func (c *Config) TokenCachePath() string {
	return c.TokenCacheDir
}

// AuditPath returns the configured audit database path, falling back to
// <user config dir>/stackgate/audit.db.
func (c *Config) AuditPath() (string, error) {
	if c.Audit.Path != "" {
		return c.Audit.Path, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, "audit.db"), nil
}
