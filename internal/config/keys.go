package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KeySpec describes a single configuration key exposed by `config get/set`.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "default-cloud").
	Name string

	// Path is the dotted key inside stackgate.yaml (e.g. "scaling.suffix").
	Path string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set parses value and applies it to cfg in memory. The caller persists
	// the change with SetValue.
	Set func(cfg *Config, value string) error
}

// Keys is the authoritative list of keys editable from the CLI.
// To add a new option: add a field to Config, a default in setDefaults,
// and append a KeySpec here.
var Keys = []KeySpec{
	{
		Name:        "default-cloud",
		Path:        "default_cloud",
		Description: "Cloud used when a request does not name one",
		Get:         func(cfg *Config) string { return cfg.DefaultCloud },
		Set:         func(cfg *Config, v string) error { cfg.DefaultCloud = v; return nil },
	},
	{
		Name:        "listen-addr",
		Path:        "listen_addr",
		Description: "Address the HTTP API listens on",
		Get:         func(cfg *Config) string { return cfg.ListenAddr },
		Set:         func(cfg *Config, v string) error { cfg.ListenAddr = v; return nil },
	},
	{
		Name:        "clouds-file",
		Path:        "clouds_file",
		Description: "Path to clouds.yaml (empty searches the standard locations)",
		Get:         func(cfg *Config) string { return cfg.CloudsFile },
		Set:         func(cfg *Config, v string) error { cfg.CloudsFile = v; return nil },
	},
	{
		Name:        "log-level",
		Path:        "log.level",
		Description: "Log level: debug, info, warn or error",
		Get:         func(cfg *Config) string { return cfg.Log.Level },
		Set: func(cfg *Config, v string) error {
			switch strings.ToLower(v) {
			case "debug", "info", "warn", "error":
				cfg.Log.Level = strings.ToLower(v)
				return nil
			}
			return fmt.Errorf("invalid log level %q", v)
		},
	},
	{
		Name:        "http-timeout",
		Path:        "http_timeout",
		Description: "Timeout for each upstream OpenStack request",
		Get:         func(cfg *Config) string { return cfg.HTTPTimeout.String() },
		Set: func(cfg *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", v, err)
			}
			cfg.HTTPTimeout = d
			return nil
		},
	},
	{
		Name:        "scaling-suffix",
		Path:        "scaling.suffix",
		Description: "Suffix placed between a base name and its clone index",
		Get:         func(cfg *Config) string { return cfg.Scaling.Suffix },
		Set: func(cfg *Config, v string) error {
			if v == "" {
				return errors.New("scaling suffix must not be empty")
			}
			cfg.Scaling.Suffix = v
			return nil
		},
	},
	{
		Name:        "audit-enabled",
		Path:        "audit.enabled",
		Description: "Record mutating API calls in the SQLite audit log",
		Get:         func(cfg *Config) string { return strconv.FormatBool(cfg.Audit.Enabled) },
		Set: func(cfg *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			cfg.Audit.Enabled = b
			return nil
		},
	},
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}

// SetValue writes a single key into the YAML file at path, keeping every
// other entry already present. The file and its directory are created if
// missing.
func SetValue(path string, spec *KeySpec, value string) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	setNested(doc, strings.Split(spec.Path, "."), value)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: failed to replace %s: %w", path, err)
	}
	return nil
}

func setNested(doc map[string]any, parts []string, value string) {
	if len(parts) == 1 {
		doc[parts[0]] = value
		return
	}
	child, ok := doc[parts[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		doc[parts[0]] = child
	}
	setNested(child, parts[1:], value)
}
