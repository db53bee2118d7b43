package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/stackgate/internal/config"
)

// setupTestConfig points the config package at a temp file and returns its path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stackgate.yaml")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	return path
}

// execConfig creates the config command, wires up output buffers, runs with the
// given args, and returns what was written to stdout and stderr.
func execConfig(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestSet_DefaultCloud(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "set", "default-cloud", "staging")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, `"staging"`) {
		t.Errorf("expected confirmation with cloud name, got: %s", stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DefaultCloud != "staging" {
		t.Errorf("expected DefaultCloud %q, got %q", "staging", cfg.DefaultCloud)
	}
}

func TestSet_KeepsOtherEntries(t *testing.T) {
	path := setupTestConfig(t)
	if err := os.WriteFile(path, []byte("listen_addr: 127.0.0.1:9000\nscaling:\n  numeric_order: true\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, stderr := execConfig(t, "set", "scaling-suffix", "--", "-clone-")
	if stderr != "" {
		t.Fatalf("unexpected stderr: %s", stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Scaling.Suffix != "-clone-" {
		t.Errorf("expected suffix %q, got %q", "-clone-", cfg.Scaling.Suffix)
	}
	if !cfg.Scaling.NumericOrder {
		t.Error("expected scaling.numeric_order to survive the edit")
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("expected listen_addr to survive the edit, got %q", cfg.ListenAddr)
	}
}

func TestSet_InvalidValue(t *testing.T) {
	path := setupTestConfig(t)

	_, stderr := execConfig(t, "set", "http-timeout", "soon")

	if !strings.Contains(stderr, "invalid value") {
		t.Errorf("expected 'invalid value' error, got: %s", stderr)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no config file to be written, stat err: %v", err)
	}
}

func TestSet_NormalizesValue(t *testing.T) {
	setupTestConfig(t)

	stdout, _ := execConfig(t, "set", "log-level", "DEBUG")

	if !strings.Contains(stdout, `"debug"`) {
		t.Errorf("expected normalized level in confirmation, got: %s", stdout)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level %q, got %q", "debug", cfg.Log.Level)
	}
}

func TestSet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "bogus-key", "value")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
	if !strings.Contains(stderr, "default-cloud") {
		t.Errorf("expected valid keys listed, got: %s", stderr)
	}
}

func TestSet_MissingArgs(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "default-cloud")

	if !strings.Contains(stderr, "accepts 2 arg(s)") {
		t.Errorf("expected args error, got: %s", stderr)
	}
}
