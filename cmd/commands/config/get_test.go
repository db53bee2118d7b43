package config

import (
	"os"
	"strings"
	"testing"
)

func TestGet_CloudsFile_NotSet(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "get", "clouds-file")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "not set") {
		t.Errorf("expected 'not set', got: %s", stdout)
	}
}

func TestGet_DefaultCloud_FromFile(t *testing.T) {
	path := setupTestConfig(t)

	if err := os.WriteFile(path, []byte("default_cloud: staging\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	stdout, stderr := execConfig(t, "get", "default-cloud")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if strings.TrimSpace(stdout) != "staging" {
		t.Errorf("expected 'staging', got: %s", stdout)
	}
}

func TestGet_DefaultCloud_EnvOverridesFile(t *testing.T) {
	path := setupTestConfig(t)
	if err := os.WriteFile(path, []byte("default_cloud: staging\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("STACKGATE_DEFAULT_CLOUD", "production")

	stdout, _ := execConfig(t, "get", "default-cloud")

	if strings.TrimSpace(stdout) != "production" {
		t.Errorf("expected 'production', got: %s", stdout)
	}
}

func TestGet_ListsAllKeys(t *testing.T) {
	setupTestConfig(t)

	stdout, _ := execConfig(t, "get")

	for _, want := range []string{"default-cloud: mycloud", "listen-addr: :8080", "scaling-suffix: -scale", "clouds-file: (not set)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}
}

func TestGet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "get", "bogus-key")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
}
