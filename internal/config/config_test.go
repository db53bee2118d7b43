package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func defaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8080",
		DefaultCloud: "mycloud",
		HTTPTimeout:  30 * time.Second,
		Log:          LogConfig{Level: "info"},
		Compute: ComputeConfig{
			DefaultImage:  "CentOS 7",
			DefaultFlavor: "d10.xs1",
			SecurityGroup: "default",
		},
		Scaling: ScalingConfig{Suffix: "-scale"},
		Poll: PollConfig{
			Server:       PollSettings{Interval: 5 * time.Second, MaxInterval: 10 * time.Second, Attempts: 60},
			ServerDelete: PollSettings{Interval: 2 * time.Second, MaxInterval: 5 * time.Second, Attempts: 60},
			LBDelete:     PollSettings{Interval: 2 * time.Second, MaxInterval: 2 * time.Second, Attempts: 10},
			LBSettle:     PollSettings{Interval: time.Second, MaxInterval: 5 * time.Second, Attempts: 30},
		},
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "stackgate.yaml")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(defaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stackgate.yaml")
	body := `
default_cloud: prod
http_timeout: 10s
compute:
  default_flavor: m1.small
scaling:
  suffix: "-clone-"
  numeric_order: true
poll:
  lb_delete:
    attempts: 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	want := defaultConfig()
	want.DefaultCloud = "prod"
	want.HTTPTimeout = 10 * time.Second
	want.Compute.DefaultFlavor = "m1.small"
	want.Scaling = ScalingConfig{Suffix: "-clone-", NumericOrder: true}
	want.Poll.LBDelete.Attempts = 3

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stackgate.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	t.Setenv("STACKGATE_LISTEN_ADDR", ":7000")
	t.Setenv("STACKGATE_SCALING_NUMERIC_ORDER", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7000")
	}
	if !cfg.Scaling.NumericOrder {
		t.Error("expected STACKGATE_SCALING_NUMERIC_ORDER to apply")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stackgate.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestPath_Override(t *testing.T) {
	SetPath("/tmp/custom.yaml")
	t.Cleanup(ResetPath)

	got, err := Path()
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if got != "/tmp/custom.yaml" {
		t.Errorf("Path = %q, want %q", got, "/tmp/custom.yaml")
	}
}

func TestPath_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.WriteFile(filepath.Join(dir, "stackgate.yaml"), []byte("listen_addr: :9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Path()
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if got != "stackgate.yaml" {
		t.Errorf("Path = %q, want %q", got, "stackgate.yaml")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9000")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("STACKGATE_DEFAULT_CLOUD=fromdotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STACKGATE_DEFAULT_CLOUD", "")
	os.Unsetenv("STACKGATE_DEFAULT_CLOUD")

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	cfg, err := LoadFrom(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.DefaultCloud != "fromdotenv" {
		t.Errorf("DefaultCloud = %q, want %q", cfg.DefaultCloud, "fromdotenv")
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("expected nil for missing .env, got %v", err)
	}
}

func TestAuditPath(t *testing.T) {
	cfg := &Config{Audit: AuditConfig{Path: "/var/lib/stackgate/audit.db"}}
	got, err := cfg.AuditPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/var/lib/stackgate/audit.db" {
		t.Errorf("AuditPath = %q", got)
	}
}
