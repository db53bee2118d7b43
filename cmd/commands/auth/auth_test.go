package auth

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/services/auth"
)

func useMockStore(t *testing.T) *auth.MockStore {
	t.Helper()
	store := auth.NewMockStore()
	prev := storeFactory
	storeFactory = func() auth.Store { return store }
	t.Cleanup(func() { storeFactory = prev })
	return store
}

func execAuth(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestLogin_StoresPassword(t *testing.T) {
	store := useMockStore(t)

	stdout, stderr := execAuth(t, "login", "MyCloud", "--password", "s3cret")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "Saved password for cloud MyCloud") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
	got, err := store.GetPassword("mycloud")
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("stored password = %q, want %q", got, "s3cret")
	}
}

func TestLogin_BlankPassword(t *testing.T) {
	useMockStore(t)

	_, stderr := execAuth(t, "login", "mycloud", "--password", "   ")

	if !strings.Contains(stderr, "password cannot be empty") {
		t.Errorf("expected empty password error, got: %s", stderr)
	}
}

func TestLogout(t *testing.T) {
	store := useMockStore(t)
	store.SetPassword("mycloud", "s3cret")

	stdout, stderr := execAuth(t, "logout", "MyCloud")
	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "Removed password for cloud MyCloud") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
	if _, err := store.GetPassword("mycloud"); err == nil {
		t.Error("password should be gone after logout")
	}

	stdout, _ = execAuth(t, "logout", "mycloud")
	if !strings.Contains(stdout, "No stored password for cloud mycloud") {
		t.Errorf("unexpected stdout on second logout: %s", stdout)
	}
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	cloudsPath := filepath.Join(dir, "clouds.yaml")
	clouds := `clouds:
  inline:
    auth:
      auth_url: https://keystone.example.com/v3
      username: demo
      password: inline
  stored:
    auth:
      auth_url: https://keystone.example.com/v3
      username: demo
  missing:
    auth:
      auth_url: https://keystone.example.com/v3
      username: demo
`
	if err := os.WriteFile(cloudsPath, []byte(clouds), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "stackgate.yaml")
	if err := os.WriteFile(cfgPath, []byte("clouds_file: "+cloudsPath+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	config.SetPath(cfgPath)
	t.Cleanup(config.ResetPath)

	store := useMockStore(t)
	store.SetPassword("stored", "pw")

	stdout, stderr := execAuth(t, "status")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	want := "inline: password in clouds.yaml\nmissing: not logged in\nstored: logged in\n"
	if stdout != want {
		t.Errorf("status output:\ngot:\n%s\nwant:\n%s", stdout, want)
	}
}
