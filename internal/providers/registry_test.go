package providers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/services/auth"
)

const testClouds = `
clouds:
  mycloud:
    auth:
      auth_url: https://keystone.example:5000/v3
      username: demo
      password: inline
      project_name: demo
    region_name: RegionOne
  vault:
    auth:
      auth_url: https://keystone.example:5000/v3
      username: ops
      project_id: p-1
  broken:
    auth:
      username: nobody
`

func loadTestClouds(t *testing.T) *config.CloudsFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clouds.yaml")
	if err := os.WriteFile(path, []byte(testClouds), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	clouds, err := config.LoadClouds(path)
	if err != nil {
		t.Fatalf("LoadClouds: %v", err)
	}
	return clouds
}

type recordingFactory struct {
	calls     int
	passwords map[string]string
}

func (f *recordingFactory) build(cloud config.Cloud, password string) (*openstack.Client, error) {
	f.calls++
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[cloud.Name] = password
	return openstack.NewClient(nil, openstack.Options{Cloud: cloud.Name}), nil
}

func newTestRegistry(t *testing.T, store auth.Store) (*Registry, *recordingFactory) {
	t.Helper()
	f := &recordingFactory{}
	cfg := &config.Config{DefaultCloud: "mycloud"}
	return NewRegistry(cfg, loadTestClouds(t), store).WithFactory(f.build), f
}

func TestClient_DefaultCloudAndReuse(t *testing.T) {
	r, f := newTestRegistry(t, auth.NewMockStore())

	first, err := r.Client("")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if first.Cloud() != "mycloud" {
		t.Errorf("Cloud() = %q, want mycloud", first.Cloud())
	}

	second, err := r.Client("mycloud")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if first != second {
		t.Error("expected the same client for repeated lookups")
	}
	if f.calls != 1 {
		t.Errorf("factory called %d times, want 1", f.calls)
	}
	if f.passwords["mycloud"] != "inline" {
		t.Errorf("password = %q, want the clouds.yaml value", f.passwords["mycloud"])
	}
}

func TestClient_PasswordFromKeychain(t *testing.T) {
	store := auth.NewMockStore()
	store.SetPassword("vault", "from-keychain")
	r, f := newTestRegistry(t, store)

	if _, err := r.Client("vault"); err != nil {
		t.Fatalf("Client: %v", err)
	}
	if f.passwords["vault"] != "from-keychain" {
		t.Errorf("password = %q", f.passwords["vault"])
	}
}

func TestClient_MissingPassword(t *testing.T) {
	r, f := newTestRegistry(t, auth.NewMockStore())

	_, err := r.Client("vault")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if f.calls != 0 {
		t.Error("factory should not run without a password")
	}
}

func TestClient_UnknownAndInvalidClouds(t *testing.T) {
	r, _ := newTestRegistry(t, auth.NewMockStore())

	_, err := r.Client("nowhere")
	if !errors.Is(err, config.ErrCloudNotFound) || !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown cloud: got %v", err)
	}

	_, err = r.Client("broken")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("invalid cloud: expected ErrInvalidInput, got %v", err)
	}
}

func TestNames(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	got := r.Names()
	want := []string{"broken", "mycloud", "vault"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &config.Config{
		Compute: config.ComputeConfig{DefaultImage: "Ubuntu 22.04", DefaultFlavor: "m1.small", SecurityGroup: "web"},
		Poll: config.PollConfig{
			LBDelete: config.PollSettings{Interval: 2 * time.Second, MaxInterval: 2 * time.Second, Attempts: 10},
		},
	}

	opts := ClientOptions(cfg, "mycloud", nil)
	if opts.Cloud != "mycloud" {
		t.Errorf("Cloud = %q", opts.Cloud)
	}
	if opts.Poll.LBDelete.MaxAttempts != 10 || opts.Poll.LBDelete.Interval != 2*time.Second {
		t.Errorf("LBDelete = %+v", opts.Poll.LBDelete)
	}
	if opts.Compute.Image != "Ubuntu 22.04" || opts.Compute.Flavor != "m1.small" || opts.Compute.SecurityGroup != "web" {
		t.Errorf("Compute = %+v", opts.Compute)
	}
}
