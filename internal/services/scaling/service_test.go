package scaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/openstack"

	"github.com/google/go-cmp/cmp"
)

// fakeCloud is an in-memory Cloud. Created servers appear in later lists.
type fakeCloud struct {
	mu       sync.Mutex
	servers  []domain.Server
	networks map[string]string
	nextID   int

	created []domain.CreateServerOpts
	deleted []string

	waitErr   error
	deleteErr error
}

func newFakeCloud(servers ...domain.Server) *fakeCloud {
	return &fakeCloud{servers: servers, networks: map[string]string{"private": "net-1"}}
}

func (f *fakeCloud) ListServers(context.Context) ([]domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Server(nil), f.servers...), nil
}

func (f *fakeCloud) FindServer(ctx context.Context, name string) (*domain.Server, error) {
	servers, _ := f.ListServers(ctx)
	for i := range servers {
		if servers[i].Name == name {
			return &servers[i], nil
		}
	}
	return nil, fmt.Errorf("server %q: %w", name, domain.ErrNotFound)
}

func (f *fakeCloud) Resolve(_ context.Context, kind openstack.Kind, name string) (string, error) {
	if id, ok := f.networks[name]; ok && kind == openstack.KindNetwork {
		return id, nil
	}
	return "", fmt.Errorf("%s %q: %w", kind, name, domain.ErrNotFound)
}

func (f *fakeCloud) CreateServer(_ context.Context, opts domain.CreateServerOpts) (*domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, opts)
	s := domain.Server{
		ID:       fmt.Sprintf("new-%d", f.nextID),
		Name:     opts.Name,
		Status:   domain.ServerStatusBuild,
		ImageID:  opts.ImageID,
		FlavorID: opts.FlavorID,
		KeyName:  opts.KeyName,
		Networks: []string{"private"},
		Metadata: opts.Metadata,
	}
	f.servers = append(f.servers, s)
	return &s, nil
}

func (f *fakeCloud) WaitForServer(_ context.Context, id string) (*domain.Server, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.servers {
		if f.servers[i].ID == id {
			f.servers[i].Status = domain.ServerStatusActive
			s := f.servers[i]
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCloud) DeleteServer(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.servers {
		if f.servers[i].ID == id {
			f.deleted = append(f.deleted, f.servers[i].Name)
			f.servers = append(f.servers[:i], f.servers[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeCloud) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, s := range f.servers {
		names = append(names, s.Name)
	}
	return names
}

func baseServer() domain.Server {
	return domain.Server{
		ID:       "base-1",
		Name:     "web-1",
		Status:   domain.ServerStatusActive,
		ImageID:  "img-1",
		FlavorID: "flv-1",
		KeyName:  "deploy",
		Networks: []string{"private", "storage"},
		Metadata: map[string]string{openstack.MetadataUserData: "#cloud-config\n"},
	}
}

func clone(id, name string) domain.Server {
	return domain.Server{ID: id, Name: name, Status: domain.ServerStatusActive, Networks: []string{"private"}}
}

func TestScaleUp_Example(t *testing.T) {
	cloud := newFakeCloud(baseServer(), clone("c1", "web-1-scale1"), clone("c2", "web-1-scale2"))
	svc := NewService(Options{})

	got, err := svc.ScaleUp(context.Background(), cloud, "web-1")
	if err != nil {
		t.Fatalf("ScaleUp: %v", err)
	}
	if got.Name != "web-1-scale3" || got.Status != domain.ServerStatusActive {
		t.Errorf("got %s (%s), want web-1-scale3 ACTIVE", got.Name, got.Status)
	}

	want := []domain.CreateServerOpts{{
		Name:      "web-1-scale3",
		ImageID:   "img-1",
		FlavorID:  "flv-1",
		NetworkID: "net-1",
		KeyName:   "deploy",
		UserData:  "#cloud-config\n",
		Metadata:  map[string]string{openstack.MetadataUserData: "#cloud-config\n"},
	}}
	if diff := cmp.Diff(want, cloud.created); diff != "" {
		t.Errorf("create opts mismatch (-want +got):\n%s", diff)
	}

	deleted, err := svc.ScaleDown(context.Background(), cloud, "web-1")
	if err != nil {
		t.Fatalf("ScaleDown: %v", err)
	}
	if deleted != "web-1-scale3" {
		t.Errorf("deleted %q, want web-1-scale3", deleted)
	}
}

func TestScaleUp_CreatesExactlyOneClone(t *testing.T) {
	for n := 0; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d existing", n), func(t *testing.T) {
			servers := []domain.Server{baseServer()}
			for i := 1; i <= n; i++ {
				servers = append(servers, clone(fmt.Sprintf("c%d", i), fmt.Sprintf("web-1-scale%d", i)))
			}
			cloud := newFakeCloud(servers...)

			got, err := NewService(Options{}).ScaleUp(context.Background(), cloud, "web-1")
			if err != nil {
				t.Fatalf("ScaleUp: %v", err)
			}
			if want := fmt.Sprintf("web-1-scale%d", n+1); got.Name != want {
				t.Errorf("clone = %q, want %q", got.Name, want)
			}
			if len(cloud.created) != 1 {
				t.Errorf("created %d servers, want 1", len(cloud.created))
			}
		})
	}
}

func TestScaleUp_SkipsPastGap(t *testing.T) {
	// scale1 was deleted out of band; count+1 would collide with scale2.
	cloud := newFakeCloud(baseServer(), clone("c2", "web-1-scale2"))

	got, err := NewService(Options{}).ScaleUp(context.Background(), cloud, "web-1")
	if err != nil {
		t.Fatalf("ScaleUp: %v", err)
	}
	if got.Name != "web-1-scale3" {
		t.Errorf("clone = %q, want web-1-scale3", got.Name)
	}
}

func TestScaleUp_CloneSuffix(t *testing.T) {
	cloud := newFakeCloud(baseServer(), clone("c1", "web-1-clone-1"))

	got, err := NewService(Options{Suffix: "-clone-"}).ScaleUp(context.Background(), cloud, "web-1")
	if err != nil {
		t.Fatalf("ScaleUp: %v", err)
	}
	if got.Name != "web-1-clone-2" {
		t.Errorf("clone = %q, want web-1-clone-2", got.Name)
	}
}

func TestScaleUp_BaseMissing(t *testing.T) {
	cloud := newFakeCloud()

	_, err := NewService(Options{}).ScaleUp(context.Background(), cloud, "web-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(cloud.created) != 0 {
		t.Error("no server should be created")
	}
}

func TestScaleUp_CloneFailsToBoot(t *testing.T) {
	cloud := newFakeCloud(baseServer())
	cloud.waitErr = errors.New("server entered ERROR")

	got, err := NewService(Options{}).ScaleUp(context.Background(), cloud, "web-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if got == nil || got.ID != "new-1" {
		t.Fatalf("expected the created clone to be returned, got %+v", got)
	}
	if len(cloud.deleted) != 0 {
		t.Error("failed clone must not be deleted")
	}
}

func TestScaleDown_OneClonePerCall(t *testing.T) {
	cloud := newFakeCloud(baseServer(), clone("c1", "web-1-scale1"), clone("c2", "web-1-scale2"), clone("o", "db-1-scale1"))
	svc := NewService(Options{})

	for _, want := range []string{"web-1-scale2", "web-1-scale1"} {
		got, err := svc.ScaleDown(context.Background(), cloud, "web-1")
		if err != nil {
			t.Fatalf("ScaleDown: %v", err)
		}
		if got != want {
			t.Errorf("deleted %q, want %q", got, want)
		}
	}

	_, err := svc.ScaleDown(context.Background(), cloud, "web-1")
	if !errors.Is(err, ErrNoClones) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNoClones, got %v", err)
	}
	if diff := cmp.Diff([]string{"web-1", "db-1-scale1"}, cloud.names()); diff != "" {
		t.Errorf("remaining servers mismatch (-want +got):\n%s", diff)
	}
}

func TestScaleDown_Ordering(t *testing.T) {
	tests := []struct {
		name    string
		numeric bool
		want    string
	}{
		{name: "lexicographic", numeric: false, want: "web-1-scale9"},
		{name: "numeric", numeric: true, want: "web-1-scale10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := newFakeCloud(baseServer(), clone("c9", "web-1-scale9"), clone("c10", "web-1-scale10"))

			got, err := NewService(Options{NumericOrder: tt.numeric}).ScaleDown(context.Background(), cloud, "web-1")
			if err != nil {
				t.Fatalf("ScaleDown: %v", err)
			}
			if got != tt.want {
				t.Errorf("deleted %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScaleDown_DeleteUnresolved(t *testing.T) {
	cloud := newFakeCloud(baseServer(), clone("c1", "web-1-scale1"))
	cloud.deleteErr = fmt.Errorf("server web-1-scale1: %w", domain.ErrDeleteUnresolved)

	got, err := NewService(Options{}).ScaleDown(context.Background(), cloud, "web-1")
	if !errors.Is(err, domain.ErrDeleteUnresolved) {
		t.Fatalf("expected ErrDeleteUnresolved, got %v", err)
	}
	if got != "web-1-scale1" {
		t.Errorf("name = %q", got)
	}
}

func TestScaleUp_SerialisedPerBase(t *testing.T) {
	cloud := newFakeCloud(baseServer())
	svc := NewService(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ScaleUp(context.Background(), cloud, "web-1"); err != nil {
				t.Errorf("ScaleUp: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, opts := range cloud.created {
		if seen[opts.Name] {
			t.Errorf("duplicate clone name %q", opts.Name)
		}
		seen[opts.Name] = true
	}
	if len(seen) != 4 {
		t.Errorf("created %d distinct clones, want 4", len(seen))
	}
	if len(svc.locks) != 0 {
		t.Errorf("expected lock table to drain, %d entries left", len(svc.locks))
	}
}
