package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleClouds = `
clouds:
  mycloud:
    auth:
      auth_url: https://keystone.example.com:5000/v3
      username: alice
      password: s3cret
      project_name: demo
    region_name: RegionOne
  other:
    auth:
      auth_url: https://other.example.com/v3
      username: bob
      user_domain_name: Corp
      project_id: abc123
      project_domain_id: corp
    interface: internal
    endpoint_override:
      compute: https://nova.other.example.com/v2.1
`

func writeClouds(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clouds.yaml")
	if err := os.WriteFile(path, []byte(sampleClouds), 0o600); err != nil {
		t.Fatalf("failed to write clouds.yaml: %v", err)
	}
	return path
}

func TestLoadClouds_AppliesDefaults(t *testing.T) {
	cf, err := LoadClouds(writeClouds(t))
	if err != nil {
		t.Fatalf("LoadClouds failed: %v", err)
	}

	got, err := cf.Get("mycloud")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := Cloud{
		Name: "mycloud",
		Auth: CloudAuth{
			AuthURL:           "https://keystone.example.com:5000/v3",
			Username:          "alice",
			Password:          "s3cret",
			UserDomainID:      DefaultUserDomainID,
			ProjectName:       "demo",
			ProjectDomainName: DefaultProjectDomainName,
		},
		RegionName: "RegionOne",
		Interface:  "public",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cloud mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadClouds_KeepsExplicitDomains(t *testing.T) {
	cf, err := LoadClouds(writeClouds(t))
	if err != nil {
		t.Fatalf("LoadClouds failed: %v", err)
	}

	got, err := cf.Get("other")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Auth.UserDomainID != "" || got.Auth.UserDomainName != "Corp" {
		t.Errorf("user domain = (%q, %q), want (\"\", \"Corp\")", got.Auth.UserDomainID, got.Auth.UserDomainName)
	}
	if got.Auth.ProjectDomainName != "" || got.Auth.ProjectDomainID != "corp" {
		t.Errorf("project domain = (%q, %q), want (\"\", \"corp\")", got.Auth.ProjectDomainName, got.Auth.ProjectDomainID)
	}
	if got.Interface != "internal" {
		t.Errorf("Interface = %q, want internal", got.Interface)
	}
	if got.EndpointOverride["compute"] != "https://nova.other.example.com/v2.1" {
		t.Errorf("EndpointOverride = %v", got.EndpointOverride)
	}
}

func TestCloudsFile_GetMissing(t *testing.T) {
	cf, err := LoadClouds(writeClouds(t))
	if err != nil {
		t.Fatalf("LoadClouds failed: %v", err)
	}
	if _, err := cf.Get("nope"); !errors.Is(err, ErrCloudNotFound) {
		t.Errorf("expected ErrCloudNotFound, got %v", err)
	}

	var nilFile *CloudsFile
	if _, err := nilFile.Get("mycloud"); !errors.Is(err, ErrCloudNotFound) {
		t.Errorf("expected ErrCloudNotFound from nil file, got %v", err)
	}
}

func TestCloudsFile_Names(t *testing.T) {
	cf, err := LoadClouds(writeClouds(t))
	if err != nil {
		t.Fatalf("LoadClouds failed: %v", err)
	}
	if diff := cmp.Diff([]string{"mycloud", "other"}, cf.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestFindCloudsFile_Explicit(t *testing.T) {
	got, err := FindCloudsFile("/opt/clouds.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/opt/clouds.yaml" {
		t.Errorf("FindCloudsFile = %q", got)
	}
}

func TestCloud_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cloud   Cloud
		wantErr bool
	}{
		{name: "complete", cloud: Cloud{Auth: CloudAuth{AuthURL: "u", Username: "a", ProjectName: "p"}}},
		{name: "project id only", cloud: Cloud{Auth: CloudAuth{AuthURL: "u", Username: "a", ProjectID: "p"}}},
		{name: "no url", cloud: Cloud{Auth: CloudAuth{Username: "a", ProjectName: "p"}}, wantErr: true},
		{name: "no user", cloud: Cloud{Auth: CloudAuth{AuthURL: "u", ProjectName: "p"}}, wantErr: true},
		{name: "no project", cloud: Cloud{Auth: CloudAuth{AuthURL: "u", Username: "a"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cloud.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
