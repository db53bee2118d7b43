package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Default Keystone domains applied when clouds.yaml leaves them blank.
const (
	DefaultUserDomainID      = "default"
	DefaultProjectDomainName = "Default"
)

// CloudAuth is the auth block of a clouds.yaml entry.
type CloudAuth struct {
	AuthURL           string `yaml:"auth_url"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	UserDomainID      string `yaml:"user_domain_id"`
	UserDomainName    string `yaml:"user_domain_name"`
	ProjectName       string `yaml:"project_name"`
	ProjectID         string `yaml:"project_id"`
	ProjectDomainName string `yaml:"project_domain_name"`
	ProjectDomainID   string `yaml:"project_domain_id"`
}

// Cloud is one named entry from clouds.yaml.
type Cloud struct {
	Name             string            `yaml:"-"`
	Auth             CloudAuth         `yaml:"auth"`
	RegionName       string            `yaml:"region_name"`
	Interface        string            `yaml:"interface"`
	EndpointOverride map[string]string `yaml:"endpoint_override"`
}

// CloudsFile is a parsed clouds.yaml.
type CloudsFile struct {
	Path   string           `yaml:"-"`
	Clouds map[string]Cloud `yaml:"clouds"`
}

// ErrCloudNotFound is returned by Get for names absent from the file.
var ErrCloudNotFound = errors.New("cloud not found")

// CloudsSearchPaths returns the locations checked for clouds.yaml, in order.
func CloudsSearchPaths() []string {
	paths := []string{"clouds.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "openstack", "clouds.yaml"))
	}
	return append(paths, "/etc/openstack/clouds.yaml")
}

// FindCloudsFile returns explicit when set, else the first existing file
// from CloudsSearchPaths.
func FindCloudsFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, p := range CloudsSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config: no clouds.yaml found (searched %v): %w", CloudsSearchPaths(), fs.ErrNotExist)
}

// LoadClouds parses the clouds.yaml at path and fills domain defaults.
func LoadClouds(path string) (*CloudsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cf := &CloudsFile{}
	if err := yaml.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	cf.Path = path

	for name, c := range cf.Clouds {
		c.Name = name
		if c.Auth.UserDomainID == "" && c.Auth.UserDomainName == "" {
			c.Auth.UserDomainID = DefaultUserDomainID
		}
		if c.Auth.ProjectDomainName == "" && c.Auth.ProjectDomainID == "" {
			c.Auth.ProjectDomainName = DefaultProjectDomainName
		}
		if c.Interface == "" {
			c.Interface = "public"
		}
		cf.Clouds[name] = c
	}
	return cf, nil
}

// Get returns the named cloud.
func (f *CloudsFile) Get(name string) (Cloud, error) {
	if f == nil {
		return Cloud{}, fmt.Errorf("%w: %q", ErrCloudNotFound, name)
	}
	c, ok := f.Clouds[name]
	if !ok {
		return Cloud{}, fmt.Errorf("%w: %q", ErrCloudNotFound, name)
	}
	return c, nil
}

// Names returns the cloud names sorted alphabetically.
func (f *CloudsFile) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Clouds))
	for n := range f.Clouds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate reports the first missing required auth field.
func (c Cloud) Validate() error {
	switch {
	case c.Auth.AuthURL == "":
		return fmt.Errorf("cloud %q: auth.auth_url is required", c.Name)
	case c.Auth.Username == "":
		return fmt.Errorf("cloud %q: auth.username is required", c.Name)
	case c.Auth.ProjectName == "" && c.Auth.ProjectID == "":
		return fmt.Errorf("cloud %q: auth.project_name or auth.project_id is required", c.Name)
	}
	return nil
}
