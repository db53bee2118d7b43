// Package providers turns cloud profiles from clouds.yaml into
// authenticated OpenStack clients.
package providers

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"nathanbeddoewebdev/stackgate/internal/cache"
	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/poll"
	"nathanbeddoewebdev/stackgate/internal/services/auth"
	"nathanbeddoewebdev/stackgate/internal/util"
)

// Factory builds a client for one validated cloud profile.
type Factory func(cloud config.Cloud, password string) (*openstack.Client, error)

// Registry hands out one client per cloud profile, built on first use and
// reused afterwards so the token provider and its cache are shared.
type Registry struct {
	clouds       *config.CloudsFile
	store        auth.Store
	defaultCloud string
	factory      Factory

	mu      sync.Mutex
	clients map[string]*openstack.Client
}

// NewRegistry returns a registry over the profiles in clouds. Missing
// passwords are read from store.
func NewRegistry(cfg *config.Config, clouds *config.CloudsFile, store auth.Store) *Registry {
	return &Registry{
		clouds:       clouds,
		store:        store,
		defaultCloud: cfg.DefaultCloud,
		factory:      DefaultFactory(cfg),
		clients:      make(map[string]*openstack.Client),
	}
}

// Load finds and parses clouds.yaml as configured by cfg and returns a
// registry over it backed by the OS keychain.
func Load(cfg *config.Config) (*Registry, error) {
	path, err := config.FindCloudsFile(cfg.CloudsFile)
	if err != nil {
		return nil, err
	}
	clouds, err := config.LoadClouds(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfg, clouds, auth.DefaultStore()), nil
}

// WithFactory replaces the client constructor. Intended for tests.
func (r *Registry) WithFactory(f Factory) *Registry {
	r.factory = f
	return r
}

// DefaultCloud returns the profile used when a request names none.
func (r *Registry) DefaultCloud() string {
	return r.defaultCloud
}

// Names lists the configured cloud profiles.
func (r *Registry) Names() []string {
	return r.clouds.Names()
}

// Client returns the client for the named profile, or for the default
// profile when name is empty.
func (r *Registry) Client(name string) (*openstack.Client, error) {
	name = util.FirstNonEmpty(name, r.defaultCloud)
	key := util.NormalizeKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	cloud, err := r.clouds.Get(name)
	if err != nil {
		return nil, fmt.Errorf("providers: %w: %w", err, domain.ErrInvalidInput)
	}
	if err := cloud.Validate(); err != nil {
		return nil, fmt.Errorf("providers: %w: %w", err, domain.ErrInvalidInput)
	}

	password := cloud.Auth.Password
	if password == "" {
		password, err = r.passwordFor(name)
		if err != nil {
			return nil, err
		}
	}

	c, err := r.factory(cloud, password)
	if err != nil {
		return nil, err
	}
	r.clients[key] = c
	return c, nil
}

func (r *Registry) passwordFor(cloud string) (string, error) {
	if r.store == nil {
		return "", fmt.Errorf("providers: no password for cloud %q: %w", cloud, domain.ErrUnauthorized)
	}
	password, err := r.store.GetPassword(cloud)
	if errors.Is(err, auth.ErrPasswordNotFound) {
		return "", fmt.Errorf("providers: no password for cloud %q in clouds.yaml or keychain (run `stackgate auth login %s`): %w",
			cloud, cloud, domain.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("providers: keychain lookup for cloud %q: %w", cloud, err)
	}
	return password, nil
}

// DefaultFactory builds clients that authenticate against Keystone with
// the profile's password and share a file-backed token cache.
func DefaultFactory(cfg *config.Config) Factory {
	tokens := cache.NewDefault()
	if dir := cfg.TokenCachePath(); dir != "" {
		tokens = cache.New(dir)
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	return func(cloud config.Cloud, password string) (*openstack.Client, error) {
		a := cloud.Auth
		provider := openstack.NewTokenProvider(openstack.TokenProviderOptions{
			Cloud: cloud.Name,
			Credentials: openstack.Credentials{
				AuthURL:           a.AuthURL,
				Username:          a.Username,
				Password:          password,
				UserDomainID:      a.UserDomainID,
				UserDomainName:    a.UserDomainName,
				ProjectName:       a.ProjectName,
				ProjectID:         a.ProjectID,
				ProjectDomainName: a.ProjectDomainName,
				ProjectDomainID:   a.ProjectDomainID,
			},
			Interface:        cloud.Interface,
			Region:           cloud.RegionName,
			EndpointOverride: cloud.EndpointOverride,
			Cache:            tokens,
			HTTPClient:       httpClient,
		})

		return openstack.NewClient(provider, ClientOptions(cfg, cloud.Name, httpClient)), nil
	}
}

// ClientOptions maps the poll and compute settings onto client options.
func ClientOptions(cfg *config.Config, cloud string, httpClient *http.Client) openstack.Options {
	return openstack.Options{
		Cloud:      cloud,
		HTTPClient: httpClient,
		Poll: openstack.PollSettings{
			ServerBuild:  pollConfig(cfg.Poll.Server),
			ServerDelete: pollConfig(cfg.Poll.ServerDelete),
			LBDelete:     pollConfig(cfg.Poll.LBDelete),
			LBSettle:     pollConfig(cfg.Poll.LBSettle),
		},
		Compute: openstack.ComputeDefaults{
			Image:                    cfg.Compute.DefaultImage,
			Flavor:                   cfg.Compute.DefaultFlavor,
			SecurityGroup:            cfg.Compute.SecurityGroup,
			SingleInstancePerNetwork: cfg.Compute.SingleInstancePerNetwork,
		},
	}
}

func pollConfig(s config.PollSettings) poll.Config {
	return poll.Config{
		MaxAttempts: s.Attempts,
		Interval:    s.Interval,
		MaxInterval: s.MaxInterval,
	}
}
