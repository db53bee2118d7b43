package openstack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"nathanbeddoewebdev/stackgate/internal/cache"
	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/log"
	"nathanbeddoewebdev/stackgate/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenSkew is how long before its expiry a token is treated as
// expired.
const DefaultTokenSkew = 30 * time.Second

// Credentials are the password-method inputs for a project-scoped token.
type Credentials struct {
	AuthURL           string
	Username          string
	Password          string
	UserDomainID      string
	UserDomainName    string
	ProjectName       string
	ProjectID         string
	ProjectDomainName string
	ProjectDomainID   string
}

// Endpoint is one catalog endpoint of a service.
type Endpoint struct {
	Interface string `json:"interface"`
	Region    string `json:"region"`
	RegionID  string `json:"region_id"`
	URL       string `json:"url"`
}

// CatalogEntry is one service in the Keystone catalog.
type CatalogEntry struct {
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Catalog is the service catalog returned with a token.
type Catalog []CatalogEntry

// EndpointFor returns the URL of serviceType on iface, restricted to
// region when region is non-empty.
func (c Catalog) EndpointFor(serviceType, iface, region string) (string, error) {
	if iface == "" {
		iface = "public"
	}
	for _, svc := range c {
		if svc.Type != serviceType {
			continue
		}
		for _, ep := range svc.Endpoints {
			if ep.Interface != iface {
				continue
			}
			if region != "" && ep.Region != region && ep.RegionID != region {
				continue
			}
			return ep.URL, nil
		}
	}
	return "", fmt.Errorf("no %s endpoint for service %q in catalog: %w", iface, serviceType, domain.ErrNotFound)
}

// TokenCache persists tokens across restarts. *cache.TokenStore satisfies it.
type TokenCache interface {
	Load(key string) (cache.TokenEntry, bool, error)
	Save(key string, entry cache.TokenEntry) error
	Invalidate(key string) error
}

// TokenProviderOptions configures a TokenProvider.
type TokenProviderOptions struct {
	Cloud       string
	Credentials Credentials

	// Interface and Region select catalog endpoints.
	Interface string
	Region    string

	// EndpointOverride maps a service type to a fixed base URL that
	// replaces the catalog entry.
	EndpointOverride map[string]string

	Cache      TokenCache
	HTTPClient *http.Client
	Skew       time.Duration
}

// TokenProvider exchanges credentials for a scoped token and its catalog,
// and keeps both until the token nears expiry. Concurrent refreshes share
// one Keystone call.
type TokenProvider struct {
	cloud     string
	creds     Credentials
	iface     string
	region    string
	overrides map[string]string
	cache     TokenCache
	http      *http.Client
	skew      time.Duration
	now       func() time.Time
	log       zerolog.Logger

	mu      sync.Mutex
	token   domain.Token
	catalog Catalog

	group singleflight.Group
}

// NewTokenProvider returns a provider for the given cloud profile.
func NewTokenProvider(opts TokenProviderOptions) *TokenProvider {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	skew := opts.Skew
	if skew <= 0 {
		skew = DefaultTokenSkew
	}
	return &TokenProvider{
		cloud:     opts.Cloud,
		creds:     opts.Credentials,
		iface:     opts.Interface,
		region:    opts.Region,
		overrides: opts.EndpointOverride,
		cache:     opts.Cache,
		http:      httpClient,
		skew:      skew,
		now:       time.Now,
		log:       log.WithCloud(opts.Cloud).With().Str("component", "identity").Logger(),
	}
}

// Token returns a valid bearer token, authenticating if needed.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	tok, _, err := p.ensure(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Endpoint returns the base URL for serviceType. A configured override
// wins without consulting the catalog.
func (p *TokenProvider) Endpoint(ctx context.Context, serviceType string) (string, error) {
	if u, ok := p.overrides[serviceType]; ok && u != "" {
		return u, nil
	}
	_, catalog, err := p.ensure(ctx)
	if err != nil {
		return "", err
	}
	return catalog.EndpointFor(serviceType, p.iface, p.region)
}

// Invalidate drops the in-memory and cached token so the next call
// re-authenticates.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = domain.Token{}
	p.catalog = nil
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Invalidate(p.cloud); err != nil {
			p.log.Warn().Err(err).Msg("failed to remove cached token")
		}
	}
}

func (p *TokenProvider) ensure(ctx context.Context) (domain.Token, Catalog, error) {
	p.mu.Lock()
	tok, catalog := p.token, p.catalog
	p.mu.Unlock()
	if tok.ValidAt(p.now(), p.skew) && catalog != nil {
		return tok, catalog, nil
	}

	// The refresh outlives any single caller's cancellation since other
	// callers may be waiting on it; the HTTP client timeout bounds it.
	ch := p.group.DoChan("token", func() (any, error) {
		return nil, p.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return domain.Token{}, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Token{}, nil, res.Err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, p.catalog, nil
}

func (p *TokenProvider) refresh(ctx context.Context) error {
	if p.cache != nil {
		entry, ok, err := p.cache.Load(p.cloud)
		if err != nil {
			p.log.Warn().Err(err).Msg("failed to read token cache")
		}
		if ok && entry.ValidAt(p.now(), p.skew) {
			catalog, err := p.fetchCatalog(ctx, entry.Token)
			if err == nil {
				p.store(domain.Token{Value: entry.Token, ExpiresAt: entry.Expiry()}, catalog)
				metrics.TokenIssuedTotal.WithLabelValues(p.cloud, "cache").Inc()
				p.log.Debug().Time("expires_at", entry.Expiry()).Msg("reusing cached token")
				return nil
			}
			if !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			p.log.Debug().Err(err).Msg("cached token rejected, re-authenticating")
			if err := p.cache.Invalidate(p.cloud); err != nil {
				p.log.Warn().Err(err).Msg("failed to remove cached token")
			}
		}
	}

	tok, catalog, err := p.issue(ctx)
	if err != nil {
		return err
	}
	p.store(tok, catalog)
	metrics.TokenIssuedTotal.WithLabelValues(p.cloud, "keystone").Inc()

	if p.cache != nil {
		if err := p.cache.Save(p.cloud, cache.NewTokenEntry(tok.Value, tok.ExpiresAt)); err != nil {
			p.log.Warn().Err(err).Msg("failed to write token cache")
		}
	}
	p.log.Info().Time("expires_at", tok.ExpiresAt).Msg("obtained new token")
	return nil
}

func (p *TokenProvider) store(tok domain.Token, catalog Catalog) {
	p.mu.Lock()
	p.token = tok
	p.catalog = catalog
	p.mu.Unlock()
}

// --- Keystone wire types ---

type authRequest struct {
	Auth authBody `json:"auth"`
}

type authBody struct {
	Identity authIdentity `json:"identity"`
	Scope    authScope    `json:"scope"`
}

type authIdentity struct {
	Methods  []string     `json:"methods"`
	Password authPassword `json:"password"`
}

type authPassword struct {
	User authUser `json:"user"`
}

type authUser struct {
	Name     string     `json:"name"`
	Domain   authDomain `json:"domain"`
	Password string     `json:"password"`
}

type authDomain struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type authScope struct {
	Project authProject `json:"project"`
}

type authProject struct {
	ID     string      `json:"id,omitempty"`
	Name   string      `json:"name,omitempty"`
	Domain *authDomain `json:"domain,omitempty"`
}

type tokenResponse struct {
	Token struct {
		ExpiresAt time.Time `json:"expires_at"`
		Catalog   Catalog   `json:"catalog"`
	} `json:"token"`
}

type catalogResponse struct {
	Catalog Catalog `json:"catalog"`
}

func (p *TokenProvider) authRequestBody() authRequest {
	c := p.creds
	project := authProject{ID: c.ProjectID}
	if c.ProjectID == "" {
		project.Name = c.ProjectName
		project.Domain = &authDomain{ID: c.ProjectDomainID, Name: c.ProjectDomainName}
		if c.ProjectDomainID != "" {
			project.Domain.Name = ""
		}
	}
	userDomain := authDomain{ID: c.UserDomainID, Name: c.UserDomainName}
	if c.UserDomainID != "" {
		userDomain.Name = ""
	}

	return authRequest{Auth: authBody{
		Identity: authIdentity{
			Methods: []string{"password"},
			Password: authPassword{User: authUser{
				Name:     c.Username,
				Domain:   userDomain,
				Password: c.Password,
			}},
		},
		Scope: authScope{Project: project},
	}}
}

// issue posts the password credentials and returns the X-Subject-Token.
func (p *TokenProvider) issue(ctx context.Context) (domain.Token, Catalog, error) {
	data, err := json.Marshal(p.authRequestBody())
	if err != nil {
		return domain.Token{}, nil, fmt.Errorf("identity: failed to encode request: %w", err)
	}

	path := "/auth/tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, identityBase(p.creds.AuthURL)+path, bytes.NewReader(data))
	if err != nil {
		return domain.Token{}, nil, fmt.Errorf("identity: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return domain.Token{}, nil, fmt.Errorf("identity: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return domain.Token{}, nil, p.rejected(resp, http.MethodPost, path)
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Token{}, nil, fmt.Errorf("identity: failed to decode token: %w", err)
	}

	value := resp.Header.Get("X-Subject-Token")
	if value == "" {
		return domain.Token{}, nil, errors.New("identity: response carried no X-Subject-Token")
	}
	return domain.Token{Value: value, ExpiresAt: out.Token.ExpiresAt}, out.Token.Catalog, nil
}

// fetchCatalog retrieves the catalog for an already issued token.
func (p *TokenProvider) fetchCatalog(ctx context.Context, token string) (Catalog, error) {
	path := "/auth/catalog"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identityBase(p.creds.AuthURL)+path, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to build request: %w", err)
	}
	req.Header.Set("X-Auth-Token", token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.rejected(resp, http.MethodGet, path)
	}

	var out catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("identity: failed to decode catalog: %w", err)
	}
	return out.Catalog, nil
}

func (p *TokenProvider) rejected(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := &domain.UpstreamError{
		Service:    "identity",
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
	}
	p.log.Warn().Int("status", resp.StatusCode).Str("path", path).Str("body", err.Body).Msg("identity request rejected")
	return err
}

// identityBase normalises auth_url so that it ends in /v3.
func identityBase(authURL string) string {
	base := strings.TrimRight(authURL, "/")
	if strings.HasSuffix(base, "/auth/tokens") {
		base = strings.TrimSuffix(base, "/auth/tokens")
	}
	if !strings.HasSuffix(base, "/v3") {
		base += "/v3"
	}
	return base
}
