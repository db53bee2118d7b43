// Package openstack talks to the Keystone, Nova, Glance, Neutron and
// Octavia REST APIs of one cloud profile.
//
// It uses a direct HTTP client rather than gophercloud to keep the
// dependency tree light: every operation here is a handful of JSON calls
// and a name lookup.
package openstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/log"
	"nathanbeddoewebdev/stackgate/internal/metrics"
	"nathanbeddoewebdev/stackgate/internal/poll"

	"github.com/rs/zerolog"
)

// Catalog service types.
const (
	ServiceCompute      = "compute"
	ServiceImage        = "image"
	ServiceNetwork      = "network"
	ServiceLoadBalancer = "load-balancer"
)

const (
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a rejected response is kept.
	maxErrorBody = 64 << 10
)

// Authenticator supplies tokens and service endpoints. *TokenProvider is
// the production implementation.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
	Endpoint(ctx context.Context, serviceType string) (string, error)
	Invalidate()
}

// PollSettings groups the poll budgets of the asynchronous operations.
type PollSettings struct {
	ServerBuild  poll.Config
	ServerDelete poll.Config
	LBDelete     poll.Config
	LBSettle     poll.Config
}

// DefaultPollSettings returns the budgets used when none are configured.
func DefaultPollSettings() PollSettings {
	return PollSettings{
		ServerBuild:  poll.ServerBuild(),
		ServerDelete: poll.Config{MaxAttempts: 60, Interval: 2 * time.Second, MaxInterval: 5 * time.Second},
		LBDelete:     poll.LoadBalancerDelete(),
		LBSettle:     poll.Config{MaxAttempts: 30, Interval: time.Second, MaxInterval: 5 * time.Second},
	}
}

// ComputeDefaults are applied to CreateServer requests that leave the
// corresponding field empty.
type ComputeDefaults struct {
	Image         string
	Flavor        string
	SecurityGroup string

	// SingleInstancePerNetwork refuses CreateVM on a network that already
	// hosts a server unless the request sets AllowScale.
	SingleInstancePerNetwork bool
}

// Options configures a Client.
type Options struct {
	Cloud      string
	HTTPClient *http.Client
	Poll       PollSettings
	Compute    ComputeDefaults
}

// Client is an authenticated handle on one cloud profile. It is safe for
// concurrent use.
type Client struct {
	cloud    string
	auth     Authenticator
	http     *http.Client
	poll     PollSettings
	defaults ComputeDefaults
	log      zerolog.Logger
}

// NewClient returns a Client that authenticates through auth.
func NewClient(auth Authenticator, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Poll == (PollSettings{}) {
		opts.Poll = DefaultPollSettings()
	}
	if opts.Compute.Image == "" {
		opts.Compute.Image = "CentOS 7"
	}
	if opts.Compute.Flavor == "" {
		opts.Compute.Flavor = "d10.xs1"
	}
	if opts.Compute.SecurityGroup == "" {
		opts.Compute.SecurityGroup = "default"
	}
	return &Client{
		cloud:    opts.Cloud,
		auth:     auth,
		http:     httpClient,
		poll:     opts.Poll,
		defaults: opts.Compute,
		log:      log.WithCloud(opts.Cloud).With().Str("component", "openstack").Logger(),
	}
}

// Cloud returns the cloud profile name this client was built for.
func (c *Client) Cloud() string {
	return c.cloud
}

// do sends one JSON request to service and decodes a 2xx response into out
// (when out is non-nil and the response has a body). Non-2xx responses are
// returned as *domain.UpstreamError, which unwraps to the matching sentinel.
func (c *Client) do(ctx context.Context, service, method, path string, body any, out any) (int, error) {
	endpoint, err := c.auth.Endpoint(ctx, service)
	if err != nil {
		return 0, err
	}
	token, err := c.auth.Token(ctx)
	if err != nil {
		return 0, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: failed to encode request: %w", service, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(endpoint, "/")+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build request: %w", service, err)
	}
	req.Header.Set("X-Auth-Token", token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(service, method, "error").Inc()
		return 0, fmt.Errorf("%s: %s %s failed: %w", service, method, stripQuery(path), err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestsTotal.WithLabelValues(service, method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusUnauthorized {
			c.auth.Invalidate()
		}
		upstream := &domain.UpstreamError{
			Service:    service,
			Method:     method,
			Path:       stripQuery(path),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
		// 404 on a GET is the expected answer of an existence check.
		if !(resp.StatusCode == http.StatusNotFound && method == http.MethodGet) {
			c.log.Warn().
				Str("service", service).
				Str("method", method).
				Str("path", upstream.Path).
				Int("status", resp.StatusCode).
				Str("body", upstream.Body).
				Msg("upstream request rejected")
		}
		return resp.StatusCode, upstream
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp.StatusCode, fmt.Errorf("%s: failed to decode response: %w", service, err)
	}
	return resp.StatusCode, nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
