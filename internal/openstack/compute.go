package openstack

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/metrics"
	"nathanbeddoewebdev/stackgate/internal/poll"
)

// MetadataUserData is the server metadata key that keeps a copy of the
// boot script so clones can reuse it.
const MetadataUserData = "user_data"

// maxMetadataValue is Nova's limit on a metadata value.
const maxMetadataValue = 255

// --- Nova wire types ---

// novaRef decodes the image/flavor reference of a server, which is either
// an object with an id or the empty string for volume-backed servers.
type novaRef struct {
	ID string `json:"id"`
}

func (r *novaRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*r = novaRef{}
		return nil
	}
	type plain novaRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = novaRef(p)
	return nil
}

type novaAddress struct {
	Addr    string `json:"addr"`
	Version int    `json:"version"`
	Type    string `json:"OS-EXT-IPS:type"`
}

type networkAddresses struct {
	Network   string
	Addresses []novaAddress
}

// orderedAddresses decodes the addresses object while keeping the key
// order the platform sent.
type orderedAddresses []networkAddresses

func (o *orderedAddresses) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("addresses: expected object, got %v", tok)
	}

	var out orderedAddresses
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("addresses: unexpected key %v", keyTok)
		}
		var addrs []novaAddress
		if err := dec.Decode(&addrs); err != nil {
			return fmt.Errorf("addresses[%s]: %w", key, err)
		}
		out = append(out, networkAddresses{Network: key, Addresses: addrs})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

type novaServer struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Status    string            `json:"status"`
	Image     novaRef           `json:"image"`
	Flavor    novaRef           `json:"flavor"`
	KeyName   string            `json:"key_name"`
	Addresses orderedAddresses  `json:"addresses"`
	Metadata  map[string]string `json:"metadata"`
	Created   time.Time         `json:"created"`
}

type novaFlavor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	VCPUs int    `json:"vcpus"`
	RAM   int    `json:"ram"`
	Disk  int    `json:"disk"`
}

type glanceImage struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type novaNetworkRef struct {
	UUID string `json:"uuid"`
}

type novaSecurityGroupRef struct {
	Name string `json:"name"`
}

type novaCreateServer struct {
	Name           string                 `json:"name"`
	ImageRef       string                 `json:"imageRef"`
	FlavorRef      string                 `json:"flavorRef"`
	Networks       []novaNetworkRef       `json:"networks"`
	SecurityGroups []novaSecurityGroupRef `json:"security_groups,omitempty"`
	KeyName        string                 `json:"key_name,omitempty"`
	UserData       string                 `json:"user_data,omitempty"`
	Metadata       map[string]string      `json:"metadata,omitempty"`
}

func toDomainServer(s novaServer) domain.Server {
	server := domain.Server{
		ID:        s.ID,
		Name:      s.Name,
		Status:    s.Status,
		ImageID:   s.Image.ID,
		FlavorID:  s.Flavor.ID,
		KeyName:   s.KeyName,
		Metadata:  s.Metadata,
		CreatedAt: s.Created,
	}
	for _, net := range s.Addresses {
		server.Networks = append(server.Networks, net.Network)
		for _, a := range net.Addresses {
			switch a.Type {
			case domain.AddressTypeFloating:
				server.FloatingIPs = append(server.FloatingIPs, a.Addr)
				if server.FloatingIP == "" {
					server.FloatingIP = a.Addr
				}
			default:
				server.FixedIPs = append(server.FixedIPs, a.Addr)
				if server.PrivateIP == "" {
					server.PrivateIP = a.Addr
				}
			}
		}
	}
	return server
}

// --- Servers ---

// ListServers returns every server in the project with addresses.
func (c *Client) ListServers(ctx context.Context) ([]domain.Server, error) {
	var out struct {
		Servers []novaServer `json:"servers"`
	}
	if _, err := c.do(ctx, ServiceCompute, http.MethodGet, "/servers/detail", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	servers := make([]domain.Server, 0, len(out.Servers))
	for _, s := range out.Servers {
		servers = append(servers, toDomainServer(s))
	}
	return servers, nil
}

// GetServer fetches one server by ID.
func (c *Client) GetServer(ctx context.Context, id string) (*domain.Server, error) {
	var out struct {
		Server novaServer `json:"server"`
	}
	if _, err := c.do(ctx, ServiceCompute, http.MethodGet, "/servers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	server := toDomainServer(out.Server)
	return &server, nil
}

// FindServer returns the first server named name.
func (c *Client) FindServer(ctx context.Context, name string) (*domain.Server, error) {
	servers, err := c.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range servers {
		if servers[i].Name == name {
			return &servers[i], nil
		}
	}
	return nil, fmt.Errorf("server %q: %w", name, domain.ErrNotFound)
}

// CreateServer boots a server from already resolved IDs. It returns as soon
// as the platform accepts the request; use WaitForServer to block until the
// server is ACTIVE.
func (c *Client) CreateServer(ctx context.Context, opts domain.CreateServerOpts) (*domain.Server, error) {
	body := novaCreateServer{
		Name:      opts.Name,
		ImageRef:  opts.ImageID,
		FlavorRef: opts.FlavorID,
		Networks:  []novaNetworkRef{{UUID: opts.NetworkID}},
		KeyName:   opts.KeyName,
		Metadata:  opts.Metadata,
	}
	if opts.SecurityGroup != "" {
		body.SecurityGroups = []novaSecurityGroupRef{{Name: opts.SecurityGroup}}
	}
	if opts.UserData != "" {
		body.UserData = base64.StdEncoding.EncodeToString([]byte(opts.UserData))
	}

	var out struct {
		Server struct {
			ID string `json:"id"`
		} `json:"server"`
	}
	if _, err := c.do(ctx, ServiceCompute, http.MethodPost, "/servers", map[string]any{"server": body}, &out); err != nil {
		return nil, fmt.Errorf("failed to create server %q: %w", opts.Name, err)
	}
	if out.Server.ID == "" {
		return nil, fmt.Errorf("failed to create server %q: response carried no server id", opts.Name)
	}

	c.log.Info().Str("server", opts.Name).Str("id", out.Server.ID).Msg("server create accepted")
	return &domain.Server{
		ID:       out.Server.ID,
		Name:     opts.Name,
		Status:   domain.ServerStatusBuild,
		ImageID:  opts.ImageID,
		FlavorID: opts.FlavorID,
		KeyName:  opts.KeyName,
		Metadata: opts.Metadata,
	}, nil
}

// WaitForServer polls until the server is ACTIVE. A server that enters
// ERROR fails immediately.
func (c *Client) WaitForServer(ctx context.Context, id string) (*domain.Server, error) {
	var last *domain.Server
	outcome, err := poll.Until(ctx, c.poll.ServerBuild, func(ctx context.Context) (bool, error) {
		metrics.PollAttemptsTotal.WithLabelValues("server_build").Inc()
		s, err := c.GetServer(ctx, id)
		if err != nil {
			return false, err
		}
		last = s
		switch s.Status {
		case domain.ServerStatusActive:
			return true, nil
		case domain.ServerStatusError:
			return false, fmt.Errorf("server %s (%s) entered ERROR state", s.Name, id)
		}
		return false, nil
	})

	switch outcome {
	case poll.Done:
		return last, nil
	case poll.TimedOut:
		return last, fmt.Errorf("waiting for server %s: %w", id, err)
	}
	if err != nil {
		return last, err
	}
	status := "unknown"
	if last != nil {
		status = last.Status
	}
	return last, fmt.Errorf("server %s still %s after %d checks", id, status, c.poll.ServerBuild.MaxAttempts)
}

// DeleteServer deletes the server with the given ID and waits until the
// platform no longer returns it.
func (c *Client) DeleteServer(ctx context.Context, id string) error {
	if _, err := c.do(ctx, ServiceCompute, http.MethodDelete, "/servers/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete server %s: %w", id, err)
	}

	outcome, err := poll.Until(ctx, c.poll.ServerDelete, func(ctx context.Context) (bool, error) {
		metrics.PollAttemptsTotal.WithLabelValues("server_delete").Inc()
		_, err := c.GetServer(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	})
	switch outcome {
	case poll.Done:
		return nil
	case poll.TimedOut:
		return fmt.Errorf("waiting for server %s deletion: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("waiting for server %s deletion: %w", id, err)
	}
	return fmt.Errorf("server %s: %w", id, domain.ErrDeleteUnresolved)
}

// DeleteServerByName resolves name and deletes that server.
func (c *Client) DeleteServerByName(ctx context.Context, name string) (*domain.Server, error) {
	server, err := c.FindServer(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.DeleteServer(ctx, server.ID); err != nil {
		return server, err
	}
	c.log.Info().Str("server", name).Str("id", server.ID).Msg("server deleted")
	return server, nil
}

// --- Catalog ---

// ListFlavors returns the flavors visible to the project.
func (c *Client) ListFlavors(ctx context.Context) ([]domain.Flavor, error) {
	var out struct {
		Flavors []novaFlavor `json:"flavors"`
	}
	if _, err := c.do(ctx, ServiceCompute, http.MethodGet, "/flavors/detail", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list flavors: %w", err)
	}

	flavors := make([]domain.Flavor, 0, len(out.Flavors))
	for _, f := range out.Flavors {
		flavors = append(flavors, domain.Flavor{ID: f.ID, Name: f.Name, VCPUs: f.VCPUs, RAM: f.RAM, Disk: f.Disk})
	}
	return flavors, nil
}

// ListImages returns every image, following the image service's
// pagination links.
func (c *Client) ListImages(ctx context.Context) ([]domain.Image, error) {
	var images []domain.Image
	path := "/v2/images?limit=100"

	for path != "" {
		var out struct {
			Images []glanceImage `json:"images"`
			Next   string        `json:"next"`
		}
		if _, err := c.do(ctx, ServiceImage, http.MethodGet, path, nil, &out); err != nil {
			return nil, fmt.Errorf("failed to list images: %w", err)
		}
		for _, img := range out.Images {
			images = append(images, domain.Image{ID: img.ID, Name: img.Name, Status: img.Status})
		}
		if out.Next == path {
			break
		}
		path = out.Next
	}
	return images, nil
}

// --- Create VM ---

// CreateVMRequest is a name-based server create.
type CreateVMRequest struct {
	Name        string
	NetworkName string
	KeyName     string
	UserData    string

	// Image and Flavor are names or IDs; empty uses the client defaults.
	Image  string
	Flavor string

	Metadata map[string]string

	// AllowScale permits a second instance on a network when the client
	// enforces one instance per network.
	AllowScale bool

	// Wait blocks until the server is ACTIVE.
	Wait bool
}

// CreateVM resolves image, flavor and network by name and boots a server.
// The boot script is also recorded in metadata (when it fits) so the server
// can later serve as a scaling base.
func (c *Client) CreateVM(ctx context.Context, req CreateVMRequest) (*domain.Server, error) {
	if req.Name == "" || req.NetworkName == "" {
		return nil, fmt.Errorf("name and network_name are required: %w", domain.ErrInvalidInput)
	}

	image := req.Image
	if image == "" {
		image = c.defaults.Image
	}
	flavor := req.Flavor
	if flavor == "" {
		flavor = c.defaults.Flavor
	}

	imageID, err := c.Resolve(ctx, KindImage, image)
	if err != nil {
		return nil, err
	}
	flavorID, err := c.Resolve(ctx, KindFlavor, flavor)
	if err != nil {
		return nil, err
	}
	networkID, err := c.Resolve(ctx, KindNetwork, req.NetworkName)
	if err != nil {
		return nil, err
	}

	if c.defaults.SingleInstancePerNetwork && !req.AllowScale {
		servers, err := c.ListServers(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range servers {
			for _, n := range s.Networks {
				if n == req.NetworkName {
					return nil, fmt.Errorf("network %q already hosts server %q; set allow_scale to add another: %w",
						req.NetworkName, s.Name, domain.ErrConflict)
				}
			}
		}
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.UserData != "" {
		if len(req.UserData) <= maxMetadataValue {
			metadata[MetadataUserData] = req.UserData
		} else {
			c.log.Warn().Str("server", req.Name).Int("bytes", len(req.UserData)).
				Msg("user data too long for metadata; clones will boot without it")
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	server, err := c.CreateServer(ctx, domain.CreateServerOpts{
		Name:          req.Name,
		ImageID:       imageID,
		FlavorID:      flavorID,
		NetworkID:     networkID,
		KeyName:       req.KeyName,
		SecurityGroup: c.defaults.SecurityGroup,
		UserData:      req.UserData,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}
	if !req.Wait {
		return server, nil
	}

	active, err := c.WaitForServer(ctx, server.ID)
	if err != nil {
		return server, fmt.Errorf("server %q (%s) created but not active: %w", req.Name, server.ID, err)
	}
	return active, nil
}
