package openstack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"nathanbeddoewebdev/stackgate/internal/domain"
)

// --- Neutron wire types ---

type neutronNetwork struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	External bool     `json:"router:external"`
	Subnets  []string `json:"subnets"`
}

type neutronSubnet struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NetworkID string `json:"network_id"`
	CIDR      string `json:"cidr"`
	GatewayIP string `json:"gateway_ip"`
	IPVersion int    `json:"ip_version"`
}

type neutronCreateSubnet struct {
	Name      string  `json:"name"`
	NetworkID string  `json:"network_id"`
	IPVersion int     `json:"ip_version"`
	CIDR      string  `json:"cidr"`
	GatewayIP *string `json:"gateway_ip,omitempty"`
}

func toDomainNetwork(n neutronNetwork) domain.Network {
	return domain.Network{
		ID:        n.ID,
		Name:      n.Name,
		Status:    n.Status,
		External:  n.External,
		SubnetIDs: n.Subnets,
	}
}

func toDomainSubnet(s neutronSubnet) domain.Subnet {
	return domain.Subnet{
		ID:        s.ID,
		Name:      s.Name,
		NetworkID: s.NetworkID,
		CIDR:      s.CIDR,
		GatewayIP: s.GatewayIP,
		IPVersion: s.IPVersion,
	}
}

// ListNetworks returns the networks visible to the project.
func (c *Client) ListNetworks(ctx context.Context) ([]domain.Network, error) {
	var out struct {
		Networks []neutronNetwork `json:"networks"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodGet, "/v2.0/networks", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	networks := make([]domain.Network, 0, len(out.Networks))
	for _, n := range out.Networks {
		networks = append(networks, toDomainNetwork(n))
	}
	return networks, nil
}

// ListSubnets returns the subnets visible to the project.
func (c *Client) ListSubnets(ctx context.Context) ([]domain.Subnet, error) {
	var out struct {
		Subnets []neutronSubnet `json:"subnets"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodGet, "/v2.0/subnets", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list subnets: %w", err)
	}

	subnets := make([]domain.Subnet, 0, len(out.Subnets))
	for _, s := range out.Subnets {
		subnets = append(subnets, toDomainSubnet(s))
	}
	return subnets, nil
}

// FindSubnet returns the first subnet named name.
func (c *Client) FindSubnet(ctx context.Context, name string) (*domain.Subnet, error) {
	subnets, err := c.ListSubnets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range subnets {
		if subnets[i].Name == name {
			return &subnets[i], nil
		}
	}
	return nil, fmt.Errorf("subnet %q: %w", name, domain.ErrNotFound)
}

// CreateNetwork creates a network and, when opts.CIDR is set, an IPv4
// subnet inside it named opts.SubnetName (default "<name>_subnet").
//
// If the network is created but the subnet is not, the returned error is a
// *domain.PartialError whose Done field holds the NetworkWithSubnet.
func (c *Client) CreateNetwork(ctx context.Context, opts domain.CreateNetworkOpts) (*domain.NetworkWithSubnet, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("network name is required: %w", domain.ErrInvalidInput)
	}

	var netOut struct {
		Network neutronNetwork `json:"network"`
	}
	body := map[string]any{"network": map[string]any{"name": opts.Name, "admin_state_up": true}}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodPost, "/v2.0/networks", body, &netOut); err != nil {
		return nil, fmt.Errorf("failed to create network %q: %w", opts.Name, err)
	}
	ResolverFrom(ctx).forget(c.cloud, KindNetwork)

	network := toDomainNetwork(netOut.Network)
	result := &domain.NetworkWithSubnet{Network: &network}
	c.log.Info().Str("network", network.Name).Str("id", network.ID).Msg("network created")

	if opts.CIDR == "" {
		return result, nil
	}

	subnetName := opts.SubnetName
	if subnetName == "" {
		subnetName = opts.Name + "_subnet"
	}
	req := neutronCreateSubnet{
		Name:      subnetName,
		NetworkID: network.ID,
		IPVersion: 4,
		CIDR:      opts.CIDR,
	}
	if opts.GatewayIP != "" {
		req.GatewayIP = &opts.GatewayIP
	}

	var subOut struct {
		Subnet neutronSubnet `json:"subnet"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodPost, "/v2.0/subnets", map[string]any{"subnet": req}, &subOut); err != nil {
		return result, &domain.PartialError{
			Done: result,
			Err:  fmt.Errorf("network %q created but subnet %q failed: %w", opts.Name, subnetName, err),
		}
	}
	ResolverFrom(ctx).forget(c.cloud, KindSubnet)

	subnet := toDomainSubnet(subOut.Subnet)
	result.Subnet = &subnet
	network.SubnetIDs = append(network.SubnetIDs, subnet.ID)
	c.log.Info().Str("subnet", subnet.Name).Str("id", subnet.ID).Str("cidr", subnet.CIDR).Msg("subnet created")
	return result, nil
}

// DeleteNetwork deletes the first network named name.
func (c *Client) DeleteNetwork(ctx context.Context, name string) (string, error) {
	id, err := c.Resolve(ctx, KindNetwork, name)
	if err != nil {
		return "", err
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodDelete, "/v2.0/networks/"+url.PathEscape(id), nil, nil); err != nil {
		return id, fmt.Errorf("failed to delete network %q: %w", name, err)
	}
	ResolverFrom(ctx).forget(c.cloud, KindNetwork)
	c.log.Info().Str("network", name).Str("id", id).Msg("network deleted")
	return id, nil
}

// --- Ports ---

type neutronFixedIP struct {
	SubnetID  string `json:"subnet_id"`
	IPAddress string `json:"ip_address"`
}

type neutronPort struct {
	ID          string           `json:"id"`
	NetworkID   string           `json:"network_id"`
	DeviceID    string           `json:"device_id"`
	DeviceOwner string           `json:"device_owner"`
	FixedIPs    []neutronFixedIP `json:"fixed_ips"`
}

// listPorts returns the ports attached to deviceID.
func (c *Client) listPorts(ctx context.Context, deviceID string) ([]neutronPort, error) {
	var out struct {
		Ports []neutronPort `json:"ports"`
	}
	path := "/v2.0/ports?device_id=" + url.QueryEscape(deviceID)
	if _, err := c.do(ctx, ServiceNetwork, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list ports of %s: %w", deviceID, err)
	}
	ports := out.Ports[:0]
	for _, p := range out.Ports {
		if p.DeviceID == "" || p.DeviceID == deviceID {
			ports = append(ports, p)
		}
	}
	return ports, nil
}
