package openstack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"nathanbeddoewebdev/stackgate/internal/domain"
)

type neutronFloatingIP struct {
	ID                string  `json:"id"`
	FloatingIPAddress string  `json:"floating_ip_address"`
	FloatingNetworkID string  `json:"floating_network_id"`
	PortID            *string `json:"port_id"`
	FixedIPAddress    *string `json:"fixed_ip_address"`
	Status            string  `json:"status"`
}

func toDomainFloatingIP(f neutronFloatingIP) domain.FloatingIP {
	fip := domain.FloatingIP{
		ID:        f.ID,
		Address:   f.FloatingIPAddress,
		NetworkID: f.FloatingNetworkID,
		Status:    f.Status,
	}
	if f.PortID != nil {
		fip.PortID = *f.PortID
	}
	if f.FixedIPAddress != nil {
		fip.FixedIP = *f.FixedIPAddress
	}
	return fip
}

// ListFloatingIPs returns the project's floating IPs.
func (c *Client) ListFloatingIPs(ctx context.Context) ([]domain.FloatingIP, error) {
	return c.listFloatingIPs(ctx, nil)
}

func (c *Client) listFloatingIPs(ctx context.Context, query url.Values) ([]domain.FloatingIP, error) {
	path := "/v2.0/floatingips"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out struct {
		FloatingIPs []neutronFloatingIP `json:"floatingips"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list floating IPs: %w", err)
	}

	fips := make([]domain.FloatingIP, 0, len(out.FloatingIPs))
	for _, f := range out.FloatingIPs {
		fips = append(fips, toDomainFloatingIP(f))
	}
	return fips, nil
}

// AttachFloatingIPRequest selects the server and the address source.
type AttachFloatingIPRequest struct {
	ServerName string

	// Address binds this existing floating IP. When empty, an unbound
	// address on ExternalNetwork is reused or a new one allocated.
	Address         string
	ExternalNetwork string
}

// AttachFloatingIP gives the named server a floating address and returns
// it. A server that already has one gets it back without any further call.
// If binding fails, an address allocated by this call is released again.
func (c *Client) AttachFloatingIP(ctx context.Context, req AttachFloatingIPRequest) (string, error) {
	server, err := c.FindServer(ctx, req.ServerName)
	if err != nil {
		return "", err
	}
	if server.HasFloatingIP() {
		return server.FloatingIP, nil
	}
	if req.Address == "" && req.ExternalNetwork == "" {
		return "", fmt.Errorf("floating_ip or external_network is required: %w", domain.ErrInvalidInput)
	}

	port, err := c.primaryPort(ctx, server)
	if err != nil {
		return "", err
	}

	fip, allocated, err := c.pickFloatingIP(ctx, req)
	if err != nil {
		return "", err
	}

	body := map[string]any{"floatingip": map[string]any{"port_id": port.ID}}
	path := "/v2.0/floatingips/" + url.PathEscape(fip.ID)
	if _, err := c.do(ctx, ServiceNetwork, http.MethodPut, path, body, nil); err != nil {
		bindErr := fmt.Errorf("failed to bind floating IP %s to server %q: %w", fip.Address, req.ServerName, err)
		if allocated {
			if _, relErr := c.do(ctx, ServiceNetwork, http.MethodDelete, path, nil, nil); relErr != nil {
				c.log.Error().Err(relErr).Str("floating_ip", fip.Address).Msg("failed to release floating IP after bind failure")
			} else {
				c.log.Info().Str("floating_ip", fip.Address).Msg("released floating IP after bind failure")
			}
		}
		return "", bindErr
	}

	c.log.Info().Str("server", req.ServerName).Str("floating_ip", fip.Address).Bool("allocated", allocated).Msg("floating IP attached")
	return fip.Address, nil
}

// primaryPort returns the server's port on its first network, or its first
// port when the network cannot be matched.
func (c *Client) primaryPort(ctx context.Context, server *domain.Server) (*neutronPort, error) {
	ports, err := c.listPorts(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("server %q has no ports: %w", server.Name, domain.ErrNotFound)
	}

	if primary := server.PrimaryNetwork(); primary != "" {
		if netID, err := c.Resolve(ctx, KindNetwork, primary); err == nil {
			for i := range ports {
				if ports[i].NetworkID == netID {
					return &ports[i], nil
				}
			}
		}
	}
	return &ports[0], nil
}

// pickFloatingIP finds the address to bind. allocated reports whether it
// was created by this call.
func (c *Client) pickFloatingIP(ctx context.Context, req AttachFloatingIPRequest) (fip *domain.FloatingIP, allocated bool, err error) {
	if req.Address != "" {
		fips, err := c.listFloatingIPs(ctx, url.Values{"floating_ip_address": {req.Address}})
		if err != nil {
			return nil, false, err
		}
		for i := range fips {
			if fips[i].Address != req.Address {
				continue
			}
			if fips[i].Bound() {
				return nil, false, fmt.Errorf("floating IP %s is bound to port %s: %w", req.Address, fips[i].PortID, domain.ErrConflict)
			}
			return &fips[i], false, nil
		}
		return nil, false, fmt.Errorf("floating IP %s: %w", req.Address, domain.ErrNotFound)
	}

	netID, err := c.Resolve(ctx, KindNetwork, req.ExternalNetwork)
	if err != nil {
		return nil, false, fmt.Errorf("external network: %w", err)
	}

	fips, err := c.listFloatingIPs(ctx, url.Values{"floating_network_id": {netID}})
	if err != nil {
		return nil, false, err
	}
	for i := range fips {
		if fips[i].NetworkID == netID && !fips[i].Bound() {
			return &fips[i], false, nil
		}
	}

	body := map[string]any{"floatingip": map[string]any{"floating_network_id": netID}}
	var out struct {
		FloatingIP neutronFloatingIP `json:"floatingip"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodPost, "/v2.0/floatingips", body, &out); err != nil {
		return nil, false, fmt.Errorf("failed to allocate floating IP on %q: %w", req.ExternalNetwork, err)
	}
	created := toDomainFloatingIP(out.FloatingIP)
	c.log.Info().Str("floating_ip", created.Address).Str("network", req.ExternalNetwork).Msg("floating IP allocated")
	return &created, true, nil
}
