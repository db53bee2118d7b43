package openstack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"nathanbeddoewebdev/stackgate/internal/domain"
)

// Device owners of the ports that bind a router to a subnet.
var routerInterfaceOwners = map[string]bool{
	"network:router_interface":               true,
	"network:router_interface_distributed":   true,
	"network:ha_router_replicated_interface": true,
}

type neutronRouter struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Status              string `json:"status"`
	ExternalGatewayInfo *struct {
		NetworkID string `json:"network_id"`
	} `json:"external_gateway_info"`
}

func toDomainRouter(r neutronRouter) domain.Router {
	router := domain.Router{ID: r.ID, Name: r.Name, Status: r.Status}
	if r.ExternalGatewayInfo != nil {
		router.ExternalNetworkID = r.ExternalGatewayInfo.NetworkID
	}
	return router
}

// ListRouters returns the routers visible to the project.
func (c *Client) ListRouters(ctx context.Context) ([]domain.Router, error) {
	var out struct {
		Routers []neutronRouter `json:"routers"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodGet, "/v2.0/routers", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list routers: %w", err)
	}

	routers := make([]domain.Router, 0, len(out.Routers))
	for _, r := range out.Routers {
		routers = append(routers, toDomainRouter(r))
	}
	return routers, nil
}

// CreateRouter creates a router whose gateway is the external network
// named externalNetwork.
func (c *Client) CreateRouter(ctx context.Context, name, externalNetwork string) (*domain.Router, error) {
	if name == "" {
		return nil, fmt.Errorf("router name is required: %w", domain.ErrInvalidInput)
	}
	extID, err := c.Resolve(ctx, KindNetwork, externalNetwork)
	if err != nil {
		return nil, fmt.Errorf("external network: %w", err)
	}

	body := map[string]any{"router": map[string]any{
		"name":                  name,
		"admin_state_up":        true,
		"external_gateway_info": map[string]string{"network_id": extID},
	}}
	var out struct {
		Router neutronRouter `json:"router"`
	}
	if _, err := c.do(ctx, ServiceNetwork, http.MethodPost, "/v2.0/routers", body, &out); err != nil {
		return nil, fmt.Errorf("failed to create router %q: %w", name, err)
	}
	ResolverFrom(ctx).forget(c.cloud, KindRouter)

	router := toDomainRouter(out.Router)
	c.log.Info().Str("router", router.Name).Str("id", router.ID).Msg("router created")
	return &router, nil
}

// RouterInterfaces lists the subnet interfaces attached to routerID.
func (c *Client) RouterInterfaces(ctx context.Context, routerID string) ([]domain.RouterInterface, error) {
	ports, err := c.listPorts(ctx, routerID)
	if err != nil {
		return nil, err
	}

	var ifaces []domain.RouterInterface
	for _, p := range ports {
		if !routerInterfaceOwners[p.DeviceOwner] {
			continue
		}
		seen := map[string]bool{}
		for _, ip := range p.FixedIPs {
			if ip.SubnetID == "" || seen[ip.SubnetID] {
				continue
			}
			seen[ip.SubnetID] = true
			ifaces = append(ifaces, domain.RouterInterface{PortID: p.ID, SubnetID: ip.SubnetID})
		}
	}
	return ifaces, nil
}

// DescribeRouter returns the router named name with its interface subnets.
func (c *Client) DescribeRouter(ctx context.Context, name string) (*domain.Router, error) {
	routers, err := c.ListRouters(ctx)
	if err != nil {
		return nil, err
	}
	for i := range routers {
		if routers[i].Name != name {
			continue
		}
		router := routers[i]
		ifaces, err := c.RouterInterfaces(ctx, router.ID)
		if err != nil {
			return nil, err
		}
		for _, iface := range ifaces {
			router.InterfaceSubnetIDs = append(router.InterfaceSubnetIDs, iface.SubnetID)
		}
		return &router, nil
	}
	return nil, fmt.Errorf("router %q: %w", name, domain.ErrNotFound)
}

func (c *Client) routerInterfaceCall(ctx context.Context, action, routerID, subnetID string) error {
	path := "/v2.0/routers/" + url.PathEscape(routerID) + "/" + action
	_, err := c.do(ctx, ServiceNetwork, http.MethodPut, path, map[string]string{"subnet_id": subnetID}, nil)
	return err
}

// AddInterface attaches the subnet named subnetName to the router named
// routerName.
func (c *Client) AddInterface(ctx context.Context, routerName, subnetName string) error {
	routerID, err := c.Resolve(ctx, KindRouter, routerName)
	if err != nil {
		return err
	}
	subnetID, err := c.Resolve(ctx, KindSubnet, subnetName)
	if err != nil {
		return err
	}
	if err := c.routerInterfaceCall(ctx, "add_router_interface", routerID, subnetID); err != nil {
		return fmt.Errorf("failed to add subnet %q to router %q: %w", subnetName, routerName, err)
	}
	c.log.Info().Str("router", routerName).Str("subnet", subnetName).Msg("router interface added")
	return nil
}

// RemoveInterface detaches the subnet named subnetName from the router
// named routerName.
func (c *Client) RemoveInterface(ctx context.Context, routerName, subnetName string) error {
	routerID, err := c.Resolve(ctx, KindRouter, routerName)
	if err != nil {
		return err
	}
	subnetID, err := c.Resolve(ctx, KindSubnet, subnetName)
	if err != nil {
		return err
	}
	if err := c.routerInterfaceCall(ctx, "remove_router_interface", routerID, subnetID); err != nil {
		return fmt.Errorf("failed to remove subnet %q from router %q: %w", subnetName, routerName, err)
	}
	c.log.Info().Str("router", routerName).Str("subnet", subnetName).Msg("router interface removed")
	return nil
}

// DeleteRouter detaches every subnet interface of the router named name and
// then deletes it. The first failed detach aborts the teardown; interfaces
// already removed stay removed.
func (c *Client) DeleteRouter(ctx context.Context, name string) (string, error) {
	routerID, err := c.Resolve(ctx, KindRouter, name)
	if err != nil {
		return "", err
	}

	ifaces, err := c.RouterInterfaces(ctx, routerID)
	if err != nil {
		return routerID, err
	}
	for _, iface := range ifaces {
		if err := c.routerInterfaceCall(ctx, "remove_router_interface", routerID, iface.SubnetID); err != nil {
			return routerID, fmt.Errorf("failed to detach subnet %s from router %q: %w", iface.SubnetID, name, err)
		}
		c.log.Debug().Str("router", name).Str("subnet_id", iface.SubnetID).Msg("router interface detached")
	}

	if _, err := c.do(ctx, ServiceNetwork, http.MethodDelete, "/v2.0/routers/"+url.PathEscape(routerID), nil, nil); err != nil {
		return routerID, fmt.Errorf("failed to delete router %q: %w", name, err)
	}
	ResolverFrom(ctx).forget(c.cloud, KindRouter)
	c.log.Info().Str("router", name).Str("id", routerID).Int("interfaces", len(ifaces)).Msg("router deleted")
	return routerID, nil
}
