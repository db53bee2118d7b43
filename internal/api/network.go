package api

import (
	"context"
	"net/http"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/util"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	networks, err := c.ListNetworks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if networks == nil {
		networks = []domain.Network{}
	}
	writeJSON(w, http.StatusOK, networks)
}

func (s *Server) handleListSubnets(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	subnets, err := c.ListSubnets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subnets == nil {
		subnets = []domain.Subnet{}
	}
	writeJSON(w, http.StatusOK, subnets)
}

func (s *Server) handleGetSubnet(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	subnet, err := c.FindSubnet(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subnet)
}

func (s *Server) handleListRouters(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	routers, err := c.ListRouters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if routers == nil {
		routers = []domain.Router{}
	}
	writeJSON(w, http.StatusOK, routers)
}

// handleGetRouter also reports the subnets the router is attached to.
func (s *Server) handleGetRouter(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	router, err := c.DescribeRouter(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, router)
}

func (s *Server) handleListFloatingIPs(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fips, err := c.ListFloatingIPs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fips)
}

type createNetworkRequest struct {
	Name       string `json:"name"`
	CIDR       string `json:"cidr"`
	SubnetName string `json:"subnet_name"`
	GatewayIP  string `json:"gateway_ip"`
	Cloud      string `json:"cloud"`
}

func (s *Server) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	var req createNetworkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := util.ValidateResourceName("network", req.Name); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	if req.SubnetName != "" {
		if err := util.ValidateResourceName("subnet", req.SubnetName); err != nil {
			writeError(w, r, invalid(err))
			return
		}
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "network", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := c.CreateNetwork(r.Context(), domain.CreateNetworkOpts{
		Name:       req.Name,
		CIDR:       req.CIDR,
		SubnetName: req.SubnetName,
		GatewayIP:  req.GatewayIP,
	})
	if result != nil && result.Network != nil {
		auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: result.Network.ID})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	body := map[string]any{
		"network_id":   result.Network.ID,
		"network_name": result.Network.Name,
		"subnet_id":    nil,
		"subnet_name":  nil,
	}
	if result.Subnet != nil {
		body["subnet_id"] = result.Subnet.ID
		body["subnet_name"] = result.Subnet.Name
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDeleteNetwork(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("name", req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "network", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := c.DeleteNetwork(r.Context(), req.Name)
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted_network": req.Name, "success": true})
}

type createRouterRequest struct {
	RouterName          string `json:"router_name"`
	ExternalNetworkName string `json:"external_network_name"`
	Cloud               string `json:"cloud"`
}

func (s *Server) handleCreateRouter(w http.ResponseWriter, r *http.Request) {
	var req createRouterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("router_name", req.RouterName), field("external_network_name", req.ExternalNetworkName)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := util.ValidateResourceName("router", req.RouterName); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "router", ResourceName: req.RouterName})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	router, err := c.CreateRouter(r.Context(), req.RouterName, req.ExternalNetworkName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: router.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"router_id":   router.ID,
		"router_name": router.Name,
		"status":      router.Status,
	})
}

type routerNameRequest struct {
	RouterName string `json:"router_name"`
	Cloud      string `json:"cloud"`
}

func (s *Server) handleDeleteRouter(w http.ResponseWriter, r *http.Request) {
	var req routerNameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("router_name", req.RouterName)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "router", ResourceName: req.RouterName})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := c.DeleteRouter(r.Context(), req.RouterName)
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted_router": req.RouterName, "success": true})
}

type interfaceRequest struct {
	RouterName string `json:"router_name"`
	SubnetName string `json:"subnet_name"`
	Cloud      string `json:"cloud"`
}

func (s *Server) handleAddInterface(w http.ResponseWriter, r *http.Request) {
	s.routerInterface(w, r, (*openstack.Client).AddInterface)
}

func (s *Server) handleRemoveInterface(w http.ResponseWriter, r *http.Request) {
	s.routerInterface(w, r, (*openstack.Client).RemoveInterface)
}

type interfaceOp func(c *openstack.Client, ctx context.Context, router, subnet string) error

func (s *Server) routerInterface(w http.ResponseWriter, r *http.Request, op interfaceOp) {
	var req interfaceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("router_name", req.RouterName), field("subnet_name", req.SubnetName)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "router", ResourceName: req.RouterName})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := op(c, r.Context(), req.RouterName, req.SubnetName); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"router":  req.RouterName,
		"subnet":  req.SubnetName,
		"success": true,
	})
}

type attachFloatingIPRequest struct {
	ServerName      string `json:"server_name"`
	ExternalNetwork string `json:"external_network"`
	FloatingIP      string `json:"floating_ip"`
	Cloud           string `json:"cloud"`
}

func (s *Server) handleAttachFloatingIP(w http.ResponseWriter, r *http.Request) {
	var req attachFloatingIPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("server_name", req.ServerName)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "floating_ip", ResourceName: req.ServerName})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	addr, err := c.AttachFloatingIP(r.Context(), openstack.AttachFloatingIPRequest{
		ServerName:      req.ServerName,
		Address:         req.FloatingIP,
		ExternalNetwork: req.ExternalNetwork,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: addr})

	writeJSON(w, http.StatusOK, map[string]any{"server": req.ServerName, "floating_ip": addr})
}
