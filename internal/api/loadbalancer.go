package api

import (
	"net/http"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/util"
)

func (s *Server) handleListLoadBalancers(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lbs, err := c.ListLoadBalancers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if lbs == nil {
		lbs = []domain.LoadBalancer{}
	}
	writeJSON(w, http.StatusOK, lbs)
}

type createLoadBalancerRequest struct {
	Name          string `json:"name"`
	VIPSubnetID   string `json:"vip_subnet_id"`
	VIPSubnetName string `json:"vip_subnet_name"`
	Description   string `json:"description"`
	Cloud         string `json:"cloud"`
}

func (s *Server) handleCreateLoadBalancer(w http.ResponseWriter, r *http.Request) {
	var req createLoadBalancerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := util.ValidateResourceName("load balancer", req.Name); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "load_balancer", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lb, err := c.CreateLoadBalancer(r.Context(), openstack.CreateLoadBalancerRequest{
		Name:          req.Name,
		VIPSubnetID:   req.VIPSubnetID,
		VIPSubnetName: req.VIPSubnetName,
		Description:   req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: lb.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"lb_id":   lb.ID,
		"lb_name": lb.Name,
		"status":  lb.ProvisioningStatus,
	})
}

type createListenerRequest struct {
	Name         string `json:"name"`
	LBName       string `json:"lb_name"`
	Protocol     string `json:"protocol"`
	ProtocolPort int    `json:"protocol_port"`
	Cloud        string `json:"cloud"`
}

func (s *Server) handleCreateListener(w http.ResponseWriter, r *http.Request) {
	var req createListenerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("name", req.Name), field("lb_name", req.LBName)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "listener", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := c.CreateListener(r.Context(), req.Name, req.LBName, req.Protocol, req.ProtocolPort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: l.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"listener_id":   l.ID,
		"listener_name": l.Name,
		"lb_name":       req.LBName,
		"status":        "created",
	})
}

type createPoolRequest struct {
	Name        string `json:"name"`
	LBName      string `json:"lb_name"`
	Protocol    string `json:"protocol"`
	LBAlgorithm string `json:"lb_algorithm"`
	Cloud       string `json:"cloud"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("name", req.Name), field("lb_name", req.LBName)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "pool", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := c.CreatePool(r.Context(), req.Name, req.LBName, req.Protocol, req.LBAlgorithm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: p.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"pool_id":   p.ID,
		"pool_name": p.Name,
		"lb_name":   req.LBName,
	})
}

func (s *Server) handleDeleteLoadBalancer(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("name", req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "load_balancer", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := c.DeleteLoadBalancer(r.Context(), req.Name)
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: id})
	if err != nil {
		writeError(w, r, err, map[string]any{"lb_name": req.Name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lb_name": req.Name, "success": true})
}
