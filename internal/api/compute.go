package api

import (
	"fmt"
	"net/http"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/domain"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/util"
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", err, domain.ErrInvalidInput)
}

func (s *Server) handleListVMs(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	servers, err := c.ListServers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if servers == nil {
		servers = []domain.Server{}
	}
	writeJSON(w, http.StatusOK, servers)
}

type createVMRequest struct {
	Name        string `json:"name"`
	NetworkName string `json:"network_name"`
	KeyName     string `json:"key_name"`
	UserData    string `json:"user_data"`
	Image       string `json:"image"`
	Flavor      string `json:"flavor"`
	AllowScale  bool   `json:"allow_scale"`
	Wait        bool   `json:"wait"`
	Cloud       string `json:"cloud"`
}

func (s *Server) handleCreateVM(w http.ResponseWriter, r *http.Request) {
	var req createVMRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("name", req.Name), field("network_name", req.NetworkName)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := util.ValidateServerName(req.Name); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "server", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	server, err := c.CreateVM(r.Context(), openstack.CreateVMRequest{
		Name:        req.Name,
		NetworkName: req.NetworkName,
		KeyName:     req.KeyName,
		UserData:    req.UserData,
		Image:       req.Image,
		Flavor:      req.Flavor,
		AllowScale:  req.AllowScale,
		Wait:        req.Wait,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: server.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     server.ID,
		"name":   server.Name,
		"status": server.Status,
	})
}

type nameRequest struct {
	Name  string `json:"name"`
	Cloud string `json:"cloud"`
}

func (s *Server) handleDeleteVM(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(field("name", req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "server", ResourceName: req.Name})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return
	}
	server, err := c.DeleteServerByName(r.Context(), req.Name)
	if server != nil {
		auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: server.ID})
	}
	if err != nil {
		writeError(w, r, err, map[string]any{"deleted_vm": req.Name})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted_vm": req.Name, "success": true})
}

type scaleRequest struct {
	BaseInstanceName string `json:"base_instance_name"`
	Cloud            string `json:"cloud"`
}

func (s *Server) decodeScale(w http.ResponseWriter, r *http.Request) (*scaleRequest, *openstack.Client, bool) {
	var req scaleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	if err := required(field("base_instance_name", req.BaseInstanceName)); err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceType: "server", ResourceName: req.BaseInstanceName})

	c, err := s.client(r, req.Cloud)
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	return &req, c, true
}

func (s *Server) handleScaleUp(w http.ResponseWriter, r *http.Request) {
	req, c, ok := s.decodeScale(w, r)
	if !ok {
		return
	}

	clone, err := s.scaler.ScaleUp(r.Context(), c, req.BaseInstanceName)
	if err != nil {
		extra := map[string]any{"base_instance": req.BaseInstanceName}
		if clone != nil {
			extra["created_clone"] = clone.Name
			extra["id"] = clone.ID
			auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: clone.ID})
		}
		writeError(w, r, err, extra)
		return
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{ResourceID: clone.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"base_instance": req.BaseInstanceName,
		"created_clone": clone.Name,
		"id":            clone.ID,
		"status":        clone.Status,
	})
}

func (s *Server) handleScaleDown(w http.ResponseWriter, r *http.Request) {
	req, c, ok := s.decodeScale(w, r)
	if !ok {
		return
	}

	deleted, err := s.scaler.ScaleDown(r.Context(), c, req.BaseInstanceName)
	if err != nil {
		extra := map[string]any{"base_instance": req.BaseInstanceName}
		if deleted != "" {
			extra["deleted_clone"] = deleted
		}
		writeError(w, r, err, extra)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"base_instance": req.BaseInstanceName,
		"deleted_clone": deleted,
	})
}
