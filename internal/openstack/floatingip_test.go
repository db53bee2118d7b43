package openstack

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"nathanbeddoewebdev/stackgate/internal/domain"
)

func floatingHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /servers/detail": serversList(
			testServerJSON("srv-1", "web-1", "ACTIVE", "private", "10.0.0.4", ""),
		),
		"GET /v2.0/ports": respond(http.StatusOK, map[string]any{"ports": []any{
			map[string]any{"id": "port-1", "network_id": "net-1", "device_id": "srv-1", "device_owner": "compute:nova"},
		}}),
		"GET /v2.0/networks": respond(http.StatusOK, map[string]any{"networks": []any{
			map[string]any{"id": "net-1", "name": "private"},
			map[string]any{"id": "ext-1", "name": "public", "router:external": true},
		}}),
	}
}

func TestAttachFloatingIP_AlreadyAttached(t *testing.T) {
	srv, log := newFakeCloud(t, map[string]http.HandlerFunc{
		"GET /servers/detail": serversList(
			testServerJSON("srv-1", "web-1", "ACTIVE", "private", "10.0.0.4", "203.0.113.10"),
		),
	})
	c, _ := newTestClient(t, srv.URL)

	addr, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1", ExternalNetwork: "public"})
	if err != nil {
		t.Fatalf("AttachFloatingIP: %v", err)
	}
	if addr != "203.0.113.10" {
		t.Errorf("addr = %q, want existing address", addr)
	}
	if calls := log.all(); len(calls) != 1 || calls[0] != "GET /servers/detail" {
		t.Errorf("expected only the server lookup, got %v", calls)
	}
}

func TestAttachFloatingIP_AllocatesAndBinds(t *testing.T) {
	handlers := floatingHandlers()
	handlers["GET /v2.0/floatingips"] = respond(http.StatusOK, map[string]any{"floatingips": []any{
		map[string]any{"id": "fip-busy", "floating_ip_address": "203.0.113.5", "floating_network_id": "ext-1", "port_id": "other"},
	}})
	handlers["POST /v2.0/floatingips"] = respond(http.StatusCreated, map[string]any{"floatingip": map[string]any{
		"id": "fip-new", "floating_ip_address": "203.0.113.20", "floating_network_id": "ext-1", "port_id": nil,
	}})
	var bound string
	handlers["PUT /v2.0/floatingips/fip-new"] = func(w http.ResponseWriter, r *http.Request) {
		bound = decodeBody(t, r)["floatingip"].(map[string]any)["port_id"].(string)
		writeJSON(w, http.StatusOK, map[string]any{"floatingip": map[string]any{"id": "fip-new"}})
	}
	srv, _ := newFakeCloud(t, handlers)
	c, _ := newTestClient(t, srv.URL)

	addr, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1", ExternalNetwork: "public"})
	if err != nil {
		t.Fatalf("AttachFloatingIP: %v", err)
	}
	if addr != "203.0.113.20" {
		t.Errorf("addr = %q", addr)
	}
	if bound != "port-1" {
		t.Errorf("bound to port %q, want port-1", bound)
	}
}

func TestAttachFloatingIP_ReusesUnbound(t *testing.T) {
	handlers := floatingHandlers()
	handlers["GET /v2.0/floatingips"] = respond(http.StatusOK, map[string]any{"floatingips": []any{
		map[string]any{"id": "fip-free", "floating_ip_address": "203.0.113.7", "floating_network_id": "ext-1", "port_id": nil},
	}})
	handlers["PUT /v2.0/floatingips/fip-free"] = respond(http.StatusOK, map[string]any{"floatingip": map[string]any{"id": "fip-free"}})
	srv, log := newFakeCloud(t, handlers)
	c, _ := newTestClient(t, srv.URL)

	addr, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1", ExternalNetwork: "public"})
	if err != nil {
		t.Fatalf("AttachFloatingIP: %v", err)
	}
	if addr != "203.0.113.7" {
		t.Errorf("addr = %q", addr)
	}
	if log.count("POST /v2.0/floatingips") != 0 {
		t.Error("expected no allocation when an unbound address exists")
	}
}

func TestAttachFloatingIP_ReleasesOnBindFailure(t *testing.T) {
	handlers := floatingHandlers()
	handlers["GET /v2.0/floatingips"] = respond(http.StatusOK, map[string]any{"floatingips": []any{}})
	handlers["POST /v2.0/floatingips"] = respond(http.StatusCreated, map[string]any{"floatingip": map[string]any{
		"id": "fip-new", "floating_ip_address": "203.0.113.20", "floating_network_id": "ext-1",
	}})
	handlers["PUT /v2.0/floatingips/fip-new"] = respond(http.StatusConflict, map[string]any{
		"NeutronError": map[string]any{"message": "port has no fixed IP reachable from external network"},
	})
	handlers["DELETE /v2.0/floatingips/fip-new"] = respond(http.StatusNoContent, nil)
	srv, log := newFakeCloud(t, handlers)
	c, _ := newTestClient(t, srv.URL)

	_, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1", ExternalNetwork: "public"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if log.count("DELETE /v2.0/floatingips/fip-new") != 1 {
		t.Errorf("expected the allocated address to be released, calls %v", log.all())
	}
}

func TestAttachFloatingIP_ExplicitAddressNotReleased(t *testing.T) {
	handlers := floatingHandlers()
	handlers["GET /v2.0/floatingips"] = respond(http.StatusOK, map[string]any{"floatingips": []any{
		map[string]any{"id": "fip-mine", "floating_ip_address": "203.0.113.30", "floating_network_id": "ext-1"},
	}})
	handlers["PUT /v2.0/floatingips/fip-mine"] = respond(http.StatusInternalServerError, map[string]any{"error": "boom"})
	srv, log := newFakeCloud(t, handlers)
	c, _ := newTestClient(t, srv.URL)

	_, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1", Address: "203.0.113.30"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected upstream 500, got %v", err)
	}
	if log.indexOf("DELETE") != -1 {
		t.Error("a pre-existing address must not be released")
	}
}

func TestAttachFloatingIP_ExplicitAddressInUse(t *testing.T) {
	handlers := floatingHandlers()
	handlers["GET /v2.0/floatingips"] = respond(http.StatusOK, map[string]any{"floatingips": []any{
		map[string]any{"id": "fip-x", "floating_ip_address": "203.0.113.30", "floating_network_id": "ext-1", "port_id": "someone-else"},
	}})
	srv, _ := newFakeCloud(t, handlers)
	c, _ := newTestClient(t, srv.URL)

	_, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1", Address: "203.0.113.30"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAttachFloatingIP_RequiresSource(t *testing.T) {
	srv, _ := newFakeCloud(t, floatingHandlers())
	c, _ := newTestClient(t, srv.URL)

	_, err := c.AttachFloatingIP(context.Background(), AttachFloatingIPRequest{ServerName: "web-1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
