// Package api is the HTTP façade over the OpenStack clients: flat JSON
// bodies in, flat JSON objects out, one route per operation.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/log"
	"nathanbeddoewebdev/stackgate/internal/metrics"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/services/scaling"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Clouds hands out the client for a cloud profile. An empty name selects
// the default profile. *providers.Registry satisfies it.
type Clouds interface {
	Client(name string) (*openstack.Client, error)
}

// Options configures a Server.
type Options struct {
	Clouds  Clouds
	Scaler  *scaling.Service
	Audit   auditlog.Repository
	Version string
}

// Server serves the façade routes.
type Server struct {
	clouds  Clouds
	scaler  *scaling.Service
	audit   auditlog.Repository
	version string
	log     zerolog.Logger
}

// New returns a Server. Audit may be nil to disable the operation log.
func New(opts Options) *Server {
	scaler := opts.Scaler
	if scaler == nil {
		scaler = scaling.NewService(scaling.Options{})
	}
	return &Server{
		clouds:  opts.Clouds,
		scaler:  scaler,
		audit:   opts.Audit,
		version: opts.Version,
		log:     log.WithComponent("api"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(instrument)
		r.Use(withResolver)

		r.Get("/vms", s.handleListVMs)
		r.Get("/networks", s.handleListNetworks)
		r.Get("/subnets", s.handleListSubnets)
		r.Get("/subnets/{name}", s.handleGetSubnet)
		r.Get("/routers", s.handleListRouters)
		r.Get("/routers/{name}", s.handleGetRouter)
		r.Get("/floating_ips", s.handleListFloatingIPs)
		r.Get("/load_balancers", s.handleListLoadBalancers)

		r.Group(func(r chi.Router) {
			r.Use(s.auditTrail)

			r.Post("/create_vm", s.handleCreateVM)
			r.Post("/delete_vm", s.handleDeleteVM)
			r.Post("/scale_up", s.handleScaleUp)
			r.Post("/scale_down", s.handleScaleDown)

			r.Post("/create_network", s.handleCreateNetwork)
			r.Post("/delete_network", s.handleDeleteNetwork)
			r.Post("/create_router", s.handleCreateRouter)
			r.Post("/delete_router", s.handleDeleteRouter)
			r.Post("/add_interface", s.handleAddInterface)
			r.Post("/remove_interface", s.handleRemoveInterface)
			r.Post("/attach_floating_ip", s.handleAttachFloatingIP)

			r.Post("/create_lb", s.handleCreateLoadBalancer)
			r.Post("/create_listener", s.handleCreateListener)
			r.Post("/create_pool", s.handleCreatePool)
			r.Post("/delete_lb", s.handleDeleteLoadBalancer)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("version", s.version).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// client returns the client for the request's cloud profile and records
// it in the audit metadata.
func (s *Server) client(r *http.Request, cloud string) (*openstack.Client, error) {
	if cloud == "" {
		cloud = r.URL.Query().Get("cloud")
	}
	c, err := s.clouds.Client(cloud)
	if err != nil {
		return nil, err
	}
	auditlog.Annotate(r.Context(), auditlog.Metadata{Cloud: c.Cloud()})
	return c, nil
}
