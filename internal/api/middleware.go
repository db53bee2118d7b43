package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/metrics"
	"nathanbeddoewebdev/stackgate/internal/openstack"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// maxBody caps request bodies read by the façade.
const maxBody = 1 << 20

// requestIDHeader carries the correlation id in both directions.
const requestIDHeader = "X-Request-Id"

// requestID keeps a caller-supplied X-Request-Id or mints a UUID, stores it
// where middleware.GetReqID finds it and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		evt := s.log.Info()
		switch {
		case status >= 500:
			evt = s.log.Error()
		case status >= 400:
			evt = s.log.Warn()
		case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
			evt = s.log.Debug()
		}
		evt.Str("method", r.Method).
			Str("route", routePattern(r)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// instrument records request counts and latency per route.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := metrics.NewTimer()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		metrics.APIRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		timer.ObserveDuration(metrics.APIRequestDuration.WithLabelValues(route, r.Method))
	})
}

// withResolver gives each request its own name-resolution memo.
func withResolver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(openstack.WithResolver(r.Context())))
	})
}

// auditTrail records mutating requests when an audit repository is set.
// Failures to record are logged and never fail the request.
func (s *Server) auditTrail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.audit == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil {
			writeError(w, r, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ctx := auditlog.WithMetadata(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		meta := auditlog.MetadataFromContext(ctx)
		status := ww.Status()
		entry := &auditlog.AuditEntry{
			RequestID:    middleware.GetReqID(ctx),
			Route:        r.Method + " " + routePattern(r),
			Request:      auditlog.SanitizeRequest(body),
			Cloud:        meta.Cloud,
			ResourceType: meta.ResourceType,
			ResourceID:   meta.ResourceID,
			ResourceName: meta.ResourceName,
			Status:       status,
			Outcome:      outcomeFor(status),
			Detail:       meta.Detail,
			DurationMs:   time.Since(start).Milliseconds(),
		}
		if err := s.audit.Save(entry); err != nil {
			s.log.Warn().Err(err).Str("route", entry.Route).Msg("failed to record audit entry")
		}
	})
}

func outcomeFor(status int) string {
	switch {
	case status == http.StatusAccepted:
		return auditlog.OutcomeUnresolved
	case status >= 200 && status < 300:
		return auditlog.OutcomeSuccess
	default:
		return auditlog.OutcomeError
	}
}
