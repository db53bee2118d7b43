package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode reads a flat JSON object into dst, rejecting unknown fields.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", domain.ErrInvalidInput)
		}
		return fmt.Errorf("invalid request body: %v: %w", err, domain.ErrInvalidInput)
	}
	if dec.More() {
		return fmt.Errorf("request body must hold a single JSON object: %w", domain.ErrInvalidInput)
	}
	return nil
}

// required returns ErrInvalidInput naming the first empty field.
func required(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return fmt.Errorf("%s is required: %w", f[0], domain.ErrInvalidInput)
		}
	}
	return nil
}

func field(name, value string) [2]string { return [2]string{name, value} }

// statusFor maps an error onto the façade's HTTP status.
func statusFor(err error) int {
	var partial *domain.PartialError
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &partial):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrDeleteUnresolved):
		return http.StatusAccepted
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &upstream), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes err as {"error": ...}. extra fields are merged into
// the body, which lets unresolved deletes echo what they were deleting.
func writeError(w http.ResponseWriter, r *http.Request, err error, extra ...map[string]any) {
	status := statusFor(err)
	body := map[string]any{"error": err.Error()}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}

	switch status {
	case http.StatusAccepted:
		body["success"] = false
		body["retry"] = true
	case http.StatusBadGateway:
		var partial *domain.PartialError
		if errors.As(err, &partial) {
			body["partial"] = true
			body["completed"] = partial.Done
		}
	}

	auditlog.Annotate(r.Context(), auditlog.Metadata{Detail: err.Error()})
	writeJSON(w, status, body)
}
