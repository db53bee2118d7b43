package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for error classification across the OpenStack clients,
// the scaling workflow and the HTTP façade. Clients wrap these so callers
// can branch on the category without knowing which service produced it.
//
//	return fmt.Errorf("router %q: %w", name, domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the platform throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a state or uniqueness conflict, such as an
	// operation on a load balancer that is still PENDING_UPDATE.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the caller supplied a malformed or
	// incomplete request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDeleteUnresolved indicates an asynchronous delete was accepted
	// but the resource was still present when the polling budget ran out.
	// The caller should retry later.
	ErrDeleteUnresolved = errors.New("delete not confirmed, retry later")
)

// UpstreamError describes a non-2xx response from an OpenStack service.
type UpstreamError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: %s %s returned %d: %s", e.Service, e.Method, e.Path, e.StatusCode, body)
}

// Unwrap maps the status code onto a sentinel so callers can use
// errors.Is(err, ErrNotFound) and friends on upstream failures.
func (e *UpstreamError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrInvalidInput
	}
	return nil
}

// PartialError reports a multi-step operation that completed some steps
// before failing. Done carries whatever was created.
type PartialError struct {
	Done any
	Err  error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partially completed: %v", e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
