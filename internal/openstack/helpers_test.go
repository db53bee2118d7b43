package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nathanbeddoewebdev/stackgate/internal/poll"
)

// --- Test helpers ---

// callLog records "METHOD /path" for every request a fake cloud receives.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// count returns how many recorded calls start with prefix.
func (l *callLog) count(prefix string) int {
	n := 0
	for _, c := range l.all() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// indexOf returns the position of the first call starting with prefix, or -1.
func (l *callLog) indexOf(prefix string) int {
	for i, c := range l.all() {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

// newFakeCloud creates a httptest.Server that routes requests based on
// method + path. The handler map keys are "METHOD /path" strings; the query
// string is ignored for matching but recorded in the call log.
func newFakeCloud(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			call += "?" + r.URL.RawQuery
		}
		log.add(call)

		handler, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"itemNotFound": map[string]any{"message": fmt.Sprintf("no handler for %s %s", r.Method, r.URL.Path)},
			})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func respond(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, body)
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("failed to decode request body: %v", err)
	}
	return body
}

// staticAuth serves every service from one base URL with a fixed token.
type staticAuth struct {
	baseURL string

	mu          sync.Mutex
	invalidated int
}

func (a *staticAuth) Token(context.Context) (string, error) { return "test-token", nil }

func (a *staticAuth) Endpoint(context.Context, string) (string, error) { return a.baseURL, nil }

func (a *staticAuth) Invalidate() {
	a.mu.Lock()
	a.invalidated++
	a.mu.Unlock()
}

func fastPoll(attempts int) poll.Config {
	return poll.Config{MaxAttempts: attempts, Interval: time.Millisecond, MaxInterval: time.Millisecond}
}

// newTestClient creates a Client pointed at the given fake cloud with
// millisecond poll intervals.
func newTestClient(t *testing.T, serverURL string) (*Client, *staticAuth) {
	t.Helper()
	auth := &staticAuth{baseURL: serverURL}
	c := NewClient(auth, Options{
		Cloud: "test",
		Poll: PollSettings{
			ServerBuild:  fastPoll(5),
			ServerDelete: fastPoll(5),
			LBDelete:     fastPoll(3),
			LBSettle:     fastPoll(3),
		},
	})
	return c, auth
}

// testServerJSON returns a Nova server object with one fixed address on
// network, plus a floating one when floating is non-empty.
func testServerJSON(id, name, status, network, fixed, floating string) map[string]any {
	addrs := []any{map[string]any{"addr": fixed, "version": 4, "OS-EXT-IPS:type": "fixed"}}
	if floating != "" {
		addrs = append(addrs, map[string]any{"addr": floating, "version": 4, "OS-EXT-IPS:type": "floating"})
	}
	return map[string]any{
		"id":        id,
		"name":      name,
		"status":    status,
		"image":     map[string]any{"id": "img-1"},
		"flavor":    map[string]any{"id": "flv-1"},
		"key_name":  "deploy",
		"addresses": map[string]any{network: addrs},
		"metadata":  map[string]any{},
		"created":   "2024-05-01T10:00:00Z",
	}
}

func serversList(servers ...map[string]any) http.HandlerFunc {
	items := make([]any, 0, len(servers))
	for _, s := range servers {
		items = append(items, s)
	}
	return respond(http.StatusOK, map[string]any{"servers": items})
}
