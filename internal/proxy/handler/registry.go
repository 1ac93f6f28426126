// Package handler defines the pluggable per-method handler contract and
// the registry that binds handlers to a direction and LSP method name.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/codefuse/lspproxy/internal/proxy/writer"
)

// Direction distinguishes which peer a handler intercepts traffic from.
type Direction int

const (
	// FromFrontend handlers intercept client->server traffic and, if they
	// forward anything, enqueue onto the backend's writer queue.
	FromFrontend Direction = iota
	// FromBackend handlers intercept server->client traffic and enqueue
	// onto the frontend's writer queue.
	FromBackend
)

func (d Direction) String() string {
	if d == FromFrontend {
		return "from-frontend"
	}
	return "from-backend"
}

// Func is a registered handler. It receives the raw JSON-RPC body and the
// writer queue for its bound outbound side, and is responsible for
// enqueueing zero or more outbound frames itself. A returned error is
// logged and swallowed by the dispatcher -- the message is considered
// handled, not auto-forwarded.
type Func func(ctx context.Context, body json.RawMessage, out *writer.Queue) error

// Registry holds at most one handler per (direction, method) pair.
// Handlers are registered once at startup; Register returns an error for a
// (direction, method) pair that already has a handler, and for any call
// after the registry has been sealed via Seal.
type Registry struct {
	mu           sync.RWMutex
	fromFrontend map[string]Func
	fromBackend  map[string]Func
	sealed       bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		fromFrontend: make(map[string]Func),
		fromBackend:  make(map[string]Func),
	}
}

// Register binds handler to (dir, method). It fails if the registry has
// already been sealed, or if a handler is already registered for the pair.
func (r *Registry) Register(dir Direction, method string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("handler: registry sealed, cannot register %s/%s", dir, method)
	}

	table := r.tableLocked(dir)
	if _, exists := table[method]; exists {
		return fmt.Errorf("handler: %s/%s already registered", dir, method)
	}

	table[method] = fn
	return nil
}

// Seal prevents further registration. The supervisor calls this once
// startup wiring is complete.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Lookup returns the handler bound to (dir, method), if any.
func (r *Registry) Lookup(dir Direction, method string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tableLocked(dir)[method]
	return fn, ok
}

// Methods returns the registered method names for dir, for diagnostics.
// The order is unspecified.
func (r *Registry) Methods(dir Direction) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := r.tableLocked(dir)
	out := make([]string, 0, len(table))
	for m := range table {
		out = append(out, m)
	}
	return out
}

func (r *Registry) tableLocked(dir Direction) map[string]Func {
	if dir == FromFrontend {
		return r.fromFrontend
	}
	return r.fromBackend
}
