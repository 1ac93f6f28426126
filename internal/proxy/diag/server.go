// Package diag exposes an optional, read-only HTTP/3 diagnostics
// endpoint reporting the pending-request table size, permit-pool usage,
// and registered handler methods. It is not part of the message plane:
// disabling it (empty listen address) changes nothing about proxy
// behavior.
package diag

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// Source supplies the live values a diagnostics snapshot reports. The
// supervisor's wiring implements this over the real dispatcher, permit
// set, and handler registry; tests can supply a fake.
type Source interface {
	PendingCount() int
	PermitsInUse() int64
	PermitsTotal() int64
	RegisteredMethods() (fromFrontend, fromBackend []string)
}

// Snapshot is the JSON body served at "/snapshot".
type Snapshot struct {
	PendingRequests    int      `json:"pendingRequests"`
	PermitsInUse       int64    `json:"permitsInUse"`
	PermitsTotal       int64    `json:"permitsTotal"`
	HandlersFromClient []string `json:"handlersFromClient"`
	HandlersFromServer []string `json:"handlersFromServer"`
}

// Server is the diagnostics HTTP/3 listener.
type Server struct {
	src    Source
	h3     *http3Server
	addr   string
	actual string
}

// NewServer builds (but does not start) a diagnostics listener bound to
// addr (e.g. "127.0.0.1:0" for an ephemeral port).
func NewServer(addr string, src Source) (*Server, error) {
	tlsCfg, err := selfSignedTLS([]string{"127.0.0.1", "localhost"})
	if err != nil {
		return nil, fmt.Errorf("diag: generating TLS identity: %w", err)
	}

	s := &Server{src: src, addr: addr}
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.h3 = newHTTP3Server(addr, tlsCfg, mux)
	return s, nil
}

// Start binds the listener and begins serving. It returns the bound
// address (useful when addr ends in ":0").
func (s *Server) Start() (string, error) {
	actual, err := s.h3.start()
	if err != nil {
		return "", fmt.Errorf("diag: start: %w", err)
	}
	s.actual = actual
	go func() {
		if err := <-s.h3.errors(); err != nil {
			log.Printf("[diag] listener error: %v", err)
		}
	}()
	return actual, nil
}

// Stop shuts the listener down.
func (s *Server) Stop() error { return s.h3.stop() }

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	fromClient, fromServer := s.src.RegisteredMethods()
	snap := Snapshot{
		PendingRequests:    s.src.PendingCount(),
		PermitsInUse:       s.src.PermitsInUse(),
		PermitsTotal:       s.src.PermitsTotal(),
		HandlersFromClient: fromClient,
		HandlersFromServer: fromServer,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Printf("[diag] encoding snapshot: %v", err)
	}
}
