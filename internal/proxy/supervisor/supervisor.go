// Package supervisor wires the message-plane components together: given
// the already-spawned backend's pipes, it creates the writer queues and shared
// permit set, registers the built-in handlers, starts the four
// pumps/writers plus a stderr drain, and tears everything down once the
// first of the four message-plane tasks finishes (§4.5).
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/codefuse/lspproxy/internal/proxy/backend"
	"github.com/codefuse/lspproxy/internal/proxy/dispatch"
	"github.com/codefuse/lspproxy/internal/proxy/frame"
	"github.com/codefuse/lspproxy/internal/proxy/handler"
	"github.com/codefuse/lspproxy/internal/proxy/permit"
	"github.com/codefuse/lspproxy/internal/proxy/reader"
	"github.com/codefuse/lspproxy/internal/proxy/writer"
)

// Config bundles everything the supervisor needs to run one proxy
// session. FrontendIn/FrontendOut are normally the process's own
// stdin/stdout; BackendIn/BackendOut/BackendErr are the spawned child's
// stdin/stdout/stderr.
type Config struct {
	FrontendIn  io.Reader
	FrontendOut io.Writer
	BackendIn   io.Writer
	BackendOut  io.Reader
	BackendErr  io.Reader

	Registry      *handler.Registry
	ServerInfo    handler.ServerInfo
	Concurrency   int64
	VersionCheck  *backend.VersionCheck
	Rules         dispatch.RuleSource
	DrainGrace    time.Duration
}

// Session is a running proxy wiring. Its methods expose the live
// dispatcher, permit set, and registry to the diagnostics listener (a
// Session satisfies diag.Source).
type Session struct {
	dispatcher *dispatch.Dispatcher
	permits    *permit.Set
	registry   *handler.Registry
}

func (s *Session) PendingCount() int { return s.dispatcher.PendingLen() }
func (s *Session) PermitsInUse() int64 { return s.permits.InUse() }
func (s *Session) PermitsTotal() int64 { return s.permits.Total() }
func (s *Session) RegisteredMethods() (fromFrontend, fromBackend []string) {
	return s.registry.Methods(handler.FromFrontend), s.registry.Methods(handler.FromBackend)
}

// Run builds the dispatcher, writer queues, and permit set from cfg,
// registers the rebrand-initialize built-in, and runs the session until
// the first of the four message-plane tasks finishes. newSession, if
// non-nil, receives the live Session before the pumps start (used to
// hand off diagnostics wiring).
func Run(ctx context.Context, cfg Config, newSession func(*Session)) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 15
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = 2 * time.Second
	}

	reg := cfg.Registry
	if reg == nil {
		reg = handler.NewRegistry()
	}
	rebrand := handler.RebrandInitialize(cfg.ServerInfo)
	if cfg.VersionCheck != nil {
		rebrand = observeBackendVersion(cfg.VersionCheck, rebrand)
	}
	if err := reg.Register(handler.FromBackend, "initialize", rebrand); err != nil {
		return fmt.Errorf("supervisor: registering built-in handlers: %w", err)
	}
	reg.Seal()

	toBackend := writer.NewQueue()
	toFrontend := writer.NewQueue()
	d := dispatch.New(reg, toBackend, toFrontend)
	if cfg.Rules != nil {
		d.SetRuleSource(cfg.Rules)
	}

	permits := permit.NewSet(cfg.Concurrency)

	if newSession != nil {
		newSession(&Session{dispatcher: d, permits: permits, registry: reg})
	}

	frontendReader := reader.New("frontend", cfg.FrontendIn, d.RouteFromFrontend, permits)
	backendReader := reader.New("backend", cfg.BackendOut, d.RouteFromBackend, permits)
	frontendWriter := writer.NewSerializer(frame.NewWriter(cfg.FrontendOut), toFrontend)
	backendWriter := writer.NewSerializer(frame.NewWriter(cfg.BackendIn), toBackend)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	done := make(chan result, 4)
	spawn := func(name string, fn func() error) {
		go func() { done <- result{name, fn()} }()
	}

	spawn("frontend-reader", func() error { return frontendReader.Run(runCtx) })
	spawn("backend-reader", func() error { return backendReader.Run(runCtx) })
	spawn("frontend-writer", frontendWriter.Run)
	spawn("backend-writer", backendWriter.Run)

	if cfg.BackendErr != nil {
		go drainStderr(cfg.BackendErr)
	}

	first := <-done
	log.Printf("[supervisor] %s finished first (err=%v); shutting down", first.name, first.err)

	cancel()
	toBackend.Close()
	toFrontend.Close()

	remaining := 3
	deadline := time.After(cfg.DrainGrace)
	for remaining > 0 {
		select {
		case r := <-done:
			log.Printf("[supervisor] %s finished (err=%v)", r.name, r.err)
			remaining--
		case <-deadline:
			log.Printf("[supervisor] timed out waiting for %d remaining task(s) to finish", remaining)
			remaining = 0
		}
	}

	return first.err
}

// observeBackendVersion wraps a from_backend "initialize" handler so the
// backend's reported serverInfo.version is checked against the
// configured minimum before the handler rewrites it. The check is
// informational only (see backend.VersionCheck) and never changes
// whether next runs.
func observeBackendVersion(vc *backend.VersionCheck, next handler.Func) handler.Func {
	return func(ctx context.Context, body json.RawMessage, out *writer.Queue) error {
		var env struct {
			Result struct {
				ServerInfo handler.ServerInfo `json:"serverInfo"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &env); err == nil {
			vc.Observe(env.Result.ServerInfo.Version)
		}
		return next(ctx, body, out)
	}
}

// drainStderr reads the backend's stderr line by line and forwards each
// line to the proxy's own logger. Parsing the backend's own log format
// is explicitly out of scope (§1) -- this only keeps the child's stderr
// from filling an OS pipe buffer and blocking the backend.
func drainStderr(r io.Reader) {
	buf := make([]byte, 4096)
	var partial []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			partial = append(partial, buf[:n]...)
			for {
				i := bytes.IndexByte(partial, '\n')
				if i < 0 {
					break
				}
				log.Printf("[backend:stderr] %s", string(partial[:i]))
				partial = partial[i+1:]
			}
		}
		if err != nil {
			if len(partial) > 0 {
				log.Printf("[backend:stderr] %s", string(partial))
			}
			return
		}
	}
}

