// Package reader implements the per-peer reader pump: a strictly
// sequential read loop that hands each decoded frame to the dispatcher,
// spawning a bounded-concurrency task only when the dispatcher selects a
// registered handler for it (see the dispatch package's Task split).
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/codefuse/lspproxy/internal/proxy/dispatch"
	"github.com/codefuse/lspproxy/internal/proxy/frame"
	"github.com/codefuse/lspproxy/internal/proxy/permit"
)

// RouteFunc matches dispatch.Dispatcher's RouteFromFrontend and
// RouteFromBackend methods.
type RouteFunc func(body []byte) dispatch.Task

// Pump reads frames from one peer and routes each to a RouteFunc, gating
// spawned handler tasks behind a shared concurrency permit.
type Pump struct {
	name  string
	r     *frame.Reader
	route RouteFunc
	sem   *permit.Set
}

// New returns a Pump for the given peer. name is used only in log lines
// (e.g. "frontend", "backend").
func New(name string, r io.Reader, route RouteFunc, sem *permit.Set) *Pump {
	return &Pump{name: name, r: frame.NewReader(r), route: route, sem: sem}
}

// Run reads frames until a fatal codec error or clean EOF. It returns nil
// on a clean peer close, and a non-nil error for any codec failure --
// both are fatal from the supervisor's point of view (§7: "reference
// policy is terminate on any codec error").
//
// Outstanding handler tasks spawned by prior iterations are not awaited
// before Run returns: per §5, in-flight handler work may be abandoned
// without delivering its outbound frames once the peer is gone.
func (p *Pump) Run(ctx context.Context) error {
	for {
		body, err := p.r.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reader(%s): %w", p.name, err)
		}

		task := p.route(body)
		if task == nil {
			// Verbatim forward (or a drop) already happened synchronously
			// inside route -- nothing further to do before the next read.
			continue
		}

		if err := p.sem.Acquire(ctx); err != nil {
			// Only happens if ctx is canceled (shutdown in progress);
			// abandon this message rather than block the read loop.
			return nil
		}

		go func() {
			defer p.sem.Release()
			if err := task(ctx); err != nil {
				log.Printf("[reader:%s] task error: %v", p.name, err)
			}
		}()
	}
}
