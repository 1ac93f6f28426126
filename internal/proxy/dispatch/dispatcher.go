// Package dispatch implements the proxy's dispatcher: classification,
// pending-request correlation, handler routing, and verbatim forwarding
// for both directions of LSP traffic.
//
// The dispatcher is deliberately split into a synchronous routing step
// (pending-table bookkeeping plus either an immediate verbatim enqueue or
// the selection of a registered handler) and an asynchronous invocation
// step (running the selected handler). This split exists because §5 of
// the spec requires verbatim-forward frames to be enqueued synchronously,
// in source order, from the reader pump -- not from a spawned task -- while
// handler work may legitimately take longer and must not stall reads. The
// reference Rust source spawns a task for every message, including
// verbatim forwards, and loses per-peer order as a result; this is the
// documented fix (see DESIGN.md's entry for internal/proxy/dispatch).
package dispatch

import (
	"context"
	"log"

	"github.com/codefuse/lspproxy/internal/proxy/handler"
	"github.com/codefuse/lspproxy/internal/proxy/message"
	"github.com/codefuse/lspproxy/internal/proxy/pending"
	"github.com/codefuse/lspproxy/internal/proxy/writer"
)

// RuleSource reports whether a method should be dropped rather than
// forwarded or handled, per the hot-reloadable rewrite rules (see
// internal/proxy/config). Kept as a narrow interface here so dispatch
// does not import config directly.
type RuleSource interface {
	Denied(method string) bool
}

// Dispatcher owns the shared pending-request table and handler registry,
// and holds the write-ends of both writer queues.
type Dispatcher struct {
	registry   *handler.Registry
	pending    *pending.Table
	toBackend  *writer.Queue
	toFrontend *writer.Queue
	rules      RuleSource
}

// SetRuleSource installs a RuleSource consulted before every forward or
// handler dispatch. Passing nil disables deny-method filtering (the
// default).
func (d *Dispatcher) SetRuleSource(rs RuleSource) { d.rules = rs }

func (d *Dispatcher) denied(method string) bool {
	return method != "" && d.rules != nil && d.rules.Denied(method)
}

// New wires a Dispatcher to the registry and the two outbound queues.
func New(registry *handler.Registry, toBackend, toFrontend *writer.Queue) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		pending:    pending.New(),
		toBackend:  toBackend,
		toFrontend: toFrontend,
	}
}

// PendingLen reports the number of outstanding client requests, for
// diagnostics.
func (d *Dispatcher) PendingLen() int { return d.pending.Len() }

// Task is the async unit of work a reader pump spawns under a concurrency
// permit when routing selects a registered handler.
type Task func(ctx context.Context) error

// RouteFromFrontend implements handle-from-frontend (§4.4.2). It performs
// all synchronous bookkeeping and, for unregistered methods and
// notifications, the verbatim forward itself -- before returning. It
// returns a non-nil Task only when a registered handler must run; the
// caller (the reader pump) is responsible for running that Task under a
// concurrency permit, asynchronously.
func (d *Dispatcher) RouteFromFrontend(body []byte) Task {
	env, kind := message.Classify(body)

	switch kind {
	case message.Request:
		d.recordPending(env)
		if d.denied(env.Method) {
			log.Printf("[dispatch] dropping denied method %q from frontend", env.Method)
			return nil
		}
		return d.selectOrForward(handler.FromFrontend, env.Method, body, d.toBackend)

	case message.Notification:
		if d.denied(env.Method) {
			log.Printf("[dispatch] dropping denied method %q from frontend", env.Method)
			return nil
		}
		return d.selectOrForward(handler.FromFrontend, env.Method, body, d.toBackend)

	default:
		log.Printf("[dispatch] dropping ill-formed frontend message: %s", truncate(body))
		return nil
	}
}

// RouteFromBackend implements handle-from-backend (§4.4.3).
func (d *Dispatcher) RouteFromBackend(body []byte) Task {
	env, kind := message.Classify(body)

	switch kind {
	case message.Response:
		method, known := d.resolvePendingMethod(env)
		if !known {
			// Unknown id: not an error, forward verbatim (§4.4.3, §7).
			d.toFrontend.Enqueue(body)
			return nil
		}
		if d.denied(method) {
			log.Printf("[dispatch] dropping response for denied method %q from backend", method)
			return nil
		}
		return d.selectOrForward(handler.FromBackend, method, body, d.toFrontend)

	case message.Notification:
		if d.denied(env.Method) {
			log.Printf("[dispatch] dropping denied method %q from backend", env.Method)
			return nil
		}
		return d.selectOrForward(handler.FromBackend, env.Method, body, d.toFrontend)

	case message.Request:
		// Server-originated request: both id and method present. The
		// dispatcher forwards it verbatim and does not track it in any
		// id-keyed table for server-side requests -- an open question
		// the spec leaves unresolved (§9); this is the documented
		// interpretation, not a bug.
		if d.denied(env.Method) {
			log.Printf("[dispatch] dropping denied method %q from backend", env.Method)
			return nil
		}
		d.toFrontend.Enqueue(body)
		return nil

	default:
		log.Printf("[dispatch] dropping ill-formed backend message: %s", truncate(body))
		return nil
	}
}

// recordPending inserts (id -> method) before any routing decision, per
// §4.4.2 step 1 and the happens-before invariant in §5.
func (d *Dispatcher) recordPending(env message.Envelope) {
	key, err := pending.KeyFromRaw(env.ID)
	if err != nil {
		log.Printf("[dispatch] request with unusable id, not tracked: %v", err)
		return
	}
	if overwritten := d.pending.Insert(key, env.Method); overwritten {
		log.Printf("[dispatch] warning: id reused for method %q, overwriting prior entry", env.Method)
	}
}

// resolvePendingMethod removes and returns the method recorded for a
// response's id, per §4.4.3 step 1.
func (d *Dispatcher) resolvePendingMethod(env message.Envelope) (method string, ok bool) {
	key, err := pending.KeyFromRaw(env.ID)
	if err != nil {
		return "", false
	}
	return d.pending.RemoveAndGet(key)
}

// selectOrForward looks up a handler for method in the registry. On a
// miss, it enqueues body onto out immediately (synchronous verbatim
// forward) and returns nil. On a hit, it returns a Task that invokes the
// handler; the caller runs this asynchronously under a permit.
func (d *Dispatcher) selectOrForward(dir handler.Direction, method string, body []byte, out *writer.Queue) Task {
	fn, ok := d.registry.Lookup(dir, method)
	if !ok {
		out.Enqueue(body)
		return nil
	}

	return func(ctx context.Context) error {
		if err := fn(ctx, body, out); err != nil {
			log.Printf("[dispatch] handler %s/%s failed: %v", dir, method, err)
		}
		return nil
	}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
