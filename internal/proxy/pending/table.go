// Package pending implements the dispatcher's pending-request table: a
// record of requests seen flowing client->server for which no response has
// yet been observed flowing server->client.
//
// Keys are derived from the JSON-RPC id field with type-exact semantics:
// integer 5 and string "5" are distinct keys. This is a deliberate
// departure from the original Rust implementation, whose table is keyed by
// u64 and silently discards string ids (see SPEC_FULL.md's Open Question
// decisions).
package pending

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Key is a comparable, type-exact representation of a JSON-RPC id.
type Key struct {
	str      string
	num      int64
	isString bool
}

// KeyFromRaw derives a Key from the raw JSON bytes of an id field. It
// fails if raw is not a JSON string or a JSON integer (LSP never uses
// floating-point or array/object ids).
func KeyFromRaw(raw json.RawMessage) (Key, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Key{}, fmt.Errorf("pending: empty id")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Key{}, fmt.Errorf("pending: decoding string id: %w", err)
		}
		return Key{isString: true, str: s}, nil
	}

	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("pending: id %q is neither string nor integer", trimmed)
	}
	return Key{isString: false, num: n}, nil
}

func (k Key) String() string {
	if k.isString {
		return fmt.Sprintf("string(%q)", k.str)
	}
	return fmt.Sprintf("int(%d)", k.num)
}

// Table maps a request id to the method name of the request that produced
// it. A single mutex guards the whole map: message rates on one LSP
// session never make lock contention a concern (§9 design notes).
type Table struct {
	mu      sync.Mutex
	methods map[Key]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{methods: make(map[Key]string)}
}

// Insert records that a request with the given key and method is now
// outstanding. If an entry already exists for key, it is overwritten and
// overwritten reports true — callers should log a warning in that case,
// since well-behaved clients never reuse ids.
func (t *Table) Insert(key Key, method string) (overwritten bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, overwritten = t.methods[key]
	t.methods[key] = method
	return overwritten
}

// RemoveAndGet atomically removes and returns the method recorded for key,
// reporting false if no entry existed (an unknown-id response, §4.4.3).
func (t *Table) RemoveAndGet(key Key) (method string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	method, ok = t.methods[key]
	if ok {
		delete(t.methods, key)
	}
	return method, ok
}

// Len reports the number of outstanding requests, for diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.methods)
}
