package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codefuse/lspproxy/internal/proxy/writer"
)

// ServerInfo is the serverInfo object the rebrand-initialize handler
// substitutes into the backend's initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RebrandInitialize returns a FromBackend handler for the "initialize"
// method that mutates result.serverInfo to info, leaving
// result.capabilities and every other field untouched. If result is
// absent or not a JSON object, the frame passes through unchanged.
//
// Grounded on original_source/src/handlers.rs's handle_initialize, which
// does the equivalent rewrite via tower_lsp's typed InitializeResult; this
// version stays untyped (json.RawMessage) so it never has to track LSP's
// full capabilities schema, matching the proxy's "zero content-level
// interpretation outside specific rewrites" design.
func RebrandInitialize(info ServerInfo) Func {
	return func(ctx context.Context, body json.RawMessage, out *writer.Queue) error {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("rebrand-initialize: decoding response: %w", err)
		}

		rawResult, ok := env["result"]
		if !ok {
			out.Enqueue(body)
			return nil
		}

		var result map[string]json.RawMessage
		if err := json.Unmarshal(rawResult, &result); err != nil || result == nil {
			// result isn't an object (null, an array, a scalar) -- pass
			// through unchanged.
			out.Enqueue(body)
			return nil
		}

		serverInfo, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("rebrand-initialize: marshaling serverInfo: %w", err)
		}
		result["serverInfo"] = serverInfo

		newResult, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("rebrand-initialize: marshaling result: %w", err)
		}
		env["result"] = newResult

		rewritten, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("rebrand-initialize: marshaling response: %w", err)
		}

		out.Enqueue(rewritten)
		return nil
	}
}
