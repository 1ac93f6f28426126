package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/codefuse/lspproxy/internal/proxy/frame"
	"github.com/codefuse/lspproxy/internal/proxy/writer"
)

// drainOne runs fn against body, closes the queue, and returns the single
// frame body it enqueued.
func drainOne(t *testing.T, fn Func, body []byte) []byte {
	t.Helper()

	q := writer.NewQueue()
	if err := fn(context.Background(), body, q); err != nil {
		t.Fatalf("handler: %v", err)
	}
	q.Close()

	var buf bytes.Buffer
	ser := writer.NewSerializer(frame.NewWriter(&buf), q)
	if err := ser.Run(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	out, err := frame.NewReader(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("expected exactly one enqueued frame, got none: %v", err)
	}
	return out
}

func TestRebrandInitializeRewritesServerInfo(t *testing.T) {
	fn := RebrandInitialize(ServerInfo{Name: "codefuse", Version: "0.1.0"})
	body := []byte(`{"jsonrpc":"2.0","id":1,"result":{"capabilities":{"hoverProvider":true},"serverInfo":{"name":"clangd","version":"19"}}}`)

	out := drainOne(t, fn, body)

	var decoded struct {
		ID     int `json:"id"`
		Result struct {
			Capabilities map[string]any `json:"capabilities"`
			ServerInfo   ServerInfo     `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}

	if decoded.ID != 1 {
		t.Fatalf("id changed: got %d want 1", decoded.ID)
	}
	if decoded.Result.ServerInfo != (ServerInfo{Name: "codefuse", Version: "0.1.0"}) {
		t.Fatalf("serverInfo not rewritten: %+v", decoded.Result.ServerInfo)
	}
	if hover, _ := decoded.Result.Capabilities["hoverProvider"].(bool); !hover {
		t.Fatalf("capabilities.hoverProvider was dropped")
	}
}

func TestRebrandInitializePassesThroughMissingResult(t *testing.T) {
	fn := RebrandInitialize(ServerInfo{Name: "codefuse", Version: "0.1.0"})
	body := []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad"}}`)

	out := drainOne(t, fn, body)

	var want, got map[string]any
	_ = json.Unmarshal(body, &want)
	_ = json.Unmarshal(out, &got)
	wb, _ := json.Marshal(want)
	gb, _ := json.Marshal(got)
	if string(wb) != string(gb) {
		t.Fatalf("expected unchanged passthrough, got %s", out)
	}
}

func TestRebrandInitializePassesThroughNonObjectResult(t *testing.T) {
	fn := RebrandInitialize(ServerInfo{Name: "codefuse", Version: "0.1.0"})
	body := []byte(`{"jsonrpc":"2.0","id":1,"result":null}`)

	out := drainOne(t, fn, body)

	var want, got map[string]any
	_ = json.Unmarshal(body, &want)
	_ = json.Unmarshal(out, &got)
	wb, _ := json.Marshal(want)
	gb, _ := json.Marshal(got)
	if string(wb) != string(gb) {
		t.Fatalf("expected unchanged passthrough, got %s", out)
	}
}
