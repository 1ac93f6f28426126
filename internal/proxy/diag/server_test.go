package diag

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

type fakeSource struct {
	pending            int
	inUse, total       int64
	fromClient, fromSrv []string
}

func (f fakeSource) PendingCount() int      { return f.pending }
func (f fakeSource) PermitsInUse() int64    { return f.inUse }
func (f fakeSource) PermitsTotal() int64    { return f.total }
func (f fakeSource) RegisteredMethods() ([]string, []string) {
	return f.fromClient, f.fromSrv
}

func TestHandleSnapshotEncodesSourceValues(t *testing.T) {
	s := &Server{src: fakeSource{
		pending:    3,
		inUse:      2,
		total:      15,
		fromClient: []string{"textDocument/hover"},
		fromSrv:    []string{"initialize"},
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/snapshot", nil)
	s.handleSnapshot(rec, req)

	var got Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if got.PendingRequests != 3 || got.PermitsInUse != 2 || got.PermitsTotal != 15 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if len(got.HandlersFromClient) != 1 || got.HandlersFromClient[0] != "textDocument/hover" {
		t.Fatalf("unexpected HandlersFromClient: %v", got.HandlersFromClient)
	}
	if len(got.HandlersFromServer) != 1 || got.HandlersFromServer[0] != "initialize" {
		t.Fatalf("unexpected HandlersFromServer: %v", got.HandlersFromServer)
	}
}
