package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherLoadsInitialRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte(`{"serverName":"acme","denyMethods":["telemetry/event"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	r := w.Rules()
	if r.ServerName != "acme" {
		t.Fatalf("ServerName = %q, want acme", r.ServerName)
	}
	if !r.Denied("telemetry/event") {
		t.Fatalf("expected telemetry/event to be denied")
	}
	if r.Denied("textDocument/hover") {
		t.Fatalf("hover should not be denied")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte(`{"serverName":"first"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`{"serverName":"second"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Rules().ServerName == "second" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("rules were not reloaded, still %q", w.Rules().ServerName)
}

func TestWatcherMissingFileServesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if r := w.Rules(); r.ServerName != "" || len(r.DenyMethods) != 0 {
		t.Fatalf("expected zero-value rules for a missing file, got %+v", r)
	}
}
