// Package config hot-reloads the proxy's rewrite-rules file: the
// rebranded server identity and a method denylist. These are data, not
// code -- the handler registry itself is immutable after startup per
// §4.4.4. The dispatcher consults the denylist on every routing decision;
// the server identity fields are loaded and exposed but not read by the
// built-in handlers.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Rules is the hot-reloadable configuration snapshot.
type Rules struct {
	// ServerName/ServerVersion are parsed from the file and returned by
	// Watcher.Rules. The rebrand-initialize built-in does not read them:
	// its serverInfo is fixed at startup from supervisor.Config.ServerInfo.
	ServerName    string `json:"serverName"`
	ServerVersion string `json:"serverVersion"`

	// DenyMethods lists LSP methods the proxy drops silently in either
	// direction instead of forwarding -- e.g. to suppress a noisy
	// notification a particular client/backend pairing doesn't need.
	DenyMethods []string `json:"denyMethods"`
}

// Denied reports whether method is on the current deny list.
func (r Rules) Denied(method string) bool {
	for _, m := range r.DenyMethods {
		if m == method {
			return true
		}
	}
	return false
}

func loadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return r, nil
}
