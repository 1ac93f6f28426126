package backend

import (
	"fmt"
	"log"

	semver "github.com/Masterminds/semver/v3"
)

// VersionCheck logs (never blocks on) whether a backend's reported
// version satisfies the proxy's configured minimum. constraint may be
// empty, meaning no check is configured.
type VersionCheck struct {
	constraint *semver.Constraints
	raw        string
}

// NewVersionCheck parses a constraint expression such as ">=18.0.0". An
// empty expression disables the check.
func NewVersionCheck(expr string) (*VersionCheck, error) {
	if expr == "" {
		return &VersionCheck{}, nil
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("backend version constraint %q: %w", expr, err)
	}
	return &VersionCheck{constraint: c, raw: expr}, nil
}

// Observe parses the backend-reported version string and logs a warning
// if it falls outside the configured constraint. It never returns an
// error: an unparsable version is logged and otherwise ignored, and an
// empty one is ignored without logging, matching §6's "informational only" framing for anything
// outside the message plane's core contract.
func (v *VersionCheck) Observe(reportedVersion string) {
	if v.constraint == nil || reportedVersion == "" {
		return
	}

	sv, err := semver.NewVersion(reportedVersion)
	if err != nil {
		log.Printf("[backend] could not parse backend version %q as semver, skipping compatibility check", reportedVersion)
		return
	}

	if !v.constraint.Check(sv) {
		log.Printf("[backend] backend version %s does not satisfy configured constraint %q; proceeding anyway", sv, v.raw)
	}
}
