package backend

import "testing"

func TestVersionCheckEmptyConstraintDisabled(t *testing.T) {
	v, err := NewVersionCheck("")
	if err != nil {
		t.Fatal(err)
	}
	// Must not panic on any input; there is nothing else observable since
	// Observe only logs.
	v.Observe("not-a-semver")
	v.Observe("19.0.0")
}

func TestVersionCheckRejectsBadConstraint(t *testing.T) {
	if _, err := NewVersionCheck("???"); err == nil {
		t.Fatalf("expected an error for an unparsable constraint")
	}
}

func TestVersionCheckAcceptsValidConstraintAndVersions(t *testing.T) {
	v, err := NewVersionCheck(">=18.0.0")
	if err != nil {
		t.Fatal(err)
	}
	v.Observe("19.1.0")
	v.Observe("17.0.0")
	v.Observe("")
	v.Observe("garbage")
}
