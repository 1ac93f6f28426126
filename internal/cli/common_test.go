package cli

import "testing"

func TestGetVersionInfoPopulatesRuntimeFields(t *testing.T) {
	info := GetVersionInfo()
	if info.Version != Version {
		t.Fatalf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" {
		t.Fatal("GoVersion is empty")
	}
	if info.Platform == "" || info.Arch == "" {
		t.Fatalf("Platform/Arch not populated: %+v", info)
	}
}
