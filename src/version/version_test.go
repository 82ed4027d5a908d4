//go:build !unit
// +build !unit

package version

import (
	"strings"
	"testing"
)

// TestFlagEmpty fails if version.Flag is not empty. The flag marks development
// builds and must be empty on the master branch.
func TestFlagEmpty(t *testing.T) {
	if len(Flag) > 0 {
		t.Fatalf("Version Flag is not empty: %s", Flag)
	}
}

func TestVersionHasNoSuffix(t *testing.T) {
	if GitCommit == "" && strings.Contains(Version, "-") {
		t.Fatalf("Unexpected suffix in version %s", Version)
	}
}
