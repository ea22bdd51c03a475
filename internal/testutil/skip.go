package testutil

import (
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if APPROVALCTL_TEST_SKIP_NETWORK is set.
// Use this for tests that listen on loopback, which may not be available
// in sandboxed environments.
func SkipIfNoNetwork(t testing.TB) {
	t.Helper()
	if os.Getenv("APPROVALCTL_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: APPROVALCTL_TEST_SKIP_NETWORK is set")
	}
}
