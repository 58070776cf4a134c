package search

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no worker goroutines leak from any test in this package.
// Count and fetch both run on background goroutines that must exit on
// completion or cancellation.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
