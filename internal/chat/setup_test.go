package chat

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutines leak from the writer pool or the cache
// across the package's tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
