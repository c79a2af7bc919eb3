package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// TestModeEnv set to "1" makes the invoicely and worker binaries return from
// main before they touch the ledger or Redis. The testing/guard package sets
// it for any test binary that imports it.
const TestModeEnv = "INVOICELY_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether main should exit before startup. The
// environment is read on first call and cached.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode rereads TestModeEnv. Tests that change the variable call it
// before asserting on InTestMode.
func RefreshTestMode() {
	testMode.on.Store(os.Getenv(TestModeEnv) == "1")
}
