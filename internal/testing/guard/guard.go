// Package guard switches the process into test mode when imported, so that
// binaries exercised from tests return before opening connections.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "INVOICELY_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
