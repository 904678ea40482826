package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "VISITORS_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the VISITORS_TEST_MODE flag once.
func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the process should skip background pollers and
// the initial dashboard load.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	// Spend the Once so a later InTestMode does not overwrite this read.
	testModeOnce.Do(func() {})
	detectTestMode()
}
