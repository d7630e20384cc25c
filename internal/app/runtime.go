package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "IAM_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether the process runs under tests. Test mode skips
// background goroutines and uses the cheapest password hashing cost.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testModeFlag.Store(os.Getenv(testModeEnv) == "1")
	})
	return testModeFlag.Load()
}
