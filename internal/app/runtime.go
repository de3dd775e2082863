package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv disables network side effects in the binaries when truthy.
const TestModeEnv = "EATANDRUN_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func readTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether cmd/ binaries should return before dialing
// Postgres or Redis.
func InTestMode() bool {
	testModeOnce.Do(readTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	readTestMode()
}
