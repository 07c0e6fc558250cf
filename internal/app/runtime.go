package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeVar is set by the testing package so the odyssey and worker
// binaries return before dialing Postgres, Redis, the invoice backend or
// Gotenberg.
const TestModeVar = "ODYSSEY_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// loadTestMode accepts any strconv.ParseBool spelling; malformed values count
// as off.
func loadTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeVar))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether invoice binaries should skip startup. The
// variable is read on first use and cached.
func InTestMode() bool {
	testModeOnce.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeVar, for tests that toggle it.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	loadTestMode()
}
