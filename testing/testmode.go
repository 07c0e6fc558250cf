// Package testing flags the process as a test run. Test files import it for
// its side effect so binaries and config loaders skip external services.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

// defaults are applied only when the variable is unset.
var defaults = map[string]string{
	"ODYSSEY_TEST_MODE": "1",
	"GOTENBERG_URL":     "http://127.0.0.1:0",
	"DATA_SOURCE":       "backend",
	"LOG_LEVEL":         "error",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range defaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}
