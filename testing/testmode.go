// Package testing switches the process into test mode when imported for side
// effects from _test.go files.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("CINEMACLUB_TEST_MODE", "1")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-secret")
		}
		if os.Getenv("CATALOG_SHOWS_URL") == "" {
			_ = os.Setenv("CATALOG_SHOWS_URL", "http://127.0.0.1:0/shows")
		}
		if os.Getenv("CATALOG_MEMBERS_URL") == "" {
			_ = os.Setenv("CATALOG_MEMBERS_URL", "http://127.0.0.1:0/users")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
