// Package guard switches the process into test mode when imported, so router
// and runtime code skip request logging and background startup.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("VISITORS_TEST_MODE") == "" {
			_ = os.Setenv("VISITORS_TEST_MODE", "1")
		}
	})
}
