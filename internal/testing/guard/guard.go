package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CINEMACLUB_TEST_MODE") == "" {
			_ = os.Setenv("CINEMACLUB_TEST_MODE", "1")
		}
	})
}
