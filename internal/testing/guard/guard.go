// Package guard flips the binaries into test mode when imported for side
// effects from a test.
package guard

import (
	"os"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/app"
)

func init() {
	if os.Getenv(app.TestModeEnv) == "" {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
	app.RefreshTestMode()
}
