package observability

import "github.com/swordlegend/dava.engine/internal/logger"

// getLogger resolves the module logger at call time so it follows SetGlobal.
func getLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
