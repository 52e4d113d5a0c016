package observability

import (
	"runtime/debug"
)

// RecoverPanic logs a recovered panic with its stack trace. Call it deferred;
// the panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic": r,
			"stack": string(debug.Stack()),
			"where": where,
		}).Error("Recovered from panic")
	}
}
