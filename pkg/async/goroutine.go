package async

import (
	"context"
	"os"
	"runtime/debug"
	"time"

	"github.com/eventez/analytics/pkg/observability"
)

// Background tasks have no request to answer, so failures go to stderr.
var logger = observability.NewLogger(observability.InfoLevel, os.Stderr)

// SafeGo executes fn on its own goroutine with a timeout, panic recovery,
// and error logging. Use it instead of a bare `go func()` for
// fire-and-forget work hanging off a request.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}
