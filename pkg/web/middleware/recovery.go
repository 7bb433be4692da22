package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/fluxorio/keyseq/pkg/core"
	"github.com/fluxorio/keyseq/pkg/web"
)

// RecoveryConfig configures panic recovery middleware
type RecoveryConfig struct {
	// Logger is the logger to use for panic logging (default: core.NewDefaultLogger())
	Logger core.Logger

	// StackTrace includes the panic value in the error response
	StackTrace bool
}

// DefaultRecoveryConfig returns a default recovery configuration
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger: core.NewDefaultLogger(),
	}
}

// Recovery middleware recovers from panics and returns 500 error
func Recovery(config RecoveryConfig) web.Middleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.RequestHandler) web.RequestHandler {
		return func(ctx *web.RequestContext) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.WithFields(map[string]interface{}{
					"request_id": ctx.RequestID(),
					"method":     string(ctx.Method()),
					"path":       string(ctx.Path()),
				}).Errorf("panic recovered: %v\n%s", r, debug.Stack())

				msg := "Internal Server Error"
				if config.StackTrace {
					msg = fmt.Sprintf("panic: %v", r)
				}
				err = ctx.JSON(500, map[string]string{
					"error":      "internal_server_error",
					"message":    msg,
					"request_id": ctx.RequestID(),
				})
			}()

			return next(ctx)
		}
	}
}
