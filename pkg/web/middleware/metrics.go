package middleware

import (
	"time"

	"github.com/fluxorio/keyseq/pkg/observability/prometheus"
	"github.com/fluxorio/keyseq/pkg/web"
)

// Metrics records request count and latency per method, path and status class.
func Metrics(m *prometheus.Metrics) web.Middleware {
	if m == nil {
		m = prometheus.GetMetrics()
	}
	return func(next web.RequestHandler) web.RequestHandler {
		return func(ctx *web.RequestContext) error {
			start := time.Now()
			method := string(ctx.Method())
			path := string(ctx.Path())

			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			if err != nil {
				status = 500
			}
			m.RecordHTTPRequest(method, path, prometheus.StatusClass(status), time.Since(start))
			return err
		}
	}
}
