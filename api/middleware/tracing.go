package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Tracing instruments each request with a New Relic transaction.
// Only installed when telemetry is enabled.
func Tracing(app *newrelic.Application) gin.HandlerFunc {
	return nrgin.Middleware(app)
}
