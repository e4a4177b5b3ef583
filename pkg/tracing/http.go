package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"pulse/pkg/logging"
)

func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceIDMiddleware copies the active trace id into the request context so
// request scoped log lines carry it. It must run after GinMiddleware.
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		spanCtx := trace.SpanContextFromContext(c.Request.Context())
		if spanCtx.HasTraceID() {
			ctx := logging.WithTraceID(c.Request.Context(), spanCtx.TraceID().String())
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
