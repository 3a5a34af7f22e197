package chat_http

import (
	"github.com/labstack/echo/v4"

	"scholarship-rag/internal/infra/logger"
)

// RequestContext copies the request id assigned by echo's RequestID middleware,
// and the session path parameter when present, into the request context for logging.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = logger.WithRequestID(ctx, id)
			}
			if sessionID := c.Param("sessionId"); sessionID != "" {
				ctx = logger.WithSessionID(ctx, sessionID)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
