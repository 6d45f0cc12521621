package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httpx "github.com/Krosnoz/dialogue/internal/pkg/http"
)

// Recovery 异常恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Str("request_id", c.GetString("request_id")).
					Str("stacktrace", string(debug.Stack())).
					Msg("panic recovered")

				httpx.AbortWithError(c, 50000, "Internal Server Error")
			}
		}()
		c.Next()
	}
}
