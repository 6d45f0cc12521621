package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Krosnoz/dialogue/internal/pkg/ctxutil"
	httpx "github.com/Krosnoz/dialogue/internal/pkg/http"
	"github.com/Krosnoz/dialogue/internal/repository"
	"github.com/Krosnoz/dialogue/internal/service"
)

// ErrorResponse 错误响应（swagger 文档使用）
type ErrorResponse = httpx.ErrorResponse

// AccessVerifier 对话归属校验
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, userID, conversationID string) error
}

// userIDFrom 读取认证中间件注入的用户 ID，缺失时写入 401 并返回 false
func userIDFrom(c *gin.Context) (string, bool) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		httpx.AbortWithError(c, 40101, "Unauthorized")
		return "", false
	}
	return userID, true
}

// writeError 把 service 层错误映射为 HTTP 错误响应
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		httpx.AbortWithError(c, 40101, "Unauthorized")
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.AbortWithError(c, 40001, "Invalid request", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		httpx.AbortWithError(c, 40401, "Conversation not found")
	case errors.Is(err, repository.ErrProjectNotFound):
		httpx.AbortWithError(c, 40402, "Project not found")
	default:
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", ctxutil.GetRequestID(c.Request.Context())).
			Msg("request failed")
		httpx.AbortWithError(c, 50001, "Internal server error")
	}
}

func badRequest(c *gin.Context, err error) {
	httpx.AbortWithError(c, 40001, "Invalid request body", err.Error())
}

// clearWriteDeadline 长连接接口不受 server.write_timeout 限制
func clearWriteDeadline(c *gin.Context) {
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
}
