package http

import "github.com/gin-gonic/gin"

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（5位，前三位为 HTTP 状态码）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}

// StatusOf 从 5 位错误码推出 HTTP 状态码，如 40401 -> 404
func StatusOf(code int) int {
	return code / 100
}

// AbortWithError 写入错误响应并终止后续处理
func AbortWithError(c *gin.Context, code int, message string, detail ...string) {
	c.AbortWithStatusJSON(StatusOf(code), NewErrorResponse(code, message, detail...))
}
