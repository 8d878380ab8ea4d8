package middleware

import (
	"github.com/gin-gonic/gin"

	"chatlog/internal/pkg/ctxutil"
	"chatlog/internal/pkg/id"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// RequestID 请求ID中间件
// 沿用客户端传入的请求ID，没有时生成新的，写入 gin context、请求 context 与响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = id.New()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
