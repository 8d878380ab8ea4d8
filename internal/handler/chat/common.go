package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "chatlog/internal/pkg/http"
	"chatlog/internal/service"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// MessageResponse 消息响应类型别名
type MessageResponse = httputil.MessageResponse

// abortWithError 把服务层错误映射为 HTTP 响应
func abortWithError(c *gin.Context, message string, err error) {
	_ = c.Error(err)

	// 存储错误与未知错误只返回通用信息，原因已在服务层记录
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		c.JSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.CodeStorageFailure, message))
		return
	}

	switch svcErr.Kind {
	case service.KindValidation:
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeValidationFailed, "Validation failed", svcErr.Msg))
	case service.KindNotFound:
		c.JSON(http.StatusNotFound, httputil.NewErrorResponse(httputil.CodeNotFound, "Conversation not found", svcErr.Msg))
	default:
		c.JSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.CodeStorageFailure, message))
	}
}

func invalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidBody, "Invalid request body", err.Error()))
}

func invalidQuery(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidQuery, "Invalid query parameters", err.Error()))
}
