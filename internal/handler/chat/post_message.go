package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlog/internal/service"
)

// PostMessage 向对话发送消息
// @Summary      发送消息
// @Description  追加消息；sender 为 user 时转发给 NLU 并追加回复，NLU 失败时追加兜底回复
// @Tags         对话
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "对话ID"
// @Param        request  body      service.PostMessageInput  true  "消息"
// @Success      200      {object}  MessageResponse
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Failure      404      {object}  ErrorResponse  "对话不存在"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /chat/{id}/message [post]
func (h *Handler) PostMessage(c *gin.Context) {
	var req service.PostMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	if err := h.conversations.PostMessage(c.Request.Context(), c.Param("id"), req); err != nil {
		abortWithError(c, "Failed to add message", err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Message added successfully"})
}
