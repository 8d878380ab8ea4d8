package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlog/internal/service"
)

// CreateChat 新建对话
// @Summary      新建对话
// @Description  重置 NLU 追踪器并获取开场消息的回复后创建对话；请求中带 response 时不调用 NLU
// @Tags         对话
// @Accept       json
// @Produce      json
// @Param        request  body      service.CreateConversationInput  true  "新建对话请求"
// @Success      201      {object}  conversation.Conversation
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /chat [post]
func (h *Handler) CreateChat(c *gin.Context) {
	var req service.CreateConversationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	conv, err := h.conversations.StartConversation(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, "Failed to create conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}
