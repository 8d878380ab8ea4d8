package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetChat 查询单个对话
// @Summary      查询对话
// @Description  按 conversation_id 查询，找不到时按文档 _id 回退
// @Tags         对话
// @Produce      json
// @Param        id   path      string  true  "对话ID"
// @Success      200  {object}  conversation.Conversation
// @Failure      404  {object}  ErrorResponse  "对话不存在"
// @Failure      500  {object}  ErrorResponse  "服务器内部错误"
// @Router       /chat/{id} [get]
func (h *Handler) GetChat(c *gin.Context) {
	conv, err := h.conversations.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "Failed to get conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
