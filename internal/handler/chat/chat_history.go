package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlog/internal/service/session"
)

// ChatHistoryRequest 聊天历史请求
type ChatHistoryRequest struct {
	SenderID string `form:"sender_id"`         // 为空时查询全部
	Limit    int64  `form:"limit,default=100"` // 最多读取的记录数（最大1000）
}

// ChatHistoryResponse 聊天历史响应
type ChatHistoryResponse struct {
	Sessions []session.Session `json:"sessions"`
}

// ChatHistory 按会话分组的聊天历史
// @Summary      聊天历史
// @Description  读取扁平记录，按日期与30分钟空闲间隔分组为会话，日期倒序
// @Tags         聊天历史
// @Produce      json
// @Param        sender_id  query     string  false  "发送者ID"
// @Param        limit      query     int     false  "读取条数（默认100）"
// @Success      200        {object}  ChatHistoryResponse
// @Failure      400        {object}  ErrorResponse  "请求参数错误"
// @Failure      500        {object}  ErrorResponse  "服务器内部错误"
// @Router       /chat-history [get]
func (h *Handler) ChatHistory(c *gin.Context) {
	var req ChatHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		invalidQuery(c, err)
		return
	}

	sessions, err := h.turns.ChatHistory(c.Request.Context(), req.SenderID, req.Limit)
	if err != nil {
		abortWithError(c, "Failed to load chat history", err)
		return
	}
	c.JSON(http.StatusOK, ChatHistoryResponse{Sessions: sessions})
}
