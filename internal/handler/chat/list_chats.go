package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlog/internal/model/conversation"
	"chatlog/internal/service"
)

var errInvalidPage = errors.New("page and per_page must be >= 1 and page must be within range")

// ListChatsRequest 查询对话列表请求
type ListChatsRequest struct {
	UserID  string `form:"user_id"`             // 用户ID（为空时返回空列表）
	Page    int64  `form:"page,default=1"`      // 页码（从1开始）
	PerPage int64  `form:"per_page,default=10"` // 每页数量（最大100）
}

// Pagination 分页信息
type Pagination struct {
	Page       int64 `json:"page"`
	PerPage    int64 `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// ListChatsResponse 查询对话列表响应
type ListChatsResponse struct {
	Conversations []*conversation.Conversation `json:"conversations"`
	Pagination    Pagination                   `json:"pagination"`
}

// ListChats 查询用户最近的对话
// @Summary      查询最近对话
// @Description  按最近活跃时间倒序分页查询用户的对话，user_id 为空时返回空列表
// @Tags         对话
// @Produce      json
// @Param        user_id   query     string  false  "用户ID"
// @Param        page      query     int     false  "页码（默认1）"
// @Param        per_page  query     int     false  "每页数量（默认10，最大100）"
// @Success      200       {object}  ListChatsResponse
// @Failure      400       {object}  ErrorResponse  "请求参数错误"
// @Failure      500       {object}  ErrorResponse  "服务器内部错误"
// @Router       /recent-chats [get]
func (h *Handler) ListChats(c *gin.Context) {
	var req ListChatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		invalidQuery(c, err)
		return
	}

	perPage := min(req.PerPage, service.MaxPerPage)
	if !service.ValidPage(req.Page, perPage) {
		invalidQuery(c, errInvalidPage)
		return
	}

	convs, total, err := h.conversations.ListConversations(c.Request.Context(), req.UserID, req.Page, req.PerPage)
	if err != nil {
		abortWithError(c, "Failed to list conversations", err)
		return
	}

	c.JSON(http.StatusOK, ListChatsResponse{
		Conversations: convs,
		Pagination: Pagination{
			Page:       req.Page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: service.TotalPages(total, perPage),
		},
	})
}
