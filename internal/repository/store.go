package repository

import (
	"bytes"
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatlog/internal/model/conversation"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ConversationStore 对话存储接口（嵌套消息结构）
// 实现必须保证 AppendMessage 对同一对话是原子的，且返回的对象都是快照
type ConversationStore interface {
	// Create 插入新对话，由存储赋值 StartedAt/UpdatedAt/消息时间戳并重算摘要
	Create(ctx context.Context, conv *conversation.Conversation) error

	// AppendMessage 追加消息并在同一原子操作中刷新 updated_at 与 summary
	// 没有匹配的对话时返回 false, nil
	AppendMessage(ctx context.Context, conversationID string, msg conversation.Message) (bool, error)

	// FindByID 先按 conversation_id 查询，再回退到内部 _id
	FindByID(ctx context.Context, id string) (*conversation.Conversation, error)

	// ListByUserID 按 updated_at 倒序分页，返回当前页与总数
	ListByUserID(ctx context.Context, userID string, page, perPage int64) ([]*conversation.Conversation, int64, error)
}

// TurnStore 旧版扁平记录存储接口
type TurnStore interface {
	// Insert 插入记录，时间戳由存储赋值
	Insert(ctx context.Context, turn *conversation.Turn) (primitive.ObjectID, error)

	// List 按 timestamp 倒序返回，senderID 为空时不过滤
	List(ctx context.Context, senderID string, limit int64) ([]*conversation.Turn, error)

	// ListSince 返回 since 之后的记录，按 timestamp 倒序
	ListSince(ctx context.Context, since time.Time, limit int64) ([]*conversation.Turn, error)
}

// Pinger 可探活的存储
type Pinger interface {
	Ping(ctx context.Context) error
}

// SortByActivity 按 updated_at 倒序，_id 倒序兜底，保证分页顺序稳定
func SortByActivity(convs []*conversation.Conversation) {
	slices.SortStableFunc(convs, func(a, b *conversation.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
}

// Offset 第 page 页的起始偏移，参数非法或偏移溢出 int64 时 ok 为 false
func Offset(page, perPage int64) (offset int64, ok bool) {
	if page < 1 || perPage < 1 {
		return 0, false
	}
	if page-1 > math.MaxInt64/perPage {
		return 0, false
	}
	return (page - 1) * perPage, true
}

// Paginate 截取第 page 页（page 从 1 开始）
func Paginate[T any](items []T, page, perPage int64) []T {
	start, ok := Offset(page, perPage)
	if !ok || start >= int64(len(items)) {
		return []T{}
	}
	end := min(start+perPage, int64(len(items)))
	return items[start:end]
}

// SortTurnsNewestFirst 按 timestamp 倒序，_id 倒序兜底
func SortTurnsNewestFirst(turns []*conversation.Turn) {
	slices.SortStableFunc(turns, func(a, b *conversation.Turn) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
}
