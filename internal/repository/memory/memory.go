// Package memory 进程内存储，实现 repository.ConversationStore 与 repository.TurnStore
// 用于本地开发和测试，所有读取都返回深拷贝
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatlog/internal/model/conversation"
	"chatlog/internal/repository"
)

// Store 内存存储
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	convs map[string]*conversation.Conversation // conversation_id -> 对话
	oids  map[primitive.ObjectID]string         // _id -> conversation_id
	turns []*conversation.Turn                  // 插入顺序

	lastTurnAt map[string]time.Time // sender_id -> 最近一次插入时间
}

var (
	_ repository.ConversationStore = (*Store)(nil)
	_ repository.TurnStore         = (*Store)(nil)
)

// New 创建内存存储
func New() *Store {
	return NewWithClock(conversation.Now)
}

// NewWithClock 使用指定时钟创建内存存储（测试用）
func NewWithClock(clock func() time.Time) *Store {
	return &Store{
		clock:      clock,
		convs:      make(map[string]*conversation.Conversation),
		oids:       make(map[primitive.ObjectID]string),
		lastTurnAt: make(map[string]time.Time),
	}
}

// Ping 内存存储始终可用
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Create 创建对话
func (s *Store) Create(ctx context.Context, conv *conversation.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[conv.ConversationID]; ok {
		return fmt.Errorf("conversation %s already exists", conv.ConversationID)
	}

	conv.ID = primitive.NewObjectID()
	conv.Stamp(s.clock)

	s.convs[conv.ConversationID] = conv.Clone()
	s.oids[conv.ID] = conv.ConversationID
	return nil
}

// AppendMessage 追加消息
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg conversation.Message) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return false, nil
	}

	msg = msg.Clone()
	msg.Timestamp = s.clock()
	if msg.Timestamp.Before(conv.UpdatedAt) {
		msg.Timestamp = conv.UpdatedAt
	}
	conv.Push(msg)
	return true, nil
}

// FindByID 根据 conversation_id 或 _id 查询
func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if conv, ok := s.convs[id]; ok {
		return conv.Clone(), nil
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	if convID, ok := s.oids[oid]; ok {
		return s.convs[convID].Clone(), nil
	}
	return nil, repository.ErrNotFound
}

// ListByUserID 查询用户对话列表
func (s *Store) ListByUserID(ctx context.Context, userID string, page, perPage int64) ([]*conversation.Conversation, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]*conversation.Conversation, 0)
	for _, conv := range s.convs {
		if conv.Participants.User.UserID == userID {
			matched = append(matched, conv)
		}
	}
	repository.SortByActivity(matched)

	pageItems := repository.Paginate(matched, page, perPage)
	out := make([]*conversation.Conversation, len(pageItems))
	for i, conv := range pageItems {
		out[i] = conv.Clone()
	}
	s.mu.RUnlock()

	return out, int64(len(matched)), nil
}

// Insert 插入扁平记录
func (s *Store) Insert(ctx context.Context, turn *conversation.Turn) (primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return primitive.NilObjectID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.clock()
	if last, ok := s.lastTurnAt[turn.SenderID]; ok && ts.Before(last) {
		ts = last
	}
	s.lastTurnAt[turn.SenderID] = ts

	turn.ID = primitive.NewObjectID()
	turn.Timestamp = ts
	if turn.Entities == nil {
		turn.Entities = []map[string]any{}
	}
	s.turns = append(s.turns, turn.Clone())
	return turn.ID, nil
}

// List 查询扁平记录
func (s *Store) List(ctx context.Context, senderID string, limit int64) ([]*conversation.Turn, error) {
	return s.filterTurns(ctx, limit, func(t *conversation.Turn) bool {
		return senderID == "" || t.SenderID == senderID
	})
}

// ListSince 查询 since 之后的扁平记录
func (s *Store) ListSince(ctx context.Context, since time.Time, limit int64) ([]*conversation.Turn, error) {
	return s.filterTurns(ctx, limit, func(t *conversation.Turn) bool {
		return !t.Timestamp.Before(since)
	})
}

func (s *Store) filterTurns(ctx context.Context, limit int64, keep func(*conversation.Turn) bool) ([]*conversation.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]*conversation.Turn, 0)
	for _, t := range s.turns {
		if keep(t) {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	repository.SortTurnsNewestFirst(matched)
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
