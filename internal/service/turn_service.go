package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatlog/internal/model/conversation"
	"chatlog/internal/repository"
	"chatlog/internal/service/session"
)

const (
	// DefaultTurnLimit 扁平记录默认查询条数
	DefaultTurnLimit = 100
	// MaxTurnLimit 扁平记录查询上限
	MaxTurnLimit = 1000

	// DefaultRecentHours 最近对话默认回看小时数
	DefaultRecentHours = 24
	// DefaultRecentLimit 最近对话默认条数
	DefaultRecentLimit = 10
	// MaxRecentHours 最近对话回看上限（一年）
	MaxRecentHours = 24 * 365
)

// TurnService 旧版扁平记录服务
// 新的创建流程不写扁平记录，这里只为 NLU action server 与聊天历史页保留
type TurnService struct {
	store    repository.TurnStore
	grouper  *session.Grouper
	validate *validator.Validate
	now      func() time.Time
}

// NewTurnService 创建扁平记录服务
func NewTurnService(store repository.TurnStore, grouper *session.Grouper) *TurnService {
	if grouper == nil {
		grouper = session.NewGrouper(session.DefaultGap, nil)
	}
	return &TurnService{
		store:    store,
		grouper:  grouper,
		validate: newValidator(),
		now:      time.Now,
	}
}

// InsertTurnInput 插入扁平记录参数
type InsertTurnInput struct {
	SenderID   string           `json:"sender_id" validate:"required"`
	Message    string           `json:"message"`
	Intent     string           `json:"intent"`
	Confidence *float64         `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Entities   []map[string]any `json:"entities"`
	Response   string           `json:"response"`
}

// InsertTurn 插入一条扁平记录，返回记录ID
func (s *TurnService) InsertTurn(ctx context.Context, in InsertTurnInput) (primitive.ObjectID, error) {
	const op = "turn.insert"

	if err := s.validate.Struct(in); err != nil {
		return primitive.NilObjectID, validationError(op, err)
	}

	turn := &conversation.Turn{
		SenderID:   in.SenderID,
		Message:    in.Message,
		Intent:     in.Intent,
		Confidence: in.Confidence,
		Entities:   in.Entities,
		Response:   in.Response,
	}

	turnID, err := s.store.Insert(ctx, turn)
	if err != nil {
		log.Error().Err(err).Str("op", op).Str("sender_id", in.SenderID).Msg("failed to store turn")
		return primitive.NilObjectID, storageError(op, err)
	}

	log.Debug().Str("turn_id", turnID.Hex()).Str("sender_id", in.SenderID).Msg("stored turn")
	return turnID, nil
}

// ListTurns 按时间倒序查询，senderID 为空时不过滤
func (s *TurnService) ListTurns(ctx context.Context, senderID string, limit int64) ([]*conversation.Turn, error) {
	const op = "turn.list"

	turns, err := s.store.List(ctx, senderID, clampLimit(limit, DefaultTurnLimit, MaxTurnLimit))
	if err != nil {
		log.Error().Err(err).Str("op", op).Str("sender_id", senderID).Msg("failed to list turns")
		return nil, storageError(op, err)
	}
	return turns, nil
}

// ChatHistory 查询记录并分组为会话
func (s *TurnService) ChatHistory(ctx context.Context, senderID string, limit int64) ([]session.Session, error) {
	turns, err := s.ListTurns(ctx, senderID, limit)
	if err != nil {
		return nil, err
	}
	return s.grouper.Group(turns), nil
}

// RecentTurns 查询最近 hours 小时内的记录，hours 超过上限时按上限处理
func (s *TurnService) RecentTurns(ctx context.Context, hours int, limit int64) ([]*conversation.Turn, error) {
	const op = "turn.recent"

	if hours <= 0 {
		hours = DefaultRecentHours
	}
	hours = min(hours, MaxRecentHours)
	since := s.now().Add(-time.Duration(hours) * time.Hour)

	turns, err := s.store.ListSince(ctx, since, clampLimit(limit, DefaultRecentLimit, MaxTurnLimit))
	if err != nil {
		log.Error().Err(err).Str("op", op).Int("hours", hours).Msg("failed to get recent turns")
		return nil, storageError(op, err)
	}

	log.Info().Int("count", len(turns)).Msg("retrieved recent turns")
	return turns, nil
}

func clampLimit(limit, def, max int64) int64 {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
