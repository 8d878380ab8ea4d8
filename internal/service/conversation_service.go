package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"chatlog/internal/model/conversation"
	"chatlog/internal/pkg/ctxutil"
	"chatlog/internal/pkg/id"
	"chatlog/internal/repository"
)

const (
	// DefaultPerPage 对话列表默认每页条数
	DefaultPerPage = 10
	// MaxPerPage 每页上限，避免意外的全表扫描
	MaxPerPage = 100

	// DefaultFallbackMessage NLU 不可用时的兜底回复
	DefaultFallbackMessage = "Sorry, I'm having trouble understanding right now. Please try again later."
)

// Replier NLU webhook 能力
type Replier interface {
	Reply(ctx context.Context, senderID, message string) (string, error)
	Restart(ctx context.Context, senderID string) error
}

// ConversationCache 对话读缓存
type ConversationCache interface {
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	SetConversation(ctx context.Context, id string, conv *conversation.Conversation) error
	InvalidateConversation(ctx context.Context, ids ...string) error
}

// ConversationService 对话服务 - 业务逻辑层
// 职责: 编排存储层、缓存与 NLU webhook
type ConversationService struct {
	store     repository.ConversationStore
	cache     ConversationCache // 可选
	nlu       Replier           // 可选，为空时不转发消息
	assistant conversation.AIParticipant
	fallback  string
	validate  *validator.Validate
}

// ConversationOption 可选配置
type ConversationOption func(*ConversationService)

// WithCache 启用读缓存
func WithCache(cache ConversationCache) ConversationOption {
	return func(s *ConversationService) {
		s.cache = cache
	}
}

// WithNLU 启用 NLU 转发
func WithNLU(nlu Replier) ConversationOption {
	return func(s *ConversationService) {
		s.nlu = nlu
	}
}

// WithAssistant 设置对话中的 AI 参与者
func WithAssistant(ai conversation.AIParticipant) ConversationOption {
	return func(s *ConversationService) {
		s.assistant = ai
	}
}

// WithFallbackMessage 设置 NLU 失败时的兜底回复
func WithFallbackMessage(msg string) ConversationOption {
	return func(s *ConversationService) {
		if msg != "" {
			s.fallback = msg
		}
	}
}

// NewConversationService 创建对话服务
func NewConversationService(store repository.ConversationStore, opts ...ConversationOption) *ConversationService {
	s := &ConversationService{
		store: store,
		assistant: conversation.AIParticipant{
			AIID:    "rasa-assistant",
			Name:    "Assistant",
			Version: "1.0",
		},
		fallback: DefaultFallbackMessage,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConversationInput 创建对话参数
type CreateConversationInput struct {
	UserID      string `json:"user_id" validate:"required"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message" validate:"required"`
	Platform    string `json:"platform"`
	Language    string `json:"language"`
	Topic       string `json:"topic"`
	Timezone    string `json:"timezone"`
	Response    string `json:"response"` // 可选的 AI 回复，非空时追加为第二条消息
}

// CreateConversation 创建对话
// 第一条为用户消息；Response 非空时追加 AI 消息。summary 为最终消息列表的折叠。
func (s *ConversationService) CreateConversation(ctx context.Context, in CreateConversationInput) (*conversation.Conversation, error) {
	const op = "conversation.create"

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(op, err)
	}

	conv := &conversation.Conversation{
		ConversationID: id.New(),
		Participants: conversation.Participants{
			User: conversation.UserParticipant{
				UserID:      in.UserID,
				Username:    in.Username,
				DisplayName: in.DisplayName,
			},
			AI: s.assistant,
		},
		Metadata: conversation.Metadata{
			Platform:  in.Platform,
			Language:  in.Language,
			SessionID: id.New(),
			Context: conversation.Context{
				Topic:        in.Topic,
				UserTimezone: in.Timezone,
			},
		},
		Messages: []conversation.Message{
			{
				MessageID: id.New(),
				Sender:    conversation.SenderUser,
				Content:   in.Message,
				Status:    conversation.MessageStatusDelivered,
				Metadata:  map[string]any{},
			},
		},
		Status: conversation.StatusActive,
	}

	if in.Response != "" {
		conv.Messages = append(conv.Messages, conversation.Message{
			MessageID: id.New(),
			Sender:    conversation.SenderAI,
			Content:   in.Response,
			Status:    conversation.MessageStatusDelivered,
			Metadata:  map[string]any{},
		})
	}

	if err := s.store.Create(ctx, conv); err != nil {
		log.Error().Err(err).
			Str("op", op).
			Str("user_id", in.UserID).
			Str("conversation_id", conv.ConversationID).
			Msg("failed to create conversation")
		return nil, storageError(op, err)
	}

	log.Info().
		Str("conversation_id", conv.ConversationID).
		Str("user_id", in.UserID).
		Int("messages", len(conv.Messages)).
		Msg("conversation created")

	return conv, nil
}

// StartConversation 新建对话的完整流程
// 1. 重置 NLU 追踪器 -> 2. 获取开场消息的回复（失败时兜底）-> 3. 创建对话
// 调用方已给出 Response 时跳过 NLU
func (s *ConversationService) StartConversation(ctx context.Context, in CreateConversationInput) (*conversation.Conversation, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("conversation.start", err)
	}

	if in.Response == "" && s.nlu != nil {
		if err := s.nlu.Restart(ctx, in.UserID); err != nil {
			log.Warn().Err(err).Str("user_id", in.UserID).Msg("failed to restart NLU tracker")
		}
		reply := s.ask(ctx, in.UserID, in.Message)
		in.Response = reply.content
	}

	return s.CreateConversation(ctx, in)
}

// AppendMessage 向对话追加一条消息
// 对话不存在时返回 false, nil
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID string, sender conversation.Sender, content string, metadata map[string]any) (bool, error) {
	const op = "conversation.append"

	if conversationID == "" {
		return false, invalid(op, "conversation id is required")
	}
	if sender == "" || content == "" {
		return false, invalid(op, "sender and content are required")
	}
	if !sender.Valid() {
		return false, invalid(op, "unknown sender: "+string(sender))
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	msg := conversation.Message{
		MessageID: id.New(),
		Sender:    sender,
		Content:   content,
		Status:    conversation.MessageStatusDelivered,
		Metadata:  metadata,
	}

	ok, err := s.store.AppendMessage(ctx, conversationID, msg)
	if err != nil {
		log.Error().Err(err).
			Str("op", op).
			Str("conversation_id", conversationID).
			Str("message_id", msg.MessageID).
			Msg("failed to append message")
		return false, storageError(op, err)
	}
	if !ok {
		return false, nil
	}

	s.invalidate(ctx, conversationID)
	return true, nil
}

// PostMessageInput 发送消息参数
type PostMessageInput struct {
	Sender   conversation.Sender `json:"sender" validate:"required"`
	Content  string              `json:"content" validate:"required"`
	Metadata map[string]any      `json:"metadata"`
}

// PostMessage 发送消息的完整流程
// 1. 确认对话存在 -> 2. 追加消息 -> 3. 用户消息转发给 NLU -> 4. 追加回复（失败时兜底）
func (s *ConversationService) PostMessage(ctx context.Context, conversationID string, in PostMessageInput) error {
	const op = "conversation.post"
	logger := log.With().
		Str("conversation_id", conversationID).
		Str("request_id", ctxutil.RequestID(ctx)).
		Logger()

	if err := s.validate.Struct(in); err != nil {
		return validationError(op, err)
	}

	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	// 回退查询时调用方可能传的是 _id
	conversationID = conv.ConversationID

	ok, err := s.AppendMessage(ctx, conversationID, in.Sender, in.Content, in.Metadata)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(op, conversationID)
	}

	if in.Sender != conversation.SenderUser || s.nlu == nil {
		return nil
	}

	reply := s.ask(ctx, conv.Participants.User.UserID, in.Content)
	ok, err = s.AppendMessage(ctx, conversationID, conversation.SenderAI, reply.content, reply.metadata())
	if err != nil {
		return err
	}
	if !ok {
		logger.Warn().Msg("conversation disappeared before reply was stored")
	}
	return nil
}

// GetConversation 查询对话，优先读缓存
func (s *ConversationService) GetConversation(ctx context.Context, conversationID string) (*conversation.Conversation, error) {
	const op = "conversation.get"

	if conversationID == "" {
		return nil, invalid(op, "conversation id is required")
	}

	if s.cache != nil {
		if conv, err := s.cache.GetConversation(ctx, conversationID); err == nil {
			return conv, nil
		}
	}

	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(op, conversationID)
		}
		log.Error().Err(err).Str("op", op).Str("conversation_id", conversationID).Msg("failed to get conversation")
		return nil, storageError(op, err)
	}

	// 只缓存按 conversation_id 命中的结果，追加消息时才能准确失效
	if s.cache != nil && conv.ConversationID == conversationID {
		if err := s.cache.SetConversation(ctx, conversationID, conv); err != nil {
			log.Debug().Err(err).Str("conversation_id", conversationID).Msg("failed to cache conversation")
		}
	}

	return conv, nil
}

// ListConversations 分页查询用户对话，按最近活跃倒序
// userID 为空时返回空结果
func (s *ConversationService) ListConversations(ctx context.Context, userID string, page, perPage int64) ([]*conversation.Conversation, int64, error) {
	const op = "conversation.list"

	if page < 1 {
		return nil, 0, invalid(op, "page must be >= 1")
	}
	if perPage < 1 {
		return nil, 0, invalid(op, "per_page must be >= 1")
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if !ValidPage(page, perPage) {
		return nil, 0, invalid(op, "page out of range")
	}

	if userID == "" {
		return []*conversation.Conversation{}, 0, nil
	}

	convs, total, err := s.store.ListByUserID(ctx, userID, page, perPage)
	if err != nil {
		log.Error().Err(err).
			Str("op", op).
			Str("user_id", userID).
			Int64("page", page).
			Int64("per_page", perPage).
			Msg("failed to list conversations")
		return nil, 0, storageError(op, err)
	}
	return convs, total, nil
}

// ValidPage 页码与每页数量可用于分页，偏移量溢出的页码视为非法
func ValidPage(page, perPage int64) bool {
	_, ok := repository.Offset(page, perPage)
	return ok
}

// TotalPages 计算总页数
func TotalPages(total, perPage int64) int64 {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

type nluReply struct {
	content  string
	latency  time.Duration
	fallback bool
}

func (r nluReply) metadata() map[string]any {
	md := map[string]any{
		"source":           "nlu",
		"response_time_ms": r.latency.Milliseconds(),
	}
	if r.fallback {
		md["fallback"] = true
	}
	return md
}

// ask 调用 NLU，失败时返回兜底回复，upstream 错误只记录不向上传播
func (s *ConversationService) ask(ctx context.Context, senderID, message string) nluReply {
	start := time.Now()
	text, err := s.nlu.Reply(ctx, senderID, message)
	reply := nluReply{content: text, latency: time.Since(start)}
	if err != nil {
		log.Warn().Err(&Error{Kind: KindUpstream, Op: "nlu.reply", Err: err}).
			Str("sender_id", senderID).
			Str("request_id", ctxutil.RequestID(ctx)).
			Dur("latency", reply.latency).
			Msg("NLU webhook failed, using fallback message")
		reply.content = s.fallback
		reply.fallback = true
	}
	return reply
}

func (s *ConversationService) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateConversation(ctx, ids...); err != nil {
		log.Warn().Err(err).Strs("ids", ids).Msg("failed to invalidate conversation cache")
	}
}

// newValidator 使用 json 字段名作为错误中的字段名
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
