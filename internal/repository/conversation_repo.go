package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatlog/internal/model/conversation"
)

// ConversationRepo 对话仓库（MongoDB）
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	var conv conversation.Conversation
	return &ConversationRepo{
		collection: db.Collection(conv.Collection()),
	}
}

// Create 创建对话
func (r *ConversationRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	conv.Stamp(conversation.Now)

	result, err := r.collection.InsertOne(ctx, conv)
	if err != nil {
		return fmt.Errorf("mongodb insert conversation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		conv.ID = oid
	}
	return nil
}

// AppendMessage 追加消息
// 使用更新管道在单个文档上原子完成：刷新 updated_at、追加消息、按 messages 重算 summary。
// 时间戳取服务端 $$NOW，并用 $max 保证不早于上一次 updated_at。
func (r *ConversationRepo) AppendMessage(ctx context.Context, conversationID string, msg conversation.Message) (bool, error) {
	msg.Timestamp = conversation.Now()
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "updated_at", Value: bson.D{{Key: "$max", Value: bson.A{"$updated_at", "$$NOW"}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "messages", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$messages", bson.A{}}}},
				bson.A{bson.D{{Key: "$mergeObjects", Value: bson.A{
					bson.D{{Key: "$literal", Value: msg}},
					bson.D{{Key: "timestamp", Value: "$updated_at"}},
				}}}},
			}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "summary", Value: bson.D{
				{Key: "total_messages", Value: bson.D{{Key: "$size", Value: "$messages"}}},
				{Key: "last_message_id", Value: bson.D{{Key: "$literal", Value: msg.MessageID}}},
				{Key: "last_message_timestamp", Value: "$updated_at"},
			}},
		}}},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"conversation_id": conversationID}, pipeline)
	if err != nil {
		return false, fmt.Errorf("mongodb append message: %w", err)
	}

	return result.MatchedCount > 0, nil
}

// FindByID 根据 ID 查询
// 先按 conversation_id 查询，未命中且 id 是合法 ObjectID 时回退到 _id
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	err := r.collection.FindOne(ctx, bson.M{"conversation_id": id}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongodb find conversation: %w", err)
	}

	objectID, oidErr := primitive.ObjectIDFromHex(id)
	if oidErr != nil {
		return nil, ErrNotFound
	}

	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find conversation by _id: %w", err)
	}

	return &conv, nil
}

// ListByUserID 查询用户对话列表
func (r *ConversationRepo) ListByUserID(ctx context.Context, userID string, page, perPage int64) ([]*conversation.Conversation, int64, error) {
	filter := bson.M{"participants.user.user_id": userID}

	skip, ok := Offset(page, perPage)
	if !ok {
		return nil, 0, fmt.Errorf("invalid page %d with per_page %d", page, perPage)
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb count conversations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}, bson.E{Key: "_id", Value: -1}}).
		SetLimit(perPage).
		SetSkip(skip)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongodb find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	convs := make([]*conversation.Conversation, 0, perPage)
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, 0, fmt.Errorf("mongodb decode conversations: %w", err)
	}

	return convs, total, nil
}
