package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatlog/internal/model/conversation"
)

// TurnRepo 旧版扁平记录仓库（MongoDB）
type TurnRepo struct {
	collection *mongo.Collection
}

// NewTurnRepo 创建扁平记录仓库
func NewTurnRepo(db *mongo.Database) *TurnRepo {
	var turn conversation.Turn
	return &TurnRepo{
		collection: db.Collection(turn.Collection()),
	}
}

// Insert 插入记录
func (r *TurnRepo) Insert(ctx context.Context, turn *conversation.Turn) (primitive.ObjectID, error) {
	turn.Timestamp = conversation.Now()
	if turn.Entities == nil {
		turn.Entities = []map[string]any{}
	}

	result, err := r.collection.InsertOne(ctx, turn)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("mongodb insert turn: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		turn.ID = oid
	}
	return turn.ID, nil
}

// List 查询记录，senderID 为空时查询全部
func (r *TurnRepo) List(ctx context.Context, senderID string, limit int64) ([]*conversation.Turn, error) {
	filter := bson.M{}
	if senderID != "" {
		filter["sender_id"] = senderID
	}
	return r.find(ctx, filter, limit)
}

// ListSince 查询 since 之后的记录
func (r *TurnRepo) ListSince(ctx context.Context, since time.Time, limit int64) ([]*conversation.Turn, error) {
	return r.find(ctx, bson.M{"timestamp": bson.M{"$gte": since}}, limit)
}

func (r *TurnRepo) find(ctx context.Context, filter bson.M, limit int64) ([]*conversation.Turn, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "timestamp", Value: -1}, bson.E{Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find turns: %w", err)
	}
	defer cursor.Close(ctx)

	turns := make([]*conversation.Turn, 0)
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("mongodb decode turns: %w", err)
	}

	return turns, nil
}
