// Package bolt 基于 bbolt 的单文件嵌入式存储
// 不同数据集放在同一个文件的不同 bucket 中，值使用 JSON 编码
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatlog/internal/model/conversation"
	"chatlog/internal/repository"
)

var (
	bucketConversations = []byte("conversations")    // conversation_id -> Conversation
	bucketObjectIDs     = []byte("conversation_ids") // _id hex -> conversation_id
	bucketTurns         = []byte("turns")            // _id bytes -> Turn
	bucketTurnClock     = []byte("turn_clock")       // sender_id -> 最近一次插入时间
)

// Store bbolt 存储
type Store struct {
	db    *bolt.DB
	clock func() time.Time
}

var (
	_ repository.ConversationStore = (*Store)(nil)
	_ repository.TurnStore         = (*Store)(nil)
)

// Open 打开（或创建）数据文件
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConversations, bucketObjectIDs, bucketTurns, bucketTurnClock} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bolt buckets: %w", err)
	}

	return &Store{db: db, clock: conversation.Now}, nil
}

// Close 关闭数据文件
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping 检查数据文件是否可读
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketConversations) == nil {
			return errors.New("bolt bucket missing")
		}
		return nil
	})
}

// Create 创建对话
func (s *Store) Create(ctx context.Context, conv *conversation.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		convs := tx.Bucket(bucketConversations)
		if convs.Get([]byte(conv.ConversationID)) != nil {
			return fmt.Errorf("conversation %s already exists", conv.ConversationID)
		}

		conv.ID = primitive.NewObjectID()
		conv.Stamp(s.clock)

		data, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		if err := convs.Put([]byte(conv.ConversationID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketObjectIDs).Put([]byte(conv.ID.Hex()), []byte(conv.ConversationID))
	})
}

// AppendMessage 追加消息，读改写在同一个读写事务中完成
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg conversation.Message) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	found := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		convs := tx.Bucket(bucketConversations)
		data := convs.Get([]byte(conversationID))
		if data == nil {
			return nil
		}

		var conv conversation.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			return fmt.Errorf("decode conversation %s: %w", conversationID, err)
		}

		msg.Timestamp = s.clock()
		if msg.Timestamp.Before(conv.UpdatedAt) {
			msg.Timestamp = conv.UpdatedAt
		}
		conv.Push(msg)

		out, err := json.Marshal(&conv)
		if err != nil {
			return err
		}
		found = true
		return convs.Put([]byte(conversationID), out)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// FindByID 根据 conversation_id 或 _id 查询
func (s *Store) FindByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var conv *conversation.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		convs := tx.Bucket(bucketConversations)
		data := convs.Get([]byte(id))
		if data == nil {
			convID := tx.Bucket(bucketObjectIDs).Get([]byte(id))
			if convID == nil {
				return repository.ErrNotFound
			}
			data = convs.Get(convID)
			if data == nil {
				return repository.ErrNotFound
			}
		}

		conv = &conversation.Conversation{}
		return json.Unmarshal(data, conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListByUserID 查询用户对话列表
// 全量扫描后排序分页，适用于单机数据量
func (s *Store) ListByUserID(ctx context.Context, userID string, page, perPage int64) ([]*conversation.Conversation, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	matched := make([]*conversation.Conversation, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConversations).ForEach(func(k, v []byte) error {
			var conv conversation.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("decode conversation %s: %w", k, err)
			}
			if conv.Participants.User.UserID == userID {
				matched = append(matched, &conv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	repository.SortByActivity(matched)
	return repository.Paginate(matched, page, perPage), int64(len(matched)), nil
}

// Insert 插入扁平记录
func (s *Store) Insert(ctx context.Context, turn *conversation.Turn) (primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return primitive.NilObjectID, err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		clock := tx.Bucket(bucketTurnClock)
		ts := s.clock()
		if raw := clock.Get([]byte(turn.SenderID)); raw != nil {
			var last time.Time
			if err := last.UnmarshalText(raw); err == nil && ts.Before(last) {
				ts = last
			}
		}
		stamp, err := ts.MarshalText()
		if err != nil {
			return err
		}
		if err := clock.Put([]byte(turn.SenderID), stamp); err != nil {
			return err
		}

		turn.ID = primitive.NewObjectID()
		turn.Timestamp = ts
		if turn.Entities == nil {
			turn.Entities = []map[string]any{}
		}

		data, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTurns).Put(turn.ID[:], data)
	})
	if err != nil {
		return primitive.NilObjectID, err
	}
	return turn.ID, nil
}

// List 查询扁平记录
func (s *Store) List(ctx context.Context, senderID string, limit int64) ([]*conversation.Turn, error) {
	return s.scanTurns(ctx, limit, func(t *conversation.Turn) bool {
		return senderID == "" || t.SenderID == senderID
	})
}

// ListSince 查询 since 之后的扁平记录
func (s *Store) ListSince(ctx context.Context, since time.Time, limit int64) ([]*conversation.Turn, error) {
	return s.scanTurns(ctx, limit, func(t *conversation.Turn) bool {
		return !t.Timestamp.Before(since)
	})
}

func (s *Store) scanTurns(ctx context.Context, limit int64, keep func(*conversation.Turn) bool) ([]*conversation.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := make([]*conversation.Turn, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTurns).ForEach(func(k, v []byte) error {
			var turn conversation.Turn
			if err := json.Unmarshal(v, &turn); err != nil {
				return fmt.Errorf("decode turn %x: %w", k, err)
			}
			if keep(&turn) {
				matched = append(matched, &turn)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	repository.SortTurnsNewestFirst(matched)
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
