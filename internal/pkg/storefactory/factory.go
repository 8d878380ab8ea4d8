package storefactory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"chatlog/internal/config"
	"chatlog/internal/pkg/mongodb"
	"chatlog/internal/repository"
	"chatlog/internal/repository/bolt"
	"chatlog/internal/repository/memory"
)

// Stores 已打开的存储及其生命周期
type Stores struct {
	Type          string
	Conversations repository.ConversationStore
	Turns         repository.TurnStore

	pinger repository.Pinger
	close  func(ctx context.Context) error
}

// Ping 检查存储是否可用
func (s *Stores) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.Ping(ctx)
}

// Close 关闭存储连接
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// NewStores 根据配置创建存储实例
func NewStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Type {
	case "mongo":
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

		if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
			log.Warn().Err(err).Msg("failed to ensure indexes")
		}

		return &Stores{
			Type:          cfg.Store.Type,
			Conversations: repository.NewConversationRepo(client.Database()),
			Turns:         repository.NewTurnRepo(client.Database()),
			pinger:        client,
			close:         client.Close,
		}, nil
	case "bolt":
		store, err := bolt.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Store.BoltPath).Msg("opened bolt store")

		return &Stores{
			Type:          cfg.Store.Type,
			Conversations: store,
			Turns:         store,
			pinger:        store,
			close: func(context.Context) error {
				return store.Close()
			},
		}, nil
	case "memory":
		store := memory.New()
		log.Warn().Msg("using in-memory store, data will not survive restarts")

		return &Stores{
			Type:          cfg.Store.Type,
			Conversations: store,
			Turns:         store,
			pinger:        store,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}
