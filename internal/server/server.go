package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"chatlog/internal/config"
	"chatlog/internal/handler"
	"chatlog/internal/handler/chat"
	"chatlog/internal/model/conversation"
	"chatlog/internal/pkg/cache"
	"chatlog/internal/pkg/nlu"
	"chatlog/internal/pkg/storefactory"
	"chatlog/internal/server/middleware"
	"chatlog/internal/service"
	"chatlog/internal/service/session"
)

// shutdownTimeout 优雅关闭等待时间
const shutdownTimeout = 10 * time.Second

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	stores *storefactory.Stores
	redis  *cache.RedisCache
}

// New 创建服务器实例
// 存储不可用时返回错误；Redis 与 NLU 可选，不可用时降级运行
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	setMode(cfg.Server.Mode)

	stores, err := storefactory.NewStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without cache")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.CacheTTL).Msg("connected to Redis")
		}
	}

	// 初始化 NLU 客户端 (可选)
	opts := []service.ConversationOption{
		service.WithFallbackMessage(cfg.NLU.FallbackMessage),
	}
	if a := cfg.NLU.Assistant; a.ID != "" {
		opts = append(opts, service.WithAssistant(conversation.AIParticipant{
			AIID:    a.ID,
			Name:    a.Name,
			Version: a.Version,
		}))
	}
	if redisCache != nil {
		opts = append(opts, service.WithCache(redisCache))
	}
	if cfg.NLU.BaseURL != "" {
		client, err := nlu.NewClient(nlu.Config{BaseURL: cfg.NLU.BaseURL, Timeout: cfg.NLU.Timeout})
		if err != nil {
			log.Warn().Err(err).Msg("invalid NLU config, messages will not be forwarded")
		} else {
			opts = append(opts, service.WithNLU(client))
			log.Info().Str("base_url", cfg.NLU.BaseURL).Dur("timeout", cfg.NLU.Timeout).Msg("NLU webhook configured")
		}
	} else {
		log.Warn().Msg("NLU base url not configured, messages will not be forwarded")
	}

	loc, err := cfg.Session.Location()
	if err != nil {
		_ = stores.Close(ctx)
		return nil, fmt.Errorf("load session timezone: %w", err)
	}

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
		stores: stores,
		redis:  redisCache,
	}

	convSvc := service.NewConversationService(stores.Conversations, opts...)
	turnSvc := service.NewTurnService(stores.Turns, session.NewGrouper(cfg.Session.Gap, loc))
	srv.setupRoutes(convSvc, turnSvc)

	return srv, nil
}

func setMode(mode string) {
	switch mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}

// setupRoutes 设置路由
// 业务接口同时挂在根路径（前端直接调用）和 /api/v1 下
func (s *Server) setupRoutes(convSvc *service.ConversationService, turnSvc *service.TurnService) {
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.stores, s.stores.Type)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	chatHandler := chat.NewHandler(convSvc, turnSvc)
	registerChatRoutes(s.engine, chatHandler)
	registerChatRoutes(s.engine.Group("/api/v1"), chatHandler)
}

func registerChatRoutes(r gin.IRoutes, h *chat.Handler) {
	// 对话
	r.GET("/recent-chats", h.ListChats)
	r.GET("/chat/:id", h.GetChat)
	r.POST("/chat/:id/message", h.PostMessage)
	r.POST("/chat", h.CreateChat)
	r.POST("/conversation", h.CreateChat)

	// 旧版扁平记录
	r.GET("/chat-history", h.ChatHistory)
	r.GET("/recent-conversations", h.RecentTurns)
	r.POST("/turns", h.CreateTurn)
}

// Run 启动服务器，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		s.Close(shutdownCtx)
		return err
	case err := <-errCh:
		s.Close(context.Background())
		return err
	}
}

// Close 关闭存储与缓存连接
func (s *Server) Close(ctx context.Context) {
	if err := s.stores.Close(ctx); err != nil {
		log.Error().Err(err).Str("store", s.stores.Type).Msg("failed to close store")
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
