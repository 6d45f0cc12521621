package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Krosnoz/dialogue/internal/ai"
	"github.com/Krosnoz/dialogue/internal/config"
	"github.com/Krosnoz/dialogue/internal/handler"
	"github.com/Krosnoz/dialogue/internal/pkg/jwt"
	"github.com/Krosnoz/dialogue/internal/pkg/mongodb"
	"github.com/Krosnoz/dialogue/internal/pkg/pubsub"
	"github.com/Krosnoz/dialogue/internal/repository"
	"github.com/Krosnoz/dialogue/internal/server/middleware"
	"github.com/Krosnoz/dialogue/internal/service"
)

const (
	defaultJWTSecret   = "default-secret-key-change-in-production"
	defaultTokenExpiry = 24 * time.Hour
	shutdownTimeout    = 15 * time.Second
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	bus    pubsub.Bus

	chatSvc *service.ChatService
}

// New 创建服务器实例，连接 MongoDB 与事件总线并注册路由
func New(cfg *config.Config) (*Server, error) {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	bus, err := pubsub.New(cfg)
	if err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, fmt.Errorf("init pubsub: %w", err)
	}
	log.Info().Str("driver", cfg.PubSub.Driver).Msg("pubsub bus ready")

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
		mongo:  mongoClient,
		bus:    bus,
	}
	srv.setupRoutes()

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"mongo":  s.mongo,
		"pubsub": s.bus,
	})
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	adapter := ai.NewAdapter(&s.cfg.AI)
	convRepo := repository.NewConversationRepo(s.mongo.Database())
	projectRepo := repository.NewProjectRepo(s.mongo.Database())

	s.chatSvc = service.NewChatService(convRepo, convRepo, adapter, s.bus, &s.cfg.AI)
	convSvc := service.NewConversationService(convRepo, projectRepo)
	gateway := service.NewStreamGateway(s.bus)

	chatHdl := handler.NewChatHandler(s.chatSvc, gateway, convSvc, s.cfg.Server.SSEHeartbeat)
	convHdl := handler.NewConversationHandler(convSvc)
	projectHdl := handler.NewProjectHandler(service.NewProjectService(projectRepo, convRepo))
	providerHdl := handler.NewProviderHandler(service.NewProviderService(adapter))

	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(NewJWT(&s.cfg.Auth)))
	{
		v1.POST("/messages/send", chatHdl.Send)

		v1.GET("/conversations", convHdl.List)
		v1.POST("/conversations", convHdl.Create)
		v1.GET("/conversations/:id", convHdl.Get)
		v1.PATCH("/conversations/:id", convHdl.Rename)
		v1.DELETE("/conversations/:id", convHdl.Delete)
		v1.GET("/conversations/:id/messages", convHdl.Messages)
		v1.GET("/conversations/:id/stream", chatHdl.Stream)
		v1.GET("/conversations/:id/ws", chatHdl.StreamWS)
		v1.PUT("/conversations/:id/project", convHdl.AddToProject)
		v1.POST("/conversations/:id/project", convHdl.CreateProject)
		v1.DELETE("/conversations/:id/project/:project_id", convHdl.RemoveFromProject)

		v1.GET("/projects", projectHdl.List)
		v1.POST("/projects", projectHdl.Create)
		v1.GET("/projects/recent", projectHdl.ListRecent)
		v1.GET("/projects/:id", projectHdl.Get)
		v1.PATCH("/projects/:id", projectHdl.Update)
		v1.DELETE("/projects/:id", projectHdl.Delete)

		v1.GET("/providers", providerHdl.List)
	}
}

// NewJWT 按配置创建 JWT 工具，未配置时使用默认值（token 子命令复用）
func NewJWT(cfg *config.AuthConfig) *jwt.JWT {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = defaultJWTSecret
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	expiry := cfg.AccessTokenExpiry
	if expiry == 0 {
		expiry = defaultTokenExpiry
	}
	return jwt.NewJWT(secret, expiry)
}

// Run 启动服务器，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	// 关闭时取消所有请求 context，结束长连接订阅
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
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
	case err := <-errCh:
		s.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	cancelBase()
	err := srv.Shutdown(shutdownCtx)

	// 等待后台生成结束后再断开存储与总线
	done := make(chan struct{})
	go func() {
		s.chatSvc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("background streams still running at shutdown")
	}

	s.close()
	return err
}

func (s *Server) close() {
	if err := s.bus.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub bus")
	}
	if err := s.mongo.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("failed to close MongoDB connection")
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
