package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Krosnoz/dialogue/internal/ai"
	"github.com/Krosnoz/dialogue/internal/config"
	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/pkg/ctxutil"
	"github.com/Krosnoz/dialogue/internal/pkg/id"
	plog "github.com/Krosnoz/dialogue/internal/pkg/logger"
	"github.com/Krosnoz/dialogue/internal/pkg/pubsub"
	"github.com/Krosnoz/dialogue/internal/pkg/safego"
)

const (
	msgNoResponse    = "No response generated from the AI provider."
	msgInternalError = "An error occurred while processing your request."
)

// ConversationStore 对话归属管理
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	VerifyAccess(ctx context.Context, conversationID, userID string) error
}

// MessageStore 消息存储
type MessageStore interface {
	AppendMessages(ctx context.Context, conversationID string, msgs []model.NewMessage, meta model.MessageMeta) ([]model.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// Provider 流式生成回复的 AI 后端
type Provider interface {
	StreamResponse(ctx context.Context, provider, modelID string, history []model.Message, opts ...ai.StreamOption) (*ai.TextStream, error)
}

// ChatService 对话服务
// 同步阶段：校验 -> 解析对话 -> 写入用户消息，随即返回 conversationId
// 异步阶段：读取历史 -> 调用 AI -> 逐段发布 chunk -> 写入回复并发布 complete / error
type ChatService struct {
	convs    ConversationStore
	messages MessageStore
	provider Provider
	bus      pubsub.Bus
	cfg      *config.AIConfig

	wg sync.WaitGroup
}

// NewChatService 创建对话服务
func NewChatService(convs ConversationStore, messages MessageStore, provider Provider, bus pubsub.Bus, cfg *config.AIConfig) *ChatService {
	return &ChatService{
		convs:    convs,
		messages: messages,
		provider: provider,
		bus:      bus,
		cfg:      cfg,
	}
}

// streamTask 一次后台生成所需的参数
type streamTask struct {
	conversationID string
	provider       string
	model          string
	apiKey         string
}

// Send 接收一条消息并启动后台生成
// 启动后台任务之前的错误同步返回；之后的错误只以 error 事件出现在总线上
func (s *ChatService) Send(ctx context.Context, userID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := s.validateSend(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	task := streamTask{
		conversationID: req.ConversationID,
		provider:       req.Provider,
		model:          req.Model,
		apiKey:         req.APIKey,
	}
	if task.provider == "" {
		task.provider = s.defaultProvider()
	}
	if task.model == "" {
		task.model = s.defaultModel()
	}

	logger := plog.With("chat").With().
		Str("user_id", userID).
		Str("request_id", ctxutil.GetRequestID(ctx)).
		Logger()

	if task.conversationID == "" {
		conv := &model.Conversation{UserID: userID}
		if err := s.convs.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		task.conversationID = conv.ID
		logger.Info().Str("conversation_id", conv.ID).Msg("conversation created")

		// 让在 id 确定前抢先订阅的客户端也能拿到 id
		s.publish(ctx, logger, task.conversationID, model.ConversationCreated{ConversationID: conv.ID})
	} else if err := s.convs.VerifyAccess(ctx, task.conversationID, userID); err != nil {
		return nil, err
	}

	if len(req.Content) > 0 {
		meta := model.MessageMeta{Provider: task.provider, Model: task.model}
		if _, err := s.messages.AppendMessages(ctx, task.conversationID, req.Content, meta); err != nil {
			return nil, fmt.Errorf("append messages: %w", err)
		}
	}

	s.launch(ctx, task)

	return &model.SendMessageResponse{ConversationID: task.conversationID}, nil
}

// Wait 阻塞直到所有后台任务结束
func (s *ChatService) Wait() {
	s.wg.Wait()
}

func (s *ChatService) validateSend(req *model.SendMessageRequest) error {
	if req == nil {
		return errors.New("request body is required")
	}
	if req.ConversationID != "" && !id.IsValid(req.ConversationID) {
		return errors.New("conversationId must be a UUID")
	}
	if req.Content != nil && len(req.Content) == 0 {
		return errors.New("content must not be empty")
	}
	for i, m := range req.Content {
		if !m.Role.IsValid() {
			return fmt.Errorf("content[%d].role %q is invalid", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("content[%d].content is required", i)
		}
	}
	if req.Provider != "" && !ai.IsSupportedProvider(req.Provider) {
		return fmt.Errorf("unsupported provider %q", req.Provider)
	}
	return nil
}

func (s *ChatService) defaultProvider() string {
	if s.cfg != nil && s.cfg.DefaultProvider != "" {
		return s.cfg.DefaultProvider
	}
	return ai.ProviderOpenAI
}

func (s *ChatService) defaultModel() string {
	if s.cfg != nil && s.cfg.DefaultModel != "" {
		return s.cfg.DefaultModel
	}
	return "gpt-4o"
}

// launch 在脱离请求生命周期的 goroutine 中执行生成
func (s *ChatService) launch(reqCtx context.Context, task streamTask) {
	ctx := context.WithoutCancel(reqCtx)
	cancel := context.CancelFunc(func() {})
	if s.cfg != nil && s.cfg.StreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StreamTimeout)
	}

	logger := plog.With("chat").With().
		Str("conversation_id", task.conversationID).
		Str("provider", task.provider).
		Str("model", task.model).
		Logger()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer safego.Recovery(ctx, func(error) {
			s.publish(context.WithoutCancel(ctx), logger, task.conversationID, model.ErrorEvent{Content: msgInternalError})
		})

		s.stream(ctx, logger, task)
	}()
}

// stream 后台生成主流程，所有结果都以事件形式发布
func (s *ChatService) stream(ctx context.Context, logger zerolog.Logger, task streamTask) {
	start := time.Now()

	all, err := s.messages.ListMessages(ctx, task.conversationID)
	if err != nil {
		s.fail(ctx, logger, task, err)
		return
	}
	history := make([]model.Message, 0, len(all))
	for _, m := range all {
		if m.Role == model.RoleAssistant && m.Content == "" {
			continue
		}
		history = append(history, m)
	}

	var opts []ai.StreamOption
	if task.apiKey != "" {
		opts = append(opts, ai.WithAPIKey(task.apiKey))
	}
	stream, err := s.provider.StreamResponse(ctx, task.provider, task.model, history, opts...)
	if err != nil {
		s.fail(ctx, logger, task, err)
		return
	}
	defer stream.Close()

	var buf strings.Builder
	chunks := 0
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(ctx, logger, task, err)
			return
		}
		buf.WriteString(chunk)
		chunks++
		s.publish(ctx, logger, task.conversationID, model.Chunk{Content: chunk})
	}

	content := buf.String()
	if strings.TrimSpace(content) == "" {
		logger.Warn().Int("chunks", chunks).Msg("empty response from provider")
		s.publish(ctx, logger, task.conversationID, model.ErrorEvent{Content: msgNoResponse})
		return
	}

	meta := model.MessageMeta{Provider: task.provider, Model: task.model}
	saved, err := s.messages.AppendMessages(ctx, task.conversationID, []model.NewMessage{
		{Role: model.RoleAssistant, Content: content},
	}, meta)
	if err != nil {
		s.fail(ctx, logger, task, fmt.Errorf("save assistant message: %w", err))
		return
	}

	s.publish(ctx, logger, task.conversationID, model.Complete{MessageID: saved[0].ID, Content: content})
	logger.Info().
		Int("chunks", chunks).
		Int("length", len(content)).
		Dur("latency", time.Since(start)).
		Msg("response completed")
}

// fail 发布一条已分类的 error 事件，不保存任何部分回复
func (s *ChatService) fail(ctx context.Context, logger zerolog.Logger, task streamTask, err error) {
	content := msgInternalError
	var perr *ai.ProviderError
	switch {
	case errors.As(err, &perr):
		content = perr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		content = ai.Classify(task.provider, task.model, err).Error()
	}

	logger.Error().Err(err).Msg("response generation failed")
	// 超时后 ctx 已失效，error 事件仍需送达
	s.publish(context.WithoutCancel(ctx), logger, task.conversationID, model.ErrorEvent{Content: content})
}

// publish 序列化并发布事件；发布失败只记录日志
func (s *ChatService) publish(ctx context.Context, logger zerolog.Logger, conversationID string, ev model.StreamEvent) {
	payload, err := model.EncodeEvent(ev)
	if err != nil {
		logger.Error().Err(err).Str("event", string(ev.Type())).Msg("encode event failed")
		return
	}
	if err := s.bus.Publish(ctx, pubsub.ChannelKey(conversationID), payload); err != nil {
		logger.Error().Err(err).Str("event", string(ev.Type())).Msg("publish event failed")
	}
}
