package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/Krosnoz/dialogue/internal/ai/component"
	"github.com/Krosnoz/dialogue/internal/config"
	dmodel "github.com/Krosnoz/dialogue/internal/model"
)

// ModelFactory 创建指定 provider 的 ChatModel
type ModelFactory func(ctx context.Context, provider string, cfg *component.ModelConfig) (model.BaseChatModel, error)

// Adapter AI 能力层客户端
// 职责: 屏蔽各 Provider 差异，把对话历史转换为增量文本流
// 每次调用只发起一次后端请求，不做重试
type Adapter struct {
	cfg      *config.AIConfig
	newModel ModelFactory
}

// NewAdapter 创建 Adapter
func NewAdapter(cfg *config.AIConfig) *Adapter {
	for _, p := range catalog {
		if !hasKey(cfg, p.id) {
			log.Warn().Str("provider", p.id).Msg("no process-wide API key configured, callers must supply one")
		}
	}
	return &Adapter{cfg: cfg, newModel: component.NewChatModel}
}

// NewAdapterWithFactory 使用自定义 ModelFactory 创建 Adapter（用于测试）
func NewAdapterWithFactory(cfg *config.AIConfig, factory ModelFactory) *Adapter {
	return &Adapter{cfg: cfg, newModel: factory}
}

type streamOptions struct {
	apiKey string
}

// StreamOption StreamResponse 可选参数
type StreamOption func(*streamOptions)

// WithAPIKey 使用调用方提供的 API key，优先于进程级配置
func WithAPIKey(key string) StreamOption {
	return func(o *streamOptions) {
		o.apiKey = key
	}
}

// StreamResponse 流式生成回复
// 未知 provider 与缺失凭证在发起网络请求前失败
func (a *Adapter) StreamResponse(ctx context.Context, provider, modelID string, history []dmodel.Message, opts ...StreamOption) (*TextStream, error) {
	var o streamOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !IsSupportedProvider(provider) {
		return nil, &ProviderError{Kind: KindConfig, Provider: provider, Model: modelID}
	}

	pcfg, _ := a.cfg.Provider(provider)
	apiKey := o.apiKey
	if apiKey == "" {
		apiKey = pcfg.APIKey
	}
	if apiKey == "" {
		return nil, &ProviderError{Kind: KindAuth, Provider: provider, Model: modelID}
	}

	cm, err := a.newModel(ctx, provider, &component.ModelConfig{
		Model:   modelID,
		APIKey:  apiKey,
		BaseURL: pcfg.BaseURL,
		Options: a.cfg.Options,
	})
	if err != nil {
		return nil, Classify(provider, modelID, err)
	}

	reader, err := cm.Stream(ctx, toSchemaMessages(history))
	if err != nil {
		return nil, Classify(provider, modelID, err)
	}

	return NewTextStream(reader, provider, modelID), nil
}

// HasGlobalAPIKey 是否配置了进程级 API key
func (a *Adapter) HasGlobalAPIKey(provider string) bool {
	return hasKey(a.cfg, provider)
}

// Catalog 返回 Provider 目录
func (a *Adapter) Catalog() []dmodel.ProviderInfo {
	items := make([]dmodel.ProviderInfo, 0, len(catalog))
	for _, p := range catalog {
		models := make([]string, len(p.models))
		copy(models, p.models)
		items = append(items, dmodel.ProviderInfo{
			ID:             p.id,
			Name:           p.name,
			Models:         models,
			RequiresAPIKey: !a.HasGlobalAPIKey(p.id),
		})
	}
	return items
}

func hasKey(cfg *config.AIConfig, provider string) bool {
	pcfg, ok := cfg.Provider(provider)
	return ok && pcfg.APIKey != ""
}

// toSchemaMessages 转换为 eino 消息
func toSchemaMessages(history []dmodel.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case dmodel.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case dmodel.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
