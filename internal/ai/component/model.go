package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/Krosnoz/dialogue/internal/config"
)

// 各 Provider 的默认地址
// Anthropic 与 Google 使用其 OpenAI 兼容接口
const (
	AnthropicBaseURL = "https://api.anthropic.com/v1/"
	GoogleBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai/"
	ArkBaseURL       = "https://ark.cn-beijing.volces.com/api/v3"
)

// ModelConfig 创建 ChatModel 所需参数
type ModelConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Options config.AIOptionsConfig
}

// NewChatModel 创建 ChatModel
// 支持多种 Provider: openai, anthropic, google, ark
func NewChatModel(ctx context.Context, provider string, cfg *ModelConfig) (model.BaseChatModel, error) {
	switch provider {
	case "openai":
		return newOpenAICompatibleChatModel(ctx, cfg, cfg.BaseURL)
	case "anthropic":
		return newOpenAICompatibleChatModel(ctx, cfg, orDefault(cfg.BaseURL, AnthropicBaseURL))
	case "google":
		return newOpenAICompatibleChatModel(ctx, cfg, orDefault(cfg.BaseURL, GoogleBaseURL))
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", provider)
	}
}

// newOpenAICompatibleChatModel 创建 OpenAI 协议的 ChatModel
func newOpenAICompatibleChatModel(ctx context.Context, cfg *ModelConfig, baseURL string) (model.BaseChatModel, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}

	// Base URL (用于代理或兼容 API)
	if baseURL != "" {
		modelCfg.BaseURL = baseURL
	}

	// 模型参数
	if cfg.Options.Temperature > 0 {
		temp := float32(cfg.Options.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.Options.MaxTokens > 0 {
		maxTokens := cfg.Options.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if cfg.Options.TopP > 0 {
		topP := float32(cfg.Options.TopP)
		modelCfg.TopP = &topP
	}

	return openai.NewChatModel(ctx, modelCfg)
}

// newArkChatModel 创建 Ark ChatModel（使用 eino-ext 模块）
func newArkChatModel(ctx context.Context, cfg *ModelConfig) (model.BaseChatModel, error) {
	modelCfg := &arkext.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: orDefault(cfg.BaseURL, ArkBaseURL),
	}

	if cfg.Options.Temperature > 0 {
		temp := float32(cfg.Options.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.Options.MaxTokens > 0 {
		maxTokens := cfg.Options.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if cfg.Options.TopP > 0 {
		topP := float32(cfg.Options.TopP)
		modelCfg.TopP = &topP
	}

	return arkext.NewChatModel(ctx, modelCfg)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
