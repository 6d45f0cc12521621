package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind Provider 错误分类
type ErrorKind string

const (
	KindConfig    ErrorKind = "config"     // 未知或不支持的 provider
	KindAuth      ErrorKind = "auth"       // API key 缺失或无效
	KindModel     ErrorKind = "model"      // 模型不存在或不支持
	KindRateLimit ErrorKind = "rate_limit" // 触发限流
	KindQuota     ErrorKind = "quota"      // 额度耗尽
	KindProvider  ErrorKind = "provider"   // 其他后端错误
)

// ProviderError 已分类的 Provider 错误，Error() 返回面向用户的描述
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case KindConfig:
		return fmt.Sprintf("Unsupported provider: %s", e.Provider)
	case KindAuth:
		return fmt.Sprintf("Invalid or missing API key for %s provider. Please check your API key.", e.Provider)
	case KindModel:
		return fmt.Sprintf("Invalid model %q for %s provider.", e.Model, e.Provider)
	case KindRateLimit:
		return fmt.Sprintf("Rate limit exceeded for %s provider. Please try again later.", e.Provider)
	case KindQuota:
		return fmt.Sprintf("Quota exceeded for %s provider. Please check your account.", e.Provider)
	default:
		detail := "unknown error"
		if e.Err != nil {
			detail = e.Err.Error()
		}
		return fmt.Sprintf("%s provider error: %s", e.Provider, detail)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind 判断 err 是否为指定分类的 ProviderError
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

// Classify 将后端原始错误归类，已分类的错误原样返回
// 匹配顺序: 凭证 -> 额度 -> 限流 -> 模型不存在 -> 通用
// 额度先于限流，因为 OpenAI 的额度错误同样以 429 返回
func Classify(provider, modelID string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	kind := KindProvider
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindProvider
	case containsAny(msg, "api key", "api_key", "apikey", "401", "unauthorized", "authentication", "permission denied"):
		kind = KindAuth
	case containsAny(msg, "quota", "insufficient_quota", "billing", "credit balance"):
		kind = KindQuota
	case containsAny(msg, "rate limit", "rate_limit", "ratelimit", "429", "too many requests", "resource_exhausted"):
		kind = KindRateLimit
	case isModelNotFound(msg):
		kind = KindModel
	}

	return &ProviderError{Kind: kind, Provider: provider, Model: modelID, Err: err}
}

// isModelNotFound 只有明确指出模型不存在时才归为模型错误，"model is overloaded" 之类仍是后端错误
func isModelNotFound(msg string) bool {
	if strings.Contains(msg, "model_not_found") {
		return true
	}
	return strings.Contains(msg, "model") &&
		containsAny(msg, "does not exist", "not found", "404", "not supported", "unsupported model", "invalid model", "unknown model")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
