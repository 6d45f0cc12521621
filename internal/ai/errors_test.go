package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"invalid key", errors.New("Incorrect API key provided: sk-xxx"), KindAuth},
		{"http 401", errors.New("error, status code: 401, message: unauthorized"), KindAuth},
		{"quota before rate limit", errors.New("status code: 429, You exceeded your current quota"), KindQuota},
		{"rate limit", errors.New("Rate limit reached for requests"), KindRateLimit},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), KindRateLimit},
		{"unknown model", errors.New("The model `gpt-9` does not exist"), KindModel},
		{"model 404", errors.New("error, status code: 404, message: model not found"), KindModel},
		{"model_not_found code", errors.New(`{"code":"model_not_found"}`), KindModel},
		{"overloaded model", errors.New("The model is overloaded, please retry"), KindProvider},
		{"model in generic text", errors.New("upstream model server returned 500"), KindProvider},
		{"deadline", fmt.Errorf("stream: %w", context.DeadlineExceeded), KindProvider},
		{"generic", errors.New("connection reset by peer"), KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("openai", "gpt-4o", tt.err)
			if got.Kind != tt.want {
				t.Errorf("Classify() kind = %s, want %s", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("Classify() should wrap the original error")
			}
		})
	}
}

func TestClassify_KeepsProviderError(t *testing.T) {
	orig := &ProviderError{Kind: KindAuth, Provider: "google"}
	wrapped := fmt.Errorf("call: %w", orig)
	if got := Classify("openai", "gpt-4o", wrapped); got != orig {
		t.Errorf("Classify() should return the existing ProviderError")
	}
	if Classify("openai", "gpt-4o", nil) != nil {
		t.Errorf("Classify(nil) should be nil")
	}
}

func TestProviderError_Message(t *testing.T) {
	tests := []struct {
		err  *ProviderError
		want string
	}{
		{&ProviderError{Kind: KindAuth, Provider: "openai"}, "Invalid or missing API key for openai provider. Please check your API key."},
		{&ProviderError{Kind: KindModel, Provider: "google", Model: "gemini-x"}, `Invalid model "gemini-x" for google provider.`},
		{&ProviderError{Kind: KindRateLimit, Provider: "anthropic"}, "Rate limit exceeded for anthropic provider. Please try again later."},
		{&ProviderError{Kind: KindQuota, Provider: "openai"}, "Quota exceeded for openai provider. Please check your account."},
		{&ProviderError{Kind: KindProvider, Provider: "openai", Err: errors.New("boom")}, "openai provider error: boom"},
		{&ProviderError{Kind: KindConfig, Provider: "mistral"}, "Unsupported provider: mistral"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
