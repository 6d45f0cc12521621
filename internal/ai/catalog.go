package ai

// Provider 标识
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderArk       = "ark"
)

type providerEntry struct {
	id     string
	name   string
	models []string
}

// catalog 支持的 Provider 及其常用模型，顺序即展示顺序
var catalog = []providerEntry{
	{
		id:   ProviderOpenAI,
		name: "OpenAI",
		models: []string{
			"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano",
			"gpt-4o", "gpt-4o-mini", "o3", "o3-mini",
		},
	},
	{
		id:   ProviderAnthropic,
		name: "Anthropic",
		models: []string{
			"claude-4-opus-20250514", "claude-4-sonnet-20250514",
			"claude-3-7-sonnet-20250219", "claude-3-5-sonnet-20241022",
		},
	},
	{
		id:   ProviderGoogle,
		name: "Google",
		models: []string{
			"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite-preview-06-17",
			"gemini-2.0-flash", "gemini-2.0-flash-lite",
		},
	},
	{
		id:     ProviderArk,
		name:   "Volcengine Ark",
		models: []string{"doubao-seed-1-6-flash-250615", "doubao-1-5-pro-32k-250115"},
	},
}

// IsSupportedProvider 检查 provider 是否在支持列表中
func IsSupportedProvider(id string) bool {
	for _, p := range catalog {
		if p.id == id {
			return true
		}
	}
	return false
}
