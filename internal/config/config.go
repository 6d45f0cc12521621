package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	AI     AIConfig     `mapstructure:"ai"`
	Log    LogConfig    `mapstructure:"log"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Redis  RedisConfig  `mapstructure:"redis"`
	PubSub PubSubConfig `mapstructure:"pubsub"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SSEHeartbeat time.Duration `mapstructure:"sse_heartbeat"` // SSE 心跳间隔，0 表示关闭
}

// AIConfig AI 服务配置
type AIConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	DefaultModel    string          `mapstructure:"default_model"`
	StreamTimeout   time.Duration   `mapstructure:"stream_timeout"` // 单次后台生成的最长时间，0 表示不限制
	Options         AIOptionsConfig `mapstructure:"options"`
	Providers       ProvidersConfig `mapstructure:"providers"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// ProvidersConfig 各 Provider 的进程级凭证
type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Google    ProviderConfig `mapstructure:"google"`
	Ark       ProviderConfig `mapstructure:"ark"`
}

// ProviderConfig 单个 Provider 配置
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // 为空时使用 Provider 默认地址
}

// Provider 按 id 查找 Provider 配置
func (c *AIConfig) Provider(id string) (ProviderConfig, bool) {
	switch id {
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "google":
		return c.Providers.Google, true
	case "ark":
		return c.Providers.Ark, true
	default:
		return ProviderConfig{}, false
	}
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PubSubConfig 流事件总线配置
type PubSubConfig struct {
	Driver     string `mapstructure:"driver"`      // redis, memory
	BufferSize int    `mapstructure:"buffer_size"` // 每个订阅的缓冲区大小
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	validDrivers := map[string]bool{"redis": true, "memory": true}
	if !validDrivers[c.PubSub.Driver] {
		return errors.New("invalid pubsub driver, must be redis/memory")
	}

	if c.AI.DefaultProvider != "" {
		if _, ok := c.AI.Provider(c.AI.DefaultProvider); !ok {
			return errors.New("invalid ai.default_provider, must be openai/anthropic/google/ark")
		}
	}

	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required")
	}

	return nil
}
