// Package pubsub 流事件总线
// 负载为已序列化的字节，按频道广播给当前所有订阅者，不做缓冲与回放
package pubsub

import (
	"context"
	"errors"
	"fmt"

	"github.com/Krosnoz/dialogue/internal/config"
)

// ConversationChannelPrefix 对话频道前缀
const ConversationChannelPrefix = "conversation:"

// DefaultBufferSize 每个订阅的默认缓冲大小
const DefaultBufferSize = 256

// ErrClosed 总线已关闭
var ErrClosed = errors.New("pubsub: bus closed")

// ChannelKey 生成对话频道名
func ChannelKey(conversationID string) string {
	return ConversationChannelPrefix + conversationID
}

// Bus 发布/订阅总线
type Bus interface {
	// Publish 广播到频道的当前订阅者，无订阅者时直接丢弃
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe 订阅单个频道，订阅之前发布的消息不可见
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	// Ping 检查总线是否可用
	Ping(ctx context.Context) error
	Close() error
}

// Subscription 单个频道的订阅
type Subscription interface {
	// Messages 按发布顺序返回负载，订阅关闭后 channel 被关闭
	Messages() <-chan []byte
	Close() error
}

// New 根据配置创建总线
func New(cfg *config.Config) (Bus, error) {
	bufferSize := cfg.PubSub.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	switch cfg.PubSub.Driver {
	case "redis", "":
		return NewRedisBus(&cfg.Redis, bufferSize)
	case "memory":
		return NewMemoryBus(bufferSize), nil
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.PubSub.Driver)
	}
}
