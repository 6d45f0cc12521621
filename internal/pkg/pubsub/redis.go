package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Krosnoz/dialogue/internal/config"
)

// RedisBus 基于 Redis PUBLISH/SUBSCRIBE 的总线
type RedisBus struct {
	client     *redis.Client
	bufferSize int
}

// NewRedisBus 创建 Redis 总线并测试连接
func NewRedisBus(cfg *config.RedisConfig, bufferSize int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisBusWithClient(client, bufferSize), nil
}

// NewRedisBusWithClient 使用已有客户端创建总线
func NewRedisBusWithClient(client *redis.Client, bufferSize int) *RedisBus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RedisBus{client: client, bufferSize: bufferSize}
}

// Publish 发布消息
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe 订阅频道，在返回前确认 Redis 已完成订阅
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps:   ps,
		ch:   make(chan []byte, b.bufferSize),
		done: make(chan struct{}),
	}
	go sub.forward(channel, b.bufferSize)
	return sub, nil
}

// Ping 检查连接
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close 关闭连接
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Client 获取原始客户端
func (b *RedisBus) Client() *redis.Client {
	return b.client
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) forward(channel string, bufferSize int) {
	defer close(s.ch)

	for msg := range s.ps.Channel(redis.WithChannelSize(bufferSize)) {
		if msg.Channel != channel {
			continue
		}
		select {
		case s.ch <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
	log.Debug().Str("channel", channel).Msg("redis subscription drained")
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
