package service

import (
	"context"

	"github.com/Krosnoz/dialogue/internal/model"
	plog "github.com/Krosnoz/dialogue/internal/pkg/logger"
	"github.com/Krosnoz/dialogue/internal/pkg/pubsub"
	"github.com/Krosnoz/dialogue/internal/pkg/safego"
)

// StreamGateway 把总线上的原始消息解码为 StreamEvent 交给调用方
type StreamGateway struct {
	bus pubsub.Bus
}

// NewStreamGateway 创建订阅网关
func NewStreamGateway(bus pubsub.Bus) *StreamGateway {
	return &StreamGateway{bus: bus}
}

// OpenStream 订阅对话频道
// 返回的 channel 在 ctx 结束或底层订阅断开时关闭；不会因为 complete / error 事件自动关闭
func (g *StreamGateway) OpenStream(ctx context.Context, conversationID string) (<-chan model.StreamEvent, error) {
	sub, err := g.bus.Subscribe(ctx, pubsub.ChannelKey(conversationID))
	if err != nil {
		return nil, err
	}

	logger := plog.With("stream").With().Str("conversation_id", conversationID).Logger()
	out := make(chan model.StreamEvent)

	safego.Go(ctx, func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				logger.Warn().Err(err).Msg("close subscription failed")
			}
		}()

		msgs := sub.Messages()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := model.DecodeEvent(payload)
				if err != nil {
					logger.Warn().Err(err).Int("size", len(payload)).Msg("skip malformed stream event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}, nil)

	return out, nil
}
