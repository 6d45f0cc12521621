package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/pkg/safego"
	"github.com/Krosnoz/dialogue/internal/pkg/wsx"
)

// Sender 发送消息
type Sender interface {
	Send(ctx context.Context, userID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error)
}

// Streamer 打开对话事件流
type Streamer interface {
	OpenStream(ctx context.Context, conversationID string) (<-chan model.StreamEvent, error)
}

// ChatHandler 发送与订阅处理器
type ChatHandler struct {
	chat      Sender
	streams   Streamer
	access    AccessVerifier
	heartbeat time.Duration
}

// NewChatHandler 创建处理器，heartbeat 为 0 时不发送心跳
func NewChatHandler(chat Sender, streams Streamer, access AccessVerifier, heartbeat time.Duration) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		streams:   streams,
		access:    access,
		heartbeat: heartbeat,
	}
}

// Send 发送消息
// @Summary      发送消息
// @Description  写入用户消息并在后台开始生成回复，立即返回 conversationId；回复通过订阅接口推送
// @Tags         对话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.SendMessageRequest  true  "发送请求"
// @Success      200      {object}  model.SendMessageResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /api/v1/messages/send [post]
func (h *ChatHandler) Send(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.chat.Send(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// openStream 校验归属后订阅对话
func (h *ChatHandler) openStream(ctx context.Context, c *gin.Context) (<-chan model.StreamEvent, bool) {
	userID, ok := userIDFrom(c)
	if !ok {
		return nil, false
	}
	conversationID := c.Param("id")
	if err := h.access.VerifyAccess(ctx, userID, conversationID); err != nil {
		writeError(c, err)
		return nil, false
	}

	events, err := h.streams.OpenStream(ctx, conversationID)
	if err != nil {
		writeError(c, fmt.Errorf("open stream: %w", err))
		return nil, false
	}
	return events, true
}

// Stream 通过 SSE 订阅对话事件
// @Summary      订阅对话事件（SSE）
// @Description  每个事件以 event: <type> / data: <json> 推送；连接保持到客户端断开
// @Tags         对话
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id   path      string  true  "对话ID"
// @Success      200  {string}  string  "event stream"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/stream [get]
func (h *ChatHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	events, ok := h.openStream(ctx, c)
	if !ok {
		return
	}

	clearWriteDeadline(c)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	var heartbeat <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			payload, err := model.EncodeEvent(ev)
			if err != nil {
				log.Error().Err(err).Msg("encode stream event failed")
				return true
			}
			c.SSEvent(string(ev.Type()), string(payload))
			return true
		case <-heartbeat:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
}

// StreamWS 通过 WebSocket 订阅对话事件
// @Summary      订阅对话事件（WebSocket）
// @Description  每个事件作为一个 JSON 文本帧推送
// @Tags         对话
// @Security     BearerAuth
// @Param        id   path  string  true  "对话ID"
// @Success      101  {string}  string  "switching protocols"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/ws [get]
func (h *ChatHandler) StreamWS(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, ok := h.openStream(ctx, c)
	if !ok {
		return
	}

	ws, err := wsx.Upgrade(c.Writer, c.Request)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	logger := log.With().Str("conversation_id", c.Param("id")).Logger()

	// 连接被劫持后只能靠读循环感知断开
	safego.Go(ctx, func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(); err != nil {
				if !wsx.IsNormal(err) {
					logger.Debug().Err(err).Bool("peer_closed", ws.PeerClosed()).Msg("websocket read ended")
				}
				return
			}
		}
	}, nil)

	var heartbeat <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := model.EncodeEvent(ev)
			if err != nil {
				logger.Error().Err(err).Msg("encode stream event failed")
				continue
			}
			if err := ws.WriteText(payload); err != nil {
				return
			}
		case <-heartbeat:
			if err := ws.Ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
