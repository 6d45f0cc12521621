package model

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// EventType 流事件类型
type EventType string

const (
	EventConversationCreated EventType = "conversation_created"
	EventChunk               EventType = "chunk"
	EventComplete            EventType = "complete"
	EventError               EventType = "error"
)

var (
	ErrUnknownEventType = errors.New("unknown stream event type")
	ErrMalformedEvent   = errors.New("malformed stream event")
)

// StreamEvent 流事件
// 只有本包中的四种类型实现该接口，消费方使用 type switch 处理
type StreamEvent interface {
	Type() EventType
	streamEvent()
}

// ConversationCreated 本次发送新建了对话
type ConversationCreated struct {
	ConversationID string
}

// Chunk 一段增量文本
type Chunk struct {
	Content string
}

// Complete 助手回复已完整生成并落库
type Complete struct {
	MessageID string
	Content   string
}

// ErrorEvent 本次生成失败
type ErrorEvent struct {
	Content string
}

func (ConversationCreated) Type() EventType { return EventConversationCreated }
func (Chunk) Type() EventType               { return EventChunk }
func (Complete) Type() EventType            { return EventComplete }
func (ErrorEvent) Type() EventType          { return EventError }

func (ConversationCreated) streamEvent() {}
func (Chunk) streamEvent()               {}
func (Complete) streamEvent()            {}
func (ErrorEvent) streamEvent()          {}

// IsTerminal 是否为一次发送的终止事件
func IsTerminal(ev StreamEvent) bool {
	switch ev.(type) {
	case Complete, ErrorEvent:
		return true
	default:
		return false
	}
}

func (e ConversationCreated) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(struct {
		Type           EventType `json:"type"`
		ConversationID string    `json:"conversationId"`
	}{EventConversationCreated, e.ConversationID})
}

func (e Chunk) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(struct {
		Type    EventType `json:"type"`
		Content string    `json:"content"`
	}{EventChunk, e.Content})
}

func (e Complete) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(struct {
		Type      EventType `json:"type"`
		MessageID string    `json:"messageId"`
		Content   string    `json:"content"`
	}{EventComplete, e.MessageID, e.Content})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(struct {
		Type    EventType `json:"type"`
		Content string    `json:"content"`
	}{EventError, e.Content})
}

// EncodeEvent 序列化为总线/客户端使用的 JSON 格式
func EncodeEvent(ev StreamEvent) ([]byte, error) {
	switch e := ev.(type) {
	case ConversationCreated:
		return e.MarshalJSON()
	case Chunk:
		return e.MarshalJSON()
	case Complete:
		return e.MarshalJSON()
	case ErrorEvent:
		return e.MarshalJSON()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}
}

// eventEnvelope 解码时使用的宽松结构
type eventEnvelope struct {
	Type           EventType `json:"type"`
	ConversationID *string   `json:"conversationId"`
	MessageID      *string   `json:"messageId"`
	Content        *string   `json:"content"`
}

// DecodeEvent 从 JSON 解析流事件，未知类型或缺少必填字段返回错误
func DecodeEvent(data []byte) (StreamEvent, error) {
	var env eventEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Type {
	case EventConversationCreated:
		if env.ConversationID == nil || *env.ConversationID == "" {
			return nil, fmt.Errorf("%w: conversation_created without conversationId", ErrMalformedEvent)
		}
		return ConversationCreated{ConversationID: *env.ConversationID}, nil
	case EventChunk:
		if env.Content == nil {
			return nil, fmt.Errorf("%w: chunk without content", ErrMalformedEvent)
		}
		return Chunk{Content: *env.Content}, nil
	case EventComplete:
		if env.MessageID == nil || *env.MessageID == "" || env.Content == nil {
			return nil, fmt.Errorf("%w: complete without messageId/content", ErrMalformedEvent)
		}
		return Complete{MessageID: *env.MessageID, Content: *env.Content}, nil
	case EventError:
		if env.Content == nil {
			return nil, fmt.Errorf("%w: error without content", ErrMalformedEvent)
		}
		return ErrorEvent{Content: *env.Content}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}
