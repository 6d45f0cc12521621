package ai

import (
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"
)

// TextStream 单向、只能消费一次的增量文本流
type TextStream struct {
	reader   *schema.StreamReader[*schema.Message]
	provider string
	model    string
}

// NewTextStream 包装 eino 消息流
func NewTextStream(reader *schema.StreamReader[*schema.Message], provider, modelID string) *TextStream {
	return &TextStream{reader: reader, provider: provider, model: modelID}
}

// Recv 返回下一段非空文本，结束时返回 io.EOF，其余错误均为 *ProviderError
func (s *TextStream) Recv() (string, error) {
	for {
		msg, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", Classify(s.provider, s.model, err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		return msg.Content, nil
	}
}

// Close 释放底层流
func (s *TextStream) Close() {
	s.reader.Close()
}
