package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Krosnoz/dialogue/internal/ai"
	"github.com/Krosnoz/dialogue/internal/config"
	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/pkg/id"
	"github.com/Krosnoz/dialogue/internal/pkg/pubsub"
	"github.com/Krosnoz/dialogue/internal/repository"
)

const (
	owner    = "user-1"
	stranger = "user-2"
)

func hello() []model.NewMessage {
	return []model.NewMessage{{Role: model.RoleUser, Content: "Hello"}}
}

func TestChatService_Send(t *testing.T) {
	ctx := context.Background()

	Convey("ChatService.Send", t, func() {
		store := newMemStore()
		bus := pubsub.NewMemoryBus(16)
		provider := &fakeProvider{chunks: []string{"Hi", " there!"}}
		cfg := &config.AIConfig{DefaultProvider: "openai", DefaultModel: "gpt-4o"}
		svc := NewChatService(store, store, provider, bus, cfg)
		gateway := NewStreamGateway(bus)

		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		Convey("新对话：conversation_created -> chunk* -> complete，且回复被持久化", func() {
			convID := id.New()
			store.nextID = convID
			events, err := gateway.OpenStream(subCtx, convID)
			So(err, ShouldBeNil)

			resp, err := svc.Send(ctx, owner, &model.SendMessageRequest{Content: hello()})
			So(err, ShouldBeNil)
			So(resp.ConversationID, ShouldEqual, convID)

			got := collect(events)
			svc.Wait()

			So(types(got), ShouldResemble, []model.EventType{
				model.EventConversationCreated, model.EventChunk, model.EventChunk, model.EventComplete,
			})
			So(got[0], ShouldResemble, model.ConversationCreated{ConversationID: convID})
			So(got[1], ShouldResemble, model.Chunk{Content: "Hi"})
			So(got[2], ShouldResemble, model.Chunk{Content: " there!"})

			complete := got[3].(model.Complete)
			So(complete.Content, ShouldEqual, "Hi there!")

			msgs := store.messages(convID)
			So(len(msgs), ShouldEqual, 2)
			So(msgs[0].Role, ShouldEqual, model.RoleUser)
			So(msgs[0].Content, ShouldEqual, "Hello")
			So(msgs[1].ID, ShouldEqual, complete.MessageID)
			So(msgs[1].Role, ShouldEqual, model.RoleAssistant)
			So(msgs[1].Content, ShouldEqual, complete.Content)
			So(msgs[1].Provider, ShouldEqual, "openai")
			So(msgs[1].Model, ShouldEqual, "gpt-4o")

			Convey("模型看到的是刚写入的用户消息", func() {
				history := provider.history()
				So(len(history), ShouldEqual, 1)
				So(history[0].Content, ShouldEqual, "Hello")
			})
		})

		Convey("已有对话：不发布 conversation_created", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, err := gateway.OpenStream(subCtx, conv.ID)
			So(err, ShouldBeNil)

			_, err = svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)

			got := collect(events)
			svc.Wait()
			So(types(got), ShouldResemble, []model.EventType{model.EventChunk, model.EventChunk, model.EventComplete})
		})

		Convey("中途失败：chunk* -> error，不保存部分回复", func() {
			provider.failAfter = errors.New("error, status code: 429, message: Rate limit reached for requests")
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)

			got := collect(events)
			svc.Wait()
			So(types(got), ShouldResemble, []model.EventType{model.EventChunk, model.EventChunk, model.EventError})
			So(got[2].(model.ErrorEvent).Content, ShouldEqual, "Rate limit exceeded for openai provider. Please try again later.")

			msgs := store.messages(conv.ID)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Role, ShouldEqual, model.RoleUser)
		})

		Convey("空白输出：error 事件提示没有生成回复，不写入 assistant 消息", func() {
			provider.chunks = []string{" ", "\n"}
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)

			got := collect(events)
			svc.Wait()
			last := got[len(got)-1]
			So(last, ShouldResemble, model.ErrorEvent{Content: "No response generated from the AI provider."})
			So(len(store.messages(conv.ID)), ShouldEqual, 1)
		})

		Convey("他人的对话：返回 not found，没有写入也没有事件", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, stranger, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			svc.Wait()

			So(store.appends(), ShouldEqual, 0)
			So(provider.callCount(), ShouldEqual, 0)
			select {
			case ev := <-events:
				So(ev, ShouldBeNil)
			case <-time.After(50 * time.Millisecond):
			}
		})

		Convey("两个订阅者收到相同且有序的事件", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			a, _ := gateway.OpenStream(subCtx, conv.ID)
			b, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)

			gotA := make(chan []model.StreamEvent, 1)
			go func() { gotA <- collect(a) }()
			gotB := collect(b)
			svc.Wait()

			first := <-gotA
			So(len(first), ShouldEqual, 3)
			So(first, ShouldResemble, gotB)
		})

		Convey("终止事件之后订阅的客户端收不到任何事件", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)
			svc.Wait()

			late, err := gateway.OpenStream(subCtx, conv.ID)
			So(err, ShouldBeNil)
			select {
			case ev := <-late:
				So(ev, ShouldBeNil)
			case <-time.After(50 * time.Millisecond):
			}
		})

		Convey("没有 API key 时直接以鉴权错误结束，不发布 chunk", func() {
			adapter := ai.NewAdapterWithFactory(&config.AIConfig{}, nil)
			svc := NewChatService(store, store, adapter, bus, cfg)
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello(), Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"})
			So(err, ShouldBeNil)

			got := collect(events)
			svc.Wait()
			So(types(got), ShouldResemble, []model.EventType{model.EventError})
			So(got[0].(model.ErrorEvent).Content, ShouldEqual, "Invalid or missing API key for anthropic provider. Please check your API key.")
			So(len(store.messages(conv.ID)), ShouldEqual, 1)
		})

		Convey("显式 API key 传给 Provider", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello(), APIKey: "sk-user"})
			So(err, ShouldBeNil)
			svc.Wait()
			So(provider.gotAPIKey, ShouldBeTrue)
		})

		Convey("空内容的 assistant 历史消息不会发给模型", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			store.msgs[conv.ID] = []model.Message{
				{ID: "m1", Role: model.RoleUser, Content: "first"},
				{ID: "m2", Role: model.RoleAssistant, Content: ""},
			}

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)
			svc.Wait()

			history := provider.history()
			So(len(history), ShouldEqual, 2)
			So(history[0].ID, ShouldEqual, "m1")
			So(history[1].Content, ShouldEqual, "Hello")
		})

		Convey("没有内容的发送仍然触发生成", func() {
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID})
			So(err, ShouldBeNil)
			svc.Wait()

			So(provider.callCount(), ShouldEqual, 1)
			So(store.appends(), ShouldEqual, 1)
		})

		Convey("后台 panic 被转换为 error 事件", func() {
			provider.panicOn = true
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)

			got := collect(events)
			svc.Wait()
			So(types(got), ShouldResemble, []model.EventType{model.EventError})
		})

		Convey("保存回复失败时发布 error 而不是 complete", func() {
			store.appendErr = func(msgs []model.NewMessage) error {
				if msgs[0].Role == model.RoleAssistant {
					return errors.New("write conflict")
				}
				return nil
			}
			conv := &model.Conversation{UserID: owner}
			So(store.Create(ctx, conv), ShouldBeNil)
			events, _ := gateway.OpenStream(subCtx, conv.ID)

			_, err := svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
			So(err, ShouldBeNil)

			got := collect(events)
			svc.Wait()
			So(types(got), ShouldResemble, []model.EventType{model.EventChunk, model.EventChunk, model.EventError})
			So(got[2].(model.ErrorEvent).Content, ShouldEqual, "An error occurred while processing your request.")
		})
	})
}

func TestChatService_StreamTimeout(t *testing.T) {
	ctx := context.Background()

	Convey("超过 stream_timeout 的生成以单个 error 事件结束", t, func() {
		store := newMemStore()
		bus := pubsub.NewMemoryBus(16)
		provider := &fakeProvider{block: true}
		cfg := &config.AIConfig{DefaultProvider: "openai", DefaultModel: "gpt-4o", StreamTimeout: 50 * time.Millisecond}
		svc := NewChatService(store, store, provider, bus, cfg)

		conv := &model.Conversation{UserID: owner}
		So(store.Create(ctx, conv), ShouldBeNil)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		events, err := NewStreamGateway(bus).OpenStream(subCtx, conv.ID)
		So(err, ShouldBeNil)

		_, err = svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
		So(err, ShouldBeNil)

		got := collect(events)
		svc.Wait()
		So(types(got), ShouldResemble, []model.EventType{model.EventError})
		So(got[0].(model.ErrorEvent).Content, ShouldContainSubstring, "openai provider error")

		// 终止事件之后不再有事件
		select {
		case ev := <-events:
			So(ev, ShouldBeNil)
		case <-time.After(50 * time.Millisecond):
		}

		msgs := store.messages(conv.ID)
		So(len(msgs), ShouldEqual, 1)
		So(msgs[0].Role, ShouldEqual, model.RoleUser)
	})
}

func TestChatService_StalledSubscriber(t *testing.T) {
	ctx := context.Background()

	Convey("停止读取的订阅者不会阻塞生成与持久化", t, func() {
		store := newMemStore()
		bus := pubsub.NewMemoryBus(2)
		chunks := make([]string, 20)
		for i := range chunks {
			chunks[i] = "x"
		}
		provider := &fakeProvider{chunks: chunks}
		svc := NewChatService(store, store, provider, bus, &config.AIConfig{DefaultProvider: "openai", DefaultModel: "gpt-4o"})

		conv := &model.Conversation{UserID: owner}
		So(store.Create(ctx, conv), ShouldBeNil)
		stalled, err := bus.Subscribe(ctx, pubsub.ChannelKey(conv.ID))
		So(err, ShouldBeNil)
		defer stalled.Close()

		_, err = svc.Send(ctx, owner, &model.SendMessageRequest{ConversationID: conv.ID, Content: hello()})
		So(err, ShouldBeNil)

		done := make(chan struct{})
		go func() {
			svc.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			So("background task blocked by stalled subscriber", ShouldBeEmpty)
		}

		msgs := store.messages(conv.ID)
		So(len(msgs), ShouldEqual, 2)
		So(msgs[1].Role, ShouldEqual, model.RoleAssistant)
		So(msgs[1].Content, ShouldEqual, strings.Repeat("x", 20))
		So(bus.SubscriberCount(pubsub.ChannelKey(conv.ID)), ShouldEqual, 0)
	})
}

func TestChatService_SendValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	provider := &fakeProvider{chunks: []string{"ok"}}
	svc := NewChatService(store, store, provider, pubsub.NewMemoryBus(4), nil)

	tests := []struct {
		name   string
		userID string
		req    *model.SendMessageRequest
		want   error
	}{
		{"no user", "", &model.SendMessageRequest{Content: hello()}, ErrUnauthorized},
		{"nil request", owner, nil, ErrInvalidRequest},
		{"empty content array", owner, &model.SendMessageRequest{Content: []model.NewMessage{}}, ErrInvalidRequest},
		{"bad role", owner, &model.SendMessageRequest{Content: []model.NewMessage{{Role: "tool", Content: "x"}}}, ErrInvalidRequest},
		{"blank content", owner, &model.SendMessageRequest{Content: []model.NewMessage{{Role: model.RoleUser}}}, ErrInvalidRequest},
		{"bad conversation id", owner, &model.SendMessageRequest{ConversationID: "abc", Content: hello()}, ErrInvalidRequest},
		{"unknown provider", owner, &model.SendMessageRequest{Content: hello(), Provider: "mistral"}, ErrInvalidRequest},
		{"unknown conversation", owner, &model.SendMessageRequest{ConversationID: id.New(), Content: hello()}, repository.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tt.userID, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Send() error = %v, want %v", err, tt.want)
			}
		})
	}

	svc.Wait()
	if store.appends() != 0 {
		t.Errorf("rejected sends must not write messages, got %d appends", store.appends())
	}
	if provider.callCount() != 0 {
		t.Errorf("rejected sends must not reach the provider, got %d calls", provider.callCount())
	}
}

func TestChatService_Defaults(t *testing.T) {
	Convey("未指定 provider/model 时使用默认值", t, func() {
		store := newMemStore()
		provider := &fakeProvider{chunks: []string{"ok"}}
		svc := NewChatService(store, store, provider, pubsub.NewMemoryBus(4), nil)

		resp, err := svc.Send(context.Background(), owner, &model.SendMessageRequest{Content: hello()})
		So(err, ShouldBeNil)
		svc.Wait()

		msgs := store.messages(resp.ConversationID)
		So(len(msgs), ShouldEqual, 2)
		So(msgs[0].Provider, ShouldEqual, "openai")
		So(msgs[0].Model, ShouldEqual, "gpt-4o")
	})
}
