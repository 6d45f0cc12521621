package service

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Krosnoz/dialogue/internal/ai"
	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/pkg/id"
	"github.com/Krosnoz/dialogue/internal/repository"
)

// memStore 内存版对话/消息存储
type memStore struct {
	mu          sync.Mutex
	owners      map[string]string
	titles      map[string]string
	projectOf   map[string]string
	msgs        map[string][]model.Message
	nextID      string
	appendCalls int
	appendErr   func(msgs []model.NewMessage) error
}

func newMemStore() *memStore {
	return &memStore{
		owners: map[string]string{},
		titles:    map[string]string{},
		projectOf: map[string]string{},
		msgs:      map[string][]model.Message{},
	}
}

func (s *memStore) Create(_ context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = s.nextID
		s.nextID = ""
	}
	if conv.ID == "" {
		conv.ID = id.New()
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	s.owners[conv.ID] = conv.UserID
	s.titles[conv.ID] = conv.Title
	s.projectOf[conv.ID] = conv.ProjectID
	return nil
}

func (s *memStore) VerifyAccess(_ context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.owners[conversationID]; !ok || owner != userID {
		return repository.ErrNotFound
	}
	return nil
}

func (s *memStore) FindByID(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	if err := s.VerifyAccess(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation(conversationID), nil
}

func (s *memStore) conversation(conversationID string) *model.Conversation {
	return &model.Conversation{
		ID:        conversationID,
		UserID:    s.owners[conversationID],
		Title:     s.titles[conversationID],
		ProjectID: s.projectOf[conversationID],
	}
}

func (s *memStore) ListByUserID(_ context.Context, userID, projectID string, limit, offset int64) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Conversation{}
	for cid, owner := range s.owners {
		if owner == userID && (projectID == "" || s.projectOf[cid] == projectID) {
			out = append(out, s.conversation(cid))
		}
	}
	if offset >= int64(len(out)) {
		return []*model.Conversation{}, nil
	}
	out = out[offset:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Rename(ctx context.Context, conversationID, userID, title string) error {
	if err := s.VerifyAccess(ctx, conversationID, userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[conversationID] = title
	return nil
}

func (s *memStore) Delete(ctx context.Context, conversationID, userID string) error {
	if err := s.VerifyAccess(ctx, conversationID, userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, conversationID)
	delete(s.msgs, conversationID)
	return nil
}

func (s *memStore) SetProject(ctx context.Context, conversationID, userID, projectID string) (*model.Conversation, error) {
	if err := s.VerifyAccess(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectOf[conversationID] = projectID
	return s.conversation(conversationID), nil
}

func (s *memStore) ClearProject(ctx context.Context, conversationID, userID, projectID string) (*model.Conversation, error) {
	if err := s.VerifyAccess(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectOf[conversationID] != projectID {
		return nil, repository.ErrNotFound
	}
	s.projectOf[conversationID] = ""
	return s.conversation(conversationID), nil
}

func (s *memStore) DeleteByProject(_ context.Context, projectID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for cid, owner := range s.owners {
		if owner == userID && s.projectOf[cid] == projectID {
			delete(s.owners, cid)
			delete(s.msgs, cid)
			n++
		}
	}
	return n, nil
}

func (s *memStore) AppendMessages(_ context.Context, conversationID string, msgs []model.NewMessage, meta model.MessageMeta) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	if _, ok := s.owners[conversationID]; !ok {
		return nil, repository.ErrNotFound
	}
	if s.appendErr != nil {
		if err := s.appendErr(msgs); err != nil {
			return nil, err
		}
	}
	records := repository.BuildMessages(conversationID, msgs, meta, time.Now())
	s.msgs[conversationID] = append(s.msgs[conversationID], records...)
	return records, nil
}

func (s *memStore) ListMessages(_ context.Context, conversationID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[conversationID]; !ok {
		return nil, repository.ErrNotFound
	}
	return append([]model.Message{}, s.msgs[conversationID]...), nil
}

func (s *memStore) messages(conversationID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message{}, s.msgs[conversationID]...)
}

func (s *memStore) appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendCalls
}

// memProjects 内存版项目存储
type memProjects struct {
	mu    sync.Mutex
	items map[string]*model.Project
	order []string
}

func newMemProjects() *memProjects {
	return &memProjects{items: map[string]*model.Project{}}
}

func (r *memProjects) Create(_ context.Context, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = id.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.items[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memProjects) FindByID(_ context.Context, projectID, userID string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[projectID]
	if !ok || p.UserID != userID {
		return nil, repository.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

// ListByUserID 按创建倒序近似更新时间倒序
func (r *memProjects) ListByUserID(_ context.Context, userID string, includeArchived bool, limit int64) ([]*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Project{}
	for i := len(r.order) - 1; i >= 0; i-- {
		p, ok := r.items[r.order[i]]
		if !ok || p.UserID != userID || (p.IsArchived && !includeArchived) {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *memProjects) Update(_ context.Context, projectID, userID string, upd model.ProjectUpdate) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[projectID]
	if !ok || p.UserID != userID {
		return nil, repository.ErrProjectNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.IsArchived != nil {
		p.IsArchived = *upd.IsArchived
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (r *memProjects) Delete(_ context.Context, projectID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[projectID]
	if !ok || p.UserID != userID {
		return repository.ErrProjectNotFound
	}
	delete(r.items, projectID)
	return nil
}

// fakeProvider 按预设片段回放的 Provider
type fakeProvider struct {
	mu         sync.Mutex
	chunks     []string
	failAfter  error
	startErr   error
	panicOn    bool
	block      bool // 不产出任何片段，直到 ctx 结束
	calls      int
	gotHistory []model.Message
	gotAPIKey  bool
}

func (p *fakeProvider) StreamResponse(ctx context.Context, provider, modelID string, history []model.Message, opts ...ai.StreamOption) (*ai.TextStream, error) {
	p.mu.Lock()
	p.calls++
	p.gotHistory = history
	p.gotAPIKey = len(opts) > 0
	chunks, failAfter, startErr, panicOn, block := p.chunks, p.failAfter, p.startErr, p.panicOn, p.block
	p.mu.Unlock()

	if panicOn {
		panic("provider exploded")
	}
	if startErr != nil {
		return nil, startErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(chunks) + 1)
	go func() {
		defer sw.Close()
		if block {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
			return
		}
		for _, c := range chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
		if failAfter != nil {
			sw.Send(nil, failAfter)
		}
	}()
	return ai.NewTextStream(sr, provider, modelID), nil
}

func (p *fakeProvider) history() []model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotHistory
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// collect 读取事件直到终止事件、channel 关闭或超时
func collect(events <-chan model.StreamEvent) []model.StreamEvent {
	var out []model.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
			if model.IsTerminal(ev) {
				return out
			}
		case <-timeout:
			return out
		}
	}
}

func types(events []model.StreamEvent) []model.EventType {
	out := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type())
	}
	return out
}
