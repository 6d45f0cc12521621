package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxTitleLength   = 255
)

// ConversationRepository 对话管理所需的存储能力
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	VerifyAccess(ctx context.Context, conversationID, userID string) error
	ListByUserID(ctx context.Context, userID, projectID string, limit, offset int64) ([]*model.Conversation, error)
	Rename(ctx context.Context, conversationID, userID, title string) error
	Delete(ctx context.Context, conversationID, userID string) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	SetProject(ctx context.Context, conversationID, userID, projectID string) (*model.Conversation, error)
	ClearProject(ctx context.Context, conversationID, userID, projectID string) (*model.Conversation, error)
}

// ProjectLookup 对话归组时需要的项目能力
type ProjectLookup interface {
	Create(ctx context.Context, p *model.Project) error
	FindByID(ctx context.Context, projectID, userID string) (*model.Project, error)
}

var (
	_ ConversationRepository = (*repository.ConversationRepo)(nil)
	_ ProjectLookup          = (*repository.ProjectRepo)(nil)
)

// ConversationService 对话管理，所有操作都按调用方做归属校验
type ConversationService struct {
	repo     ConversationRepository
	projects ProjectLookup
}

// NewConversationService 创建对话管理服务
func NewConversationService(repo ConversationRepository, projects ProjectLookup) *ConversationService {
	return &ConversationService{repo: repo, projects: projects}
}

// Create 创建对话
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	conv := &model.Conversation{UserID: userID}
	if req != nil {
		title := strings.TrimSpace(req.Title)
		if len(title) > maxTitleLength {
			return nil, fmt.Errorf("%w: title is too long", ErrInvalidRequest)
		}
		conv.Title = title
		if req.ProjectID != "" {
			if _, err := s.writableProject(ctx, userID, req.ProjectID); err != nil {
				return nil, err
			}
			conv.ProjectID = req.ProjectID
		}
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get 获取对话
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	conv, err := s.repo.FindByID(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.ProjectID != "" {
		// 项目可能已被删除，标题缺失不影响返回
		if p, err := s.projects.FindByID(ctx, conv.ProjectID, userID); err == nil {
			conv.ProjectTitle = p.Title
		}
	}
	return conv, nil
}

// List 分页列出用户的对话，projectID 为空时返回全部
func (s *ConversationService) List(ctx context.Context, userID, projectID string, limit, offset int64) ([]*model.Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUserID(ctx, userID, projectID, limit, offset)
}

// Rename 重命名
func (s *ConversationService) Rename(ctx context.Context, userID, conversationID, title string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return fmt.Errorf("%w: title must be 1-255 characters", ErrInvalidRequest)
	}
	return s.repo.Rename(ctx, conversationID, userID, title)
}

// Delete 删除对话及其消息
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	return s.repo.Delete(ctx, conversationID, userID)
}

// Messages 按创建顺序返回对话消息
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	if err := s.VerifyAccess(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID)
}

// VerifyAccess 校验调用方是否拥有该对话
func (s *ConversationService) VerifyAccess(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	return s.repo.VerifyAccess(ctx, conversationID, userID)
}

// AddToProject 把对话移入调用方的项目
func (s *ConversationService) AddToProject(ctx context.Context, userID, conversationID, projectID string) (*model.Conversation, error) {
	if err := s.VerifyAccess(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if _, err := s.writableProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.repo.SetProject(ctx, conversationID, userID, projectID)
}

// RemoveFromProject 把对话移出指定项目
func (s *ConversationService) RemoveFromProject(ctx context.Context, userID, conversationID, projectID string) (*model.Conversation, error) {
	if err := s.VerifyAccess(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}
	return s.repo.ClearProject(ctx, conversationID, userID, projectID)
}

// CreateProjectWithConversation 新建项目并把对话移入
func (s *ConversationService) CreateProjectWithConversation(ctx context.Context, userID, conversationID string, req *model.CreateProjectRequest) (*model.ProjectWithConversationResponse, error) {
	if err := s.VerifyAccess(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	p, err := newProject(userID, req)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	conv, err := s.repo.SetProject(ctx, conversationID, userID, p.ID)
	if err != nil {
		return nil, err
	}
	return &model.ProjectWithConversationResponse{Project: p, Conversation: conv}, nil
}

// writableProject 项目必须属于调用方且未归档
func (s *ConversationService) writableProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived {
		return nil, fmt.Errorf("%w: project is archived", ErrInvalidRequest)
	}
	return p, nil
}
