package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/repository"
)

// recentProjectsLimit 最近项目列表的条数
const recentProjectsLimit = 5

// ProjectRepository 项目管理所需的存储能力
type ProjectRepository interface {
	ProjectLookup
	ListByUserID(ctx context.Context, userID string, includeArchived bool, limit int64) ([]*model.Project, error)
	Update(ctx context.Context, projectID, userID string, upd model.ProjectUpdate) (*model.Project, error)
	Delete(ctx context.Context, projectID, userID string) error
}

// ProjectConversations 删除项目时级联清理对话
type ProjectConversations interface {
	DeleteByProject(ctx context.Context, projectID, userID string) (int64, error)
}

var (
	_ ProjectRepository    = (*repository.ProjectRepo)(nil)
	_ ProjectConversations = (*repository.ConversationRepo)(nil)
)

// ProjectService 项目管理
type ProjectService struct {
	repo  ProjectRepository
	convs ProjectConversations
}

// NewProjectService 创建项目管理服务
func NewProjectService(repo ProjectRepository, convs ProjectConversations) *ProjectService {
	return &ProjectService{repo: repo, convs: convs}
}

// Create 创建项目
func (s *ProjectService) Create(ctx context.Context, userID string, req *model.CreateProjectRequest) (*model.Project, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	p, err := newProject(userID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get 获取项目
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.FindByID(ctx, projectID, userID)
}

// List 列出用户的项目，默认不含已归档项目
func (s *ProjectService) List(ctx context.Context, userID string, includeArchived bool) ([]*model.Project, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByUserID(ctx, userID, includeArchived, 0)
}

// ListRecent 最近更新的几个未归档项目
func (s *ProjectService) ListRecent(ctx context.Context, userID string) ([]*model.Project, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByUserID(ctx, userID, false, recentProjectsLimit)
}

// Update 重命名、修改描述或归档
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, req *model.UpdateProjectRequest) (*model.Project, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if req == nil {
		return nil, fmt.Errorf("%w: empty update", ErrInvalidRequest)
	}

	upd := model.ProjectUpdate{Description: req.Description, IsArchived: req.IsArchived}
	if req.Title != nil {
		title, err := normalizeProjectTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if upd.IsEmpty() {
		return nil, fmt.Errorf("%w: empty update", ErrInvalidRequest)
	}
	return s.repo.Update(ctx, projectID, userID, upd)
}

// Delete 删除项目及其下全部对话
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if _, err := s.repo.FindByID(ctx, projectID, userID); err != nil {
		return err
	}
	if _, err := s.convs.DeleteByProject(ctx, projectID, userID); err != nil {
		return fmt.Errorf("delete project conversations: %w", err)
	}
	return s.repo.Delete(ctx, projectID, userID)
}

func newProject(userID string, req *model.CreateProjectRequest) (*model.Project, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	title, err := normalizeProjectTitle(req.Title)
	if err != nil {
		return nil, err
	}
	return &model.Project{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
	}, nil
}

func normalizeProjectTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title must be 1-255 characters", ErrInvalidRequest)
	}
	return title, nil
}
