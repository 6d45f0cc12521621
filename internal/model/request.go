package model

// SendMessageRequest 发送消息请求
// ConversationID 为空表示为本次发送新建对话
type SendMessageRequest struct {
	ConversationID string       `json:"conversationId,omitempty"`
	Content        []NewMessage `json:"content" binding:"omitempty,dive"`
	Provider       string       `json:"provider,omitempty"`
	Model          string       `json:"model,omitempty"`
	APIKey         string       `json:"apiKey,omitempty"`
}

// CreateConversationRequest 创建对话请求
type CreateConversationRequest struct {
	Title     string `json:"title,omitempty" binding:"omitempty,max=255"`
	ProjectID string `json:"project_id,omitempty"`
}

// RenameConversationRequest 重命名对话请求
type RenameConversationRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255"`
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest 更新项目请求（重命名、修改描述、归档）
type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	IsArchived  *bool   `json:"is_archived,omitempty"`
}

// MoveConversationRequest 把对话加入项目
type MoveConversationRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}
