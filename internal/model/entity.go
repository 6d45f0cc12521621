package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid 检查角色是否有效
func (r Role) IsValid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// String 返回角色字符串
func (r Role) String() string {
	return string(r)
}

// Conversation 对话实体
// ID使用UUID格式（string），消息以内嵌数组保存，随对话一起删除
type Conversation struct {
	ID        string `bson:"_id" json:"id"`
	UserID    string `bson:"user_id" json:"user_id"`
	ProjectID string `bson:"project_id,omitempty" json:"project_id,omitempty"`
	Title     string `bson:"title,omitempty" json:"title,omitempty"`
	// ProjectTitle 仅在查询详情时填充，不落库
	ProjectTitle string    `bson:"-" json:"project_title,omitempty"`
	Messages     []Message `bson:"messages" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (c *Conversation) Collection() string { return "conversations" }

// EnsureIndexes 创建和维护索引
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_updated"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "project_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_project_updated"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Message 消息
// ParentID 和 Embedding 为预留字段，当前流程不会写入
type Message struct {
	ID             string    `bson:"id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	ParentID       string    `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Role           Role      `bson:"role" json:"role"`
	Content        string    `bson:"content" json:"content"`
	Provider       string    `bson:"provider,omitempty" json:"provider,omitempty"`
	Model          string    `bson:"model,omitempty" json:"model,omitempty"`
	Embedding      []float32 `bson:"embedding,omitempty" json:"embedding,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// NewMessage 待写入的消息（角色 + 内容）
type NewMessage struct {
	Role    Role   `json:"role" binding:"required"`
	Content string `json:"content" binding:"required,min=1"`
}

// MessageMeta 写入消息时附带的 provider/model 标签
type MessageMeta struct {
	Provider string
	Model    string
}
