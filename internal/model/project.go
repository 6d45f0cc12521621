package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Project 项目，用于把对话归组
// 删除项目时其下的对话一并删除
type Project struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	IsArchived  bool      `bson:"is_archived" json:"is_archived"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (p *Project) Collection() string { return "projects" }

// EnsureIndexes 创建和维护索引
func (p *Project) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(p.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "is_archived", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_archived_updated"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// ProjectUpdate 项目的部分更新，nil 字段保持不变
type ProjectUpdate struct {
	Title       *string
	Description *string
	IsArchived  *bool
}

// IsEmpty 没有任何需要更新的字段
func (u ProjectUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.IsArchived == nil
}
