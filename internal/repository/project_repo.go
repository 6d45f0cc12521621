package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/pkg/id"
)

// ErrProjectNotFound 项目不存在或不属于当前用户
var ErrProjectNotFound = errors.New("project not found")

// ProjectCollection 项目集合名
var ProjectCollection = (&model.Project{}).Collection()

// ProjectRepo 项目仓库
type ProjectRepo struct {
	collection *mongo.Collection
}

// NewProjectRepo 创建项目仓库
func NewProjectRepo(db *mongo.Database) *ProjectRepo {
	return &ProjectRepo{
		collection: db.Collection(ProjectCollection),
	}
}

// Create 创建项目
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	now := time.Now()
	if p.ID == "" {
		p.ID = id.New()
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, p)
	return err
}

// FindByID 根据 ID 查询用户的项目
func (r *ProjectRepo) FindByID(ctx context.Context, projectID, userID string) (*model.Project, error) {
	var p model.Project
	err := r.collection.FindOne(ctx, bson.M{"_id": projectID, "user_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUserID 按最近更新倒序列出项目，limit 为 0 表示不限制
func (r *ProjectRepo) ListByUserID(ctx context.Context, userID string, includeArchived bool, limit int64) ([]*model.Project, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	filter := bson.M{"user_id": userID}
	if !includeArchived {
		filter["is_archived"] = false
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	projects := []*model.Project{}
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Update 部分更新项目并返回更新后的文档
func (r *ProjectRepo) Update(ctx context.Context, projectID, userID string, upd model.ProjectUpdate) (*model.Project, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.IsArchived != nil {
		set["is_archived"] = *upd.IsArchived
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p model.Project
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": projectID, "user_id": userID}, bson.M{"$set": set}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete 删除项目文档，对话由调用方先行清理
func (r *ProjectRepo) Delete(ctx context.Context, projectID, userID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": projectID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrProjectNotFound
	}
	return nil
}
