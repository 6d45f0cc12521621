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

// ErrNotFound 对话不存在或不属于当前用户
var ErrNotFound = errors.New("conversation not found")

// ConversationCollection 对话集合名
var ConversationCollection = (&model.Conversation{}).Collection()

// ConversationRepo 对话仓库
// 消息内嵌在对话文档中，追加使用单文档更新，MongoDB 保证其原子性
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection(ConversationCollection),
	}
}

// Create 创建对话
func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	now := time.Now()
	if conv.ID == "" {
		conv.ID = id.New()
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}

	_, err := r.collection.InsertOne(ctx, conv)
	return err
}

// FindByID 根据 ID 查询（不含消息）
func (r *ConversationRepo) FindByID(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	opts := options.FindOne().SetProjection(bson.M{"messages": 0})

	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"_id": conversationID, "user_id": userID}, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// VerifyAccess 校验对话属于该用户，否则返回 ErrNotFound
func (r *ConversationRepo) VerifyAccess(ctx context.Context, conversationID, userID string) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": conversationID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUserID 查询用户对话列表，projectID 非空时只返回该项目下的对话
func (r *ConversationRepo) ListByUserID(ctx context.Context, userID, projectID string, limit, offset int64) ([]*model.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset).
		SetProjection(bson.M{"messages": 0})

	filter := bson.M{"user_id": userID}
	if projectID != "" {
		filter["project_id"] = projectID
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []*model.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}

	return convs, nil
}

// Rename 重命名对话
func (r *ConversationRepo) Rename(ctx context.Context, conversationID, userID, title string) error {
	update := bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": conversationID, "user_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除对话及其消息
func (r *ConversationRepo) Delete(ctx context.Context, conversationID, userID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": conversationID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProject 把对话移入项目，返回更新后的对话（不含消息）
func (r *ConversationRepo) SetProject(ctx context.Context, conversationID, userID, projectID string) (*model.Conversation, error) {
	update := bson.M{"$set": bson.M{"project_id": projectID, "updated_at": time.Now()}}
	return r.findAndUpdate(ctx, bson.M{"_id": conversationID, "user_id": userID}, update)
}

// ClearProject 把对话移出项目，对话当前不在该项目下时返回 ErrNotFound
func (r *ConversationRepo) ClearProject(ctx context.Context, conversationID, userID, projectID string) (*model.Conversation, error) {
	update := bson.M{
		"$unset": bson.M{"project_id": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}
	return r.findAndUpdate(ctx, bson.M{"_id": conversationID, "user_id": userID, "project_id": projectID}, update)
}

// DeleteByProject 删除项目下的全部对话，返回删除数量
func (r *ConversationRepo) DeleteByProject(ctx context.Context, projectID, userID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"project_id": projectID, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *ConversationRepo) findAndUpdate(ctx context.Context, filter, update bson.M) (*model.Conversation, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"messages": 0})

	var conv model.Conversation
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessages 批量追加消息，全部成功或全部失败
// 返回与输入一一对应的记录，并刷新对话的 updated_at
func (r *ConversationRepo) AppendMessages(ctx context.Context, conversationID string, msgs []model.NewMessage, meta model.MessageMeta) ([]model.Message, error) {
	if len(msgs) == 0 {
		return []model.Message{}, nil
	}

	records := BuildMessages(conversationID, msgs, meta, time.Now())

	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": records}},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	res, err := r.collection.UpdateByID(ctx, conversationID, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// ListMessages 按创建顺序返回对话的全部消息
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	opts := options.FindOne().SetProjection(bson.M{"messages": 1})

	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"_id": conversationID}, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if conv.Messages == nil {
		return []model.Message{}, nil
	}
	return conv.Messages, nil
}

// BuildMessages 为待写入消息生成 ID 与时间戳
// 同一批次内时间戳按毫秒递增（MongoDB 时间精度为毫秒），与数组顺序一致
func BuildMessages(conversationID string, msgs []model.NewMessage, meta model.MessageMeta, now time.Time) []model.Message {
	records := make([]model.Message, 0, len(msgs))
	for i, m := range msgs {
		ts := now.Add(time.Duration(i) * time.Millisecond)
		records = append(records, model.Message{
			ID:             id.New(),
			ConversationID: conversationID,
			Role:           m.Role,
			Content:        m.Content,
			Provider:       meta.Provider,
			Model:          meta.Model,
			CreatedAt:      ts,
			UpdatedAt:      ts,
		})
	}
	return records
}
