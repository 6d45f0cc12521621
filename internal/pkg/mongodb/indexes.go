package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Krosnoz/dialogue/internal/model"
)

// EnsureIndexes 创建所有模型的索引
// 在应用启动时调用，模型需实现 Model 接口
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models := []Model{
		&model.Conversation{},
		&model.Project{},
	}

	return EnsureAllIndexes(ctx, db, models...)
}
