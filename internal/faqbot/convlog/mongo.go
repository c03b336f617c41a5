package convlog

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/faqbot/internal/model"
)

// MongoRecorder 基于 MongoDB 的对话日志实现。
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Recorder = (*MongoRecorder)(nil)

// NewMongoRecorder 连接 MongoDB 并创建对话日志。
// 启动时建立 business_id 与 timestamp 的复合索引供统计查询使用。
func NewMongoRecorder(ctx context.Context, uri, database, collection string) (*MongoRecorder, error) {
	client, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("convlog: connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("convlog: ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "business_id", Value: 1},
			{Key: "timestamp", Value: -1},
		},
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("convlog: create index: %w", err)
	}

	return &MongoRecorder{client: client, collection: coll}, nil
}

// Log 写入一条对话记录，自动填充 ULID 与时间戳。
func (r *MongoRecorder) Log(ctx context.Context, record *model.ConversationRecord) error {
	if record.ID == "" {
		record.ID = ulid.Make().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("convlog: insert record: %w", err)
	}
	return nil
}

// Analytics 聚合单个商家的对话统计。
func (r *MongoRecorder) Analytics(ctx context.Context, businessID string, recentLimit int) (*model.Analytics, error) {
	filter := bson.M{"business_id": businessID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("convlog: count documents: %w", err)
	}

	voice, err := r.collection.CountDocuments(ctx, bson.M{
		"business_id": businessID,
		"query_type":  model.QueryTypeVoice,
	})
	if err != nil {
		return nil, fmt.Errorf("convlog: count voice queries: %w", err)
	}

	users, err := r.collection.Distinct(ctx, "user_id", filter)
	if err != nil {
		return nil, fmt.Errorf("convlog: distinct users: %w", err)
	}

	if recentLimit <= 0 {
		recentLimit = 10
	}
	findOpts := mongoopts.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(recentLimit))

	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("convlog: find recent: %w", err)
	}
	defer cursor.Close(ctx)

	var recent []model.ConversationRecord
	if err := cursor.All(ctx, &recent); err != nil {
		return nil, fmt.Errorf("convlog: decode recent: %w", err)
	}

	return &model.Analytics{
		BusinessID:     businessID,
		TotalQueries:   total,
		VoiceQueries:   voice,
		UniqueUsers:    int64(len(users)),
		RecentActivity: recent,
	}, nil
}

// Close 断开 MongoDB 连接。
func (r *MongoRecorder) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
