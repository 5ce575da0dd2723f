package keywords

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "keywords"

type keywordDoc struct {
	Keyword   string `bson:"_id"`
	Count     int    `bson:"count"`
	UpdatedAt int64  `bson:"updatedAt"`
}

// MongoStore keeps one document per keyword.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{collection: client.Database(dbName).Collection(mongoCollection)}
}

func ConnectMongo(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *MongoStore) Load(ctx context.Context) (map[string]int, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo find keywords: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int)
	for cursor.Next(ctx) {
		var doc keywordDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode keyword: %w", err)
		}
		counts[doc.Keyword] = doc.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo iterate keywords: %w", err)
	}
	return counts, nil
}

// Save upserts every count. Keywords are never pruned, so absent documents
// need no deletion.
func (s *MongoStore) Save(ctx context.Context, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	now := time.Now().Unix()
	models := make([]mongo.WriteModel, 0, len(counts))
	for keyword, count := range counts {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": keyword}).
			SetUpdate(bson.M{"$set": bson.M{"count": count, "updatedAt": now}}).
			SetUpsert(true))
	}
	if _, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo save keywords: %w", err)
	}
	return nil
}

func (s *MongoStore) Increment(ctx context.Context, keyword string) error {
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updatedAt": time.Now().Unix()},
	}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": keyword}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo increment keyword: %w", err)
	}
	return nil
}
