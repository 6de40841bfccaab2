package repository

import (
	"context"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoNotificationEventRepository implements NotificationEventRepository
type MongoNotificationEventRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationEventRepository creates the audit log repository
func NewMongoNotificationEventRepository(db *mongo.Database) repository.NotificationEventRepository {
	collection := db.Collection("notification_events")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Timeline of a journey
	journeyIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "journeyId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}

	// Lookups by user
	userIndex := mongo.IndexModel{
		Keys: bson.M{"userId": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{journeyIndex, userIndex})

	return &MongoNotificationEventRepository{
		collection: collection,
	}
}

// Append inserts a new audit record. Records are never updated.
func (r *MongoNotificationEventRepository) Append(ctx context.Context, event *entity.NotificationEvent) error {
	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to append notification event: %w", err)
	}
	return nil
}

// FindByJourney returns the newest audit records of a journey
func (r *MongoNotificationEventRepository) FindByJourney(ctx context.Context, journeyID string, limit int) ([]*entity.NotificationEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"journeyId": journeyID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*entity.NotificationEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
