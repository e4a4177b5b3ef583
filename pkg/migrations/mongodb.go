package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pulse/internal/constants"
)

// EnsureMongoIndexes creates the indexes used by traffic aggregation and
// project erasure. Existing indexes are left alone.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	eventIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pid", Value: 1}, {Key: "created", Value: -1}},
			Options: options.Index().SetName("idx_pid_created"),
		},
		{
			Keys:    bson.D{{Key: "pid", Value: 1}, {Key: "cc", Value: 1}},
			Options: options.Index().SetName("idx_pid_cc"),
		},
		{
			Keys:    bson.D{{Key: "pid", Value: 1}, {Key: "pg", Value: 1}},
			Options: options.Index().SetName("idx_pid_pg"),
		},
	}

	customEventIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pid", Value: 1}, {Key: "created", Value: -1}},
			Options: options.Index().SetName("idx_pid_created"),
		},
		{
			Keys:    bson.D{{Key: "pid", Value: 1}, {Key: "ev", Value: 1}},
			Options: options.Index().SetName("idx_pid_ev"),
		},
	}

	if err := createIndexes(ctx, db.Collection(constants.CollectionAnalytics), eventIndexes); err != nil {
		return err
	}

	return createIndexes(ctx, db.Collection(constants.CollectionCustomEvents), customEventIndexes)
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection.Name(), err)
	}
	return nil
}
