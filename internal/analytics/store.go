// Package analytics reads and erases the page view and custom event
// documents collected for projects.
package analytics

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pulse/internal/constants"
	"pulse/internal/filters"
	"pulse/pkg/metrics"
)

// Point is the number of documents in one time bucket.
type Point struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}

type Traffic struct {
	Range        Range   `json:"range"`
	CustomEvents bool    `json:"customEvents"`
	Total        int64   `json:"total"`
	Points       []Point `json:"points"`
}

type Store interface {
	Traffic(ctx context.Context, projectID string, records []filters.Record, r Range) (*Traffic, error)
	DeleteByProjects(ctx context.Context, projectIDs []string) error
}

type MongoStore struct {
	analytics    *mongo.Collection
	customEvents *mongo.Collection
}

func NewStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		analytics:    db.Collection(constants.CollectionAnalytics),
		customEvents: db.Collection(constants.CollectionCustomEvents),
	}
}

type bucketCount struct {
	Time  time.Time `bson:"_id"`
	Count int64     `bson:"count"`
}

// Traffic counts the documents matching records per time bucket. Buckets
// without documents are reported with a zero count.
func (s *MongoStore) Traffic(ctx context.Context, projectID string, records []filters.Record, r Range) (_ *Traffic, err error) {
	defer observe("traffic", time.Now(), &err)

	custom := UsesCustomEvents(records)
	collection := s.analytics
	if custom {
		collection = s.customEvents
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: BuildMatch(projectID, records, r)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateTrunc", Value: bson.D{
				{Key: "date", Value: "$created"},
				{Key: "unit", Value: r.Bucket},
				{Key: "timezone", Value: "UTC"},
				{Key: "startOfWeek", Value: "sunday"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate traffic: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []bucketCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode traffic: %w", err)
	}

	points := fillBuckets(r, counts)
	traffic := &Traffic{Range: r, CustomEvents: custom, Points: points}
	for _, p := range points {
		traffic.Total += p.Count
	}
	return traffic, nil
}

func fillBuckets(r Range, counts []bucketCount) []Point {
	byTime := make(map[time.Time]int64, len(counts))
	for _, c := range counts {
		byTime[c.Time.UTC()] += c.Count
	}

	points := []Point{}
	for t := truncate(r.From, r.Bucket); t.Before(r.To); t = next(t, r.Bucket) {
		points = append(points, Point{Time: t, Count: byTime[t]})
	}
	return points
}

// DeleteByProjects removes the page views and custom events of projectIDs.
func (s *MongoStore) DeleteByProjects(ctx context.Context, projectIDs []string) (err error) {
	if len(projectIDs) == 0 {
		return nil
	}
	defer observe("delete_by_projects", time.Now(), &err)

	filter := bson.M{"pid": bson.M{"$in": projectIDs}}
	if _, err := s.analytics.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete analytics: %w", err)
	}
	if _, err := s.customEvents.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete custom events: %w", err)
	}
	return nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery("api-service", "mongodb", operation, time.Since(start), *err)
}
