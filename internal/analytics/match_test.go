package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"pulse/internal/filters"
)

func TestBuildMatch(t *testing.T) {
	r := Range{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
	}
	base := bson.D{
		{Key: "pid", Value: "p1"},
		{Key: "created", Value: bson.D{{Key: "$gte", Value: r.From}, {Key: "$lt", Value: r.To}}},
	}
	with := func(extra ...bson.E) bson.D {
		return append(append(bson.D{}, base...), extra...)
	}

	tests := []struct {
		name    string
		records []filters.Record
		want    bson.D
	}{
		{name: "no filters", want: base},
		{
			name: "same column values are merged",
			records: []filters.Record{
				{Column: "cc", Filter: filters.Values{"US"}},
				{Column: "cc", Filter: filters.Values{"CA"}},
				{Column: "cc", Filter: filters.Values{"DE"}, IsExclusive: true},
			},
			want: with(bson.E{Key: "cc", Value: bson.D{
				{Key: "$in", Value: []string{"US", "CA"}},
				{Key: "$nin", Value: []string{"DE"}},
			}}),
		},
		{
			name: "unknown columns and empty values are ignored",
			records: []filters.Record{
				{Column: "xx", Filter: filters.Values{"1"}},
				{Column: "br", Filter: filters.Values{""}},
			},
			want: base,
		},
		{
			name:    "metadata column",
			records: []filters.Record{{Column: "tag:value", Filter: filters.Values{"pro"}}},
			want:    with(bson.E{Key: "meta.value", Value: bson.D{{Key: "$in", Value: []string{"pro"}}}}),
		},
		{
			name: "dynamic metadata key",
			records: []filters.Record{
				{Column: "ev:key:plan", Filter: filters.Values{"pro", "team"}},
				{Column: "ev:key:plan", Filter: filters.Values{"free"}, IsExclusive: true},
			},
			want: with(bson.E{Key: "$and", Value: bson.A{
				bson.D{{Key: "meta", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
					{Key: "key", Value: "plan"},
					{Key: "value", Value: bson.D{{Key: "$in", Value: []string{"pro", "team"}}}},
				}}}}},
				bson.D{{Key: "meta", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
					{Key: "key", Value: "plan"},
					{Key: "value", Value: bson.D{{Key: "$in", Value: []string{"free"}}}},
				}}}}}}},
			}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildMatch("p1", tt.records, r))
		})
	}
}

func TestUsesCustomEvents(t *testing.T) {
	assert.False(t, UsesCustomEvents([]filters.Record{{Column: "cc"}}))
	assert.True(t, UsesCustomEvents([]filters.Record{{Column: "ev"}}))
	assert.True(t, UsesCustomEvents([]filters.Record{{Column: "cc"}, {Column: "ev:key:plan"}}))
	assert.False(t, UsesCustomEvents([]filters.Record{{Column: "tag:key"}}))
}
