package analytics

import (
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"pulse/internal/filters"
)

// metaFields maps the metadata filter columns onto the fields of the
// embedded meta array.
var metaFields = map[string]string{
	"tag:key":   "meta.key",
	"tag:value": "meta.value",
	"ev:key":    "meta.key",
	"ev:value":  "meta.value",
}

// UsesCustomEvents reports whether records target custom events rather
// than page views.
func UsesCustomEvents(records []filters.Record) bool {
	for _, rec := range records {
		if rec.Column == "ev" || strings.HasPrefix(rec.Column, "ev:") {
			return true
		}
	}
	return false
}

type condition struct {
	field   string
	metaKey string
	include []string
	exclude []string
}

// BuildMatch returns the $match stage selecting the documents of
// projectID inside r that satisfy every record. Records addressing the
// same field are merged: inclusive values are OR-ed and exclusive values
// are all excluded. Records on unknown columns are ignored.
func BuildMatch(projectID string, records []filters.Record, r Range) bson.D {
	match := bson.D{
		{Key: "pid", Value: projectID},
		{Key: "created", Value: bson.D{{Key: "$gte", Value: r.From}, {Key: "$lt", Value: r.To}}},
	}

	var and bson.A
	for _, c := range conditions(records) {
		if c.metaKey != "" {
			and = append(and, c.metaClauses()...)
			continue
		}
		match = append(match, bson.E{Key: c.field, Value: c.operators()})
	}
	if len(and) > 0 {
		match = append(match, bson.E{Key: "$and", Value: and})
	}

	return match
}

func conditions(records []filters.Record) []*condition {
	var order []string
	byKey := map[string]*condition{}

	for _, rec := range records {
		if !filters.IsColumnValid(rec.Column, true) {
			continue
		}
		values := rec.Filter.NonEmpty()
		if len(values) == 0 {
			continue
		}

		field, metaKey := resolveColumn(rec.Column)
		id := field + "\x00" + metaKey
		c, ok := byKey[id]
		if !ok {
			c = &condition{field: field, metaKey: metaKey}
			byKey[id] = c
			order = append(order, id)
		}

		for _, v := range values {
			if rec.IsExclusive {
				c.exclude = appendUnique(c.exclude, v)
			} else {
				c.include = appendUnique(c.include, v)
			}
		}
	}

	out := make([]*condition, 0, len(order))
	for _, id := range order {
		out = append(out, byKey[id])
	}
	return out
}

func resolveColumn(column string) (field, metaKey string) {
	if key, ok := filters.DynamicKey(column); ok {
		return "meta", key
	}
	if field, ok := metaFields[column]; ok {
		return field, ""
	}
	return column, ""
}

func (c *condition) operators() bson.D {
	var ops bson.D
	if len(c.include) > 0 {
		ops = append(ops, bson.E{Key: "$in", Value: c.include})
	}
	if len(c.exclude) > 0 {
		ops = append(ops, bson.E{Key: "$nin", Value: c.exclude})
	}
	return ops
}

// metaClauses filter on the value stored under one metadata key.
func (c *condition) metaClauses() bson.A {
	var clauses bson.A
	if len(c.include) > 0 {
		clauses = append(clauses, bson.D{{Key: "meta", Value: bson.D{{Key: "$elemMatch", Value: c.elem(c.include)}}}})
	}
	if len(c.exclude) > 0 {
		clauses = append(clauses, bson.D{{Key: "meta", Value: bson.D{
			{Key: "$not", Value: bson.D{{Key: "$elemMatch", Value: c.elem(c.exclude)}}},
		}}})
	}
	return clauses
}

func (c *condition) elem(values []string) bson.D {
	return bson.D{
		{Key: "key", Value: c.metaKey},
		{Key: "value", Value: bson.D{{Key: "$in", Value: values}}},
	}
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
