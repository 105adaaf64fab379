package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueryBuilder is a small fluent wrapper over one collection.
type QueryBuilder struct {
	collection *mongo.Collection
	filter     bson.M
	sort       bson.D
	limit      *int64
	projection bson.M
}

func (c *Client) NewQuery(collectionName string) *QueryBuilder {
	return &QueryBuilder{
		collection: c.Collection(collectionName),
		filter:     bson.M{},
	}
}

func (q *QueryBuilder) Eq(field string, value interface{}) *QueryBuilder {
	q.filter[field] = value
	return q
}

func (q *QueryBuilder) Select(fields ...string) *QueryBuilder {
	q.projection = bson.M{}
	for _, field := range fields {
		q.projection[field] = 1
	}
	return q
}

func (q *QueryBuilder) Limit(limit int64) *QueryBuilder {
	q.limit = &limit
	return q
}

func (q *QueryBuilder) Sort(field string, ascending bool) *QueryBuilder {
	direction := 1
	if !ascending {
		direction = -1
	}
	q.sort = append(q.sort, bson.E{Key: field, Value: direction})
	return q
}

// All decodes every match into out, which must be a pointer to a slice.
func (q *QueryBuilder) All(ctx context.Context, out interface{}) error {
	opts := options.Find()
	if q.limit != nil {
		opts.SetLimit(*q.limit)
	}
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	if len(q.projection) > 0 {
		opts.SetProjection(q.projection)
	}

	cursor, err := q.collection.Find(ctx, q.filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}

// Each streams matches to fn one document at a time.
func (q *QueryBuilder) Each(ctx context.Context, fn func(cur *mongo.Cursor) error) error {
	opts := options.Find()
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}

	cursor, err := q.collection.Find(ctx, q.filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		if err := fn(cursor); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// One decodes the first match into out. It reports false when nothing matched.
func (q *QueryBuilder) One(ctx context.Context, out interface{}) (bool, error) {
	opts := options.FindOne()
	if len(q.projection) > 0 {
		opts.SetProjection(q.projection)
	}
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}

	err := q.collection.FindOne(ctx, q.filter, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Replace overwrites the matching document with doc, inserting it when absent.
func (q *QueryBuilder) Replace(ctx context.Context, doc interface{}) (*mongo.UpdateResult, error) {
	return q.collection.ReplaceOne(ctx, q.filter, doc, options.Replace().SetUpsert(true))
}

// Upsert applies $set and, on insert only, $setOnInsert.
func (q *QueryBuilder) Upsert(ctx context.Context, set, setOnInsert bson.M) (*mongo.UpdateResult, error) {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(setOnInsert) > 0 {
		update["$setOnInsert"] = setOnInsert
	}
	return q.collection.UpdateOne(ctx, q.filter, update, options.Update().SetUpsert(true))
}

// Swap replaces the matching document and returns the one it replaced, or
// false when there was none.
func (q *QueryBuilder) Swap(ctx context.Context, doc interface{}, previous interface{}) (bool, error) {
	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	err := q.collection.FindOneAndReplace(ctx, q.filter, doc, opts).Decode(previous)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert adds doc as a new document.
func (q *QueryBuilder) Insert(ctx context.Context, doc interface{}) error {
	_, err := q.collection.InsertOne(ctx, doc)
	return err
}

// Delete removes the first matching document. No match is not an error.
func (q *QueryBuilder) Delete(ctx context.Context) error {
	_, err := q.collection.DeleteOne(ctx, q.filter)
	return err
}
