// Package mongostore implements store.Driver on top of the MongoDB Go driver.
package mongostore

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/simp-lee/hexa/internal/domain"
	"github.com/simp-lee/hexa/internal/pkg"
	"github.com/simp-lee/hexa/internal/store"
)

// idAssigner is implemented by documents embedding domain.DocumentModel.
type idAssigner interface {
	EnsureID() primitive.ObjectID
}

// Driver is a MongoDB-backed store.Driver for documents embedding
// domain.DocumentModel.
type Driver[T any] struct {
	coll *mongo.Collection
}

// NewDriver creates a Driver for T using coll.
func NewDriver[T any](coll *mongo.Collection) *Driver[T] {
	return &Driver[T]{coll: coll}
}

// NewRepository is a shorthand for store.New over a Mongo Driver.
func NewRepository[T any, PT interface {
	*T
	domain.Entity
}](coll *mongo.Collection, opts ...store.Option) *store.Repository[T, PT] {
	return store.New[T, PT](NewDriver[T](coll), opts...)
}

// Find returns the documents matching q.
func (d *Driver[T]) Find(ctx context.Context, q store.Query) ([]T, error) {
	rows := make([]T, 0)
	filter, ok := BuildFilter(q)
	if !ok {
		return rows, nil
	}

	opts := options.Find()
	if sort := BuildSort(q.OrderBy); len(sort) > 0 {
		opts.SetSort(sort)
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := d.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError(err)
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// Count returns the number of documents matching q.
func (d *Driver[T]) Count(ctx context.Context, q store.Query) (int64, error) {
	filter, ok := BuildFilter(q)
	if !ok {
		return 0, nil
	}
	n, err := d.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Insert assigns ObjectIDs to items that have none and inserts them.
func (d *Driver[T]) Insert(ctx context.Context, items []*T) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]any, len(items))
	for i, item := range items {
		if a, ok := any(item).(idAssigner); ok {
			a.EnsureID()
		}
		docs[i] = item
	}
	if len(docs) == 1 {
		_, err := d.coll.InsertOne(ctx, docs[0])
		return mapError(err)
	}
	_, err := d.coll.InsertMany(ctx, docs)
	return mapError(err)
}

// Update applies fields with $set to the active document with the given id
// and returns the document after the update.
func (d *Driver[T]) Update(ctx context.Context, id any, fields map[string]any) (*T, error) {
	oid, ok := ObjectID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	filter := bson.M{"_id": oid}
	addActive(filter)

	set := bson.M{}
	for k, v := range fields {
		if !pkg.ValidFieldName(k) {
			return nil, domain.NewFieldError(domain.CodeValidation, k, "invalid field name")
		}
		set[k] = v
	}

	var out T
	err := d.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// Delete physically removes the document with the given id.
func (d *Driver[T]) Delete(ctx context.Context, id any) (int64, error) {
	oid, ok := ObjectID(id)
	if !ok {
		return 0, nil
	}
	res, err := d.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, mapError(err)
	}
	return res.DeletedCount, nil
}

// BuildFilter translates q into a MongoDB filter document. It reports false
// when q can never match, for example when the id is not a valid ObjectID.
func BuildFilter(q store.Query) (bson.M, bool) {
	filter := bson.M{}
	for k, v := range q.Filters {
		if k == store.FieldID || k == "_id" {
			oid, ok := ObjectID(v)
			if !ok {
				return nil, false
			}
			filter["_id"] = oid
			continue
		}
		if !pkg.ValidFieldName(k) {
			continue
		}
		filter[k] = v
	}

	if len(q.Search) > 0 {
		or := make(bson.A, 0, len(q.Search))
		for _, t := range q.Search {
			if !pkg.ValidFieldName(t.Field) {
				continue
			}
			or = append(or, bson.M{fieldName(t.Field): primitive.Regex{
				Pattern: searchPattern(t.Value, t.Operator),
				Options: "i",
			}})
		}
		if len(or) > 0 {
			filter["$or"] = or
		}
	}

	if q.ActiveOnly {
		addActive(filter)
	}
	return filter, true
}

// BuildSort translates orders into a sort document, preserving their order.
func BuildSort(orders []domain.Order) bson.D {
	var sort bson.D
	for _, o := range orders {
		if !pkg.ValidFieldName(o.Field) {
			continue
		}
		dir := 1
		if o.Direction == domain.SortDesc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: fieldName(o.Field), Value: dir})
	}
	return sort
}

// ObjectID converts id to a primitive.ObjectID. Hex strings are parsed;
// anything else cannot match a document.
func ObjectID(id any) (primitive.ObjectID, bool) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v, !v.IsZero()
	case string:
		oid, err := primitive.ObjectIDFromHex(v)
		return oid, err == nil
	default:
		return primitive.NilObjectID, false
	}
}

func addActive(filter bson.M) {
	filter[store.FieldIsActive] = true
	filter[store.FieldDeletedAt] = nil
}

func fieldName(field string) string {
	if field == store.FieldID {
		return "_id"
	}
	return field
}

func searchPattern(value, operator string) string {
	v := regexp.QuoteMeta(value)
	switch operator {
	case domain.SearchEquals:
		return "^" + v + "$"
	case domain.SearchStartsWith:
		return "^" + v
	case domain.SearchEndsWith:
		return v + "$"
	default:
		return v
	}
}

// mapError converts driver errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}
