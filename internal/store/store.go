// Package store is the persistence contract the services are written against.
// The production implementation wraps the MongoDB driver; memstore provides an in-memory
// implementation with the same filter semantics for tests.
package store

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = errors.New("store: document not found")
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Collection names.
const (
	Admins            = "admins"
	Engineers         = "engineers"
	CustomerCompanies = "customercompanies"
	Forms             = "forms"
	DocumentIDs       = "documentids"
	ProcessItems      = "processitems"
	Tasks             = "tasks"
	MPIs              = "mpis"
	Docs              = "docs"
	Customers         = "customers"
)

type FindOptions struct {
	Sort  bson.D
	Limit int64
}

// Collection supports the subset of query operators used by the services:
// equality, $ne, $in, $gt, $regex and dotted array paths in filters; $set (with the positional
// "arr.$.field" form), $unset, $inc, $push ($each/$sort) and $pull in updates.
type Collection interface {
	InsertOne(ctx context.Context, doc interface{}) (primitive.ObjectID, error)
	FindOne(ctx context.Context, filter bson.M, out interface{}) error
	Find(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error
	UpdateOne(ctx context.Context, filter bson.M, update bson.M) (matched int64, err error)
	UpdateMany(ctx context.Context, filter bson.M, update bson.M) (matched int64, err error)
	DeleteOne(ctx context.Context, filter bson.M) (deleted int64, err error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

type Database interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
}

// ExactFold builds a case-insensitive exact-match filter value.
func ExactFold(value string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(value) + "$", Options: "i"}
}
