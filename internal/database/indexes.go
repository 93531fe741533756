package database

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pcba-mpi-api-server/internal/store"
)

// IndexModel builds the driver index for spec. Case-insensitive indexes use an English
// strength-2 collation, active-only indexes a partial filter on isActive.
func IndexModel(spec store.IndexSpec) mongo.IndexModel {
	keys := bson.D{}
	for _, f := range spec.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	opts := options.Index().
		SetUnique(true).
		SetName(spec.Collection + "_" + strings.Join(spec.Fields, "_") + "_unique")
	if spec.CaseInsensitive {
		opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
	}
	if spec.ActiveOnly {
		opts.SetPartialFilterExpression(bson.M{"isActive": true})
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

// EnsureIndexes creates every unique index. Creating an existing identical index is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, spec := range store.UniqueIndexes {
		if _, err := db.Collection(spec.Collection).Indexes().CreateOne(ctx, IndexModel(spec)); err != nil {
			return fmt.Errorf("create index on %s(%s): %w", spec.Collection, strings.Join(spec.Fields, ","), err)
		}
	}
	return nil
}
