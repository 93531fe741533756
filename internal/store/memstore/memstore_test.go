package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/store"
)

type company struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	CompanyName string             `bson:"companyName"`
	City        string             `bson:"city"`
	UsageCount  int                `bson:"usageCount"`
	IsActive    bool               `bson:"isActive"`
}

func seed(t *testing.T, coll store.Collection, names ...string) []primitive.ObjectID {
	t.Helper()
	var ids []primitive.ObjectID
	for _, n := range names {
		id, err := coll.InsertOne(context.Background(), company{CompanyName: n, City: "Austin", IsActive: true})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestInsertAssignsIDAndFindOneDecodes(t *testing.T) {
	db := New()
	coll := db.Collection(store.CustomerCompanies)
	ids := seed(t, coll, "Acme")

	var got company
	require.NoError(t, coll.FindOne(context.Background(), bson.M{"_id": ids[0]}, &got))
	assert.Equal(t, "Acme", got.CompanyName)
	assert.False(t, got.ID.IsZero())

	err := coll.FindOne(context.Background(), bson.M{"companyName": "Nope"}, &got)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUniqueIndexIsCaseInsensitiveAndActiveOnly(t *testing.T) {
	db := New()
	coll := db.Collection(store.CustomerCompanies)
	ids := seed(t, coll, "Acme")

	_, err := coll.InsertOne(context.Background(), company{CompanyName: "ACME", IsActive: true})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	_, err = coll.UpdateOne(context.Background(), bson.M{"_id": ids[0]}, bson.M{"$set": bson.M{"isActive": false}})
	require.NoError(t, err)

	_, err = coll.InsertOne(context.Background(), company{CompanyName: "ACME", IsActive: true})
	assert.NoError(t, err)
}

func TestUpdateRejectsCollision(t *testing.T) {
	db := New()
	coll := db.Collection(store.CustomerCompanies)
	ids := seed(t, coll, "Acme", "Globex")

	_, err := coll.UpdateOne(context.Background(), bson.M{"_id": ids[1]}, bson.M{"$set": bson.M{"companyName": "acme"}})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	matched, err := coll.UpdateOne(context.Background(), bson.M{"_id": ids[0]}, bson.M{"$set": bson.M{"companyName": "ACME"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)
}

func TestFilterOperatorsAndSort(t *testing.T) {
	db := New()
	coll := db.Collection(store.CustomerCompanies)
	ids := seed(t, coll, "beta", "Alpha", "Gamma")

	var all []company
	require.NoError(t, coll.Find(context.Background(), bson.M{}, store.FindOptions{Sort: bson.D{{Key: "companyName", Value: 1}}}, &all))
	require.Len(t, all, 3)
	// Binary ordering: upper case sorts before lower case.
	assert.Equal(t, []string{"Alpha", "Gamma", "beta"}, []string{all[0].CompanyName, all[1].CompanyName, all[2].CompanyName})

	var notFirst []company
	require.NoError(t, coll.Find(context.Background(), bson.M{"_id": bson.M{"$ne": ids[0]}}, store.FindOptions{}, &notFirst))
	assert.Len(t, notFirst, 2)

	var in []company
	require.NoError(t, coll.Find(context.Background(), bson.M{"companyName": bson.M{"$in": []string{"Alpha", "Gamma"}}}, store.FindOptions{}, &in))
	assert.Len(t, in, 2)

	n, err := coll.CountDocuments(context.Background(), bson.M{"companyName": store.ExactFold("GAMMA")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var limited []company
	require.NoError(t, coll.Find(context.Background(), bson.M{}, store.FindOptions{Sort: bson.D{{Key: "companyName", Value: -1}}, Limit: 1}, &limited))
	require.Len(t, limited, 1)
	assert.Equal(t, "beta", limited[0].CompanyName)
}

func TestIncAndPush(t *testing.T) {
	db := New()
	coll := db.Collection("things")
	id, err := coll.InsertOne(context.Background(), bson.M{"count": 1, "tags": bson.A{"a"}})
	require.NoError(t, err)

	_, err = coll.UpdateOne(context.Background(), bson.M{"_id": id}, bson.M{
		"$inc":  bson.M{"count": 2},
		"$push": bson.M{"tags": "b"},
	})
	require.NoError(t, err)

	var got struct {
		Count int      `bson:"count"`
		Tags  []string `bson:"tags"`
	}
	require.NoError(t, coll.FindOne(context.Background(), bson.M{"_id": id}, &got))
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestDeleteAndFailNext(t *testing.T) {
	db := New()
	coll := db.Collection(store.CustomerCompanies)
	ids := seed(t, coll, "Acme", "Globex")

	boom := errors.New("boom")
	db.FailNext(store.CustomerCompanies, OpDelete, boom)
	_, err := coll.DeleteOne(context.Background(), bson.M{"_id": ids[0]})
	assert.ErrorIs(t, err, boom)

	deleted, err := coll.DeleteOne(context.Background(), bson.M{"_id": ids[0]})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.Equal(t, 1, db.Len(store.CustomerCompanies))
}

type item struct {
	ID    string `bson:"id"`
	Title string `bson:"title"`
	Order int    `bson:"order"`
}

func TestArrayOperators(t *testing.T) {
	ctx := context.Background()
	db := New()
	coll := db.Collection("categories")
	id, err := coll.InsertOne(ctx, bson.M{"name": "SMT", "note": "x", "steps": []item{{ID: "a", Title: "A", Order: 0}}})
	require.NoError(t, err)

	_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push":  bson.M{"steps": bson.M{"$each": []item{{ID: "b", Title: "B", Order: -1}}, "$sort": bson.D{{Key: "order", Value: 1}}}},
		"$unset": bson.M{"note": ""},
	})
	require.NoError(t, err)

	matched, err := coll.UpdateOne(ctx, bson.M{"_id": id, "steps.id": "a"}, bson.M{"$set": bson.M{"steps.$.title": "A2"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)

	var got struct {
		Note  *string `bson:"note"`
		Steps []item  `bson:"steps"`
	}
	require.NoError(t, coll.FindOne(ctx, bson.M{"_id": id}, &got))
	assert.Nil(t, got.Note)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "b", got.Steps[0].ID)
	assert.Equal(t, "A2", got.Steps[1].Title)

	_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"steps": bson.M{"id": "b"}}})
	require.NoError(t, err)
	require.NoError(t, coll.FindOne(ctx, bson.M{"_id": id}, &got))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "a", got.Steps[0].ID)

	matched, err = coll.UpdateOne(ctx, bson.M{"_id": id, "steps.id": "b"}, bson.M{"$set": bson.M{"steps.$.title": "gone"}})
	require.NoError(t, err)
	assert.Zero(t, matched)
}

func TestUpdateManyAndRangeFilter(t *testing.T) {
	ctx := context.Background()
	db := New()
	coll := db.Collection(store.CustomerCompanies)
	ids := seed(t, coll, "Acme", "Globex", "Initech")

	_, err := coll.UpdateOne(ctx, bson.M{"_id": ids[0]}, bson.M{"$inc": bson.M{"usageCount": 2}})
	require.NoError(t, err)

	n, err := coll.CountDocuments(ctx, bson.M{"usageCount": bson.M{"$gt": 0}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	matched, err := coll.UpdateMany(ctx, bson.M{"city": "Austin"}, bson.M{"$set": bson.M{"city": "Dallas"}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, matched)
	n, err = coll.CountDocuments(ctx, bson.M{"city": "Dallas"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
