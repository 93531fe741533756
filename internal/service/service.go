// Package service holds the business rules. Handlers call services; services call the store.
package service

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/store"
)

// Actor is the authenticated caller, taken from the token claims.
type Actor struct {
	ID       primitive.ObjectID
	Role     string
	FullName string
	Email    string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// ModelName is the createdByModel value recorded for records the actor creates.
func (a Actor) ModelName() string {
	if a.IsAdmin() {
		return "Admin"
	}
	return "Engineer"
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid ID format")
	}
	return oid, nil
}

// updateDoc renders v as a $set/$unset update without its _id. Fields tagged omitempty that
// encode to nothing are unset so a cleared value does not leave the stored one behind. Fields
// named in skip are left to their own targeted writes.
func updateDoc(v interface{}, skip ...string) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	delete(set, "_id")
	for _, f := range skip {
		delete(set, f)
	}

	unset := bson.M{}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("bson")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" || name == "_id" || !strings.Contains(opts, "omitempty") {
			continue
		}
		if _, ok := set[name]; ok || slices.Contains(skip, name) {
			continue
		}
		unset[name] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update, nil
}

// storeErr maps store sentinel errors to service errors.
func storeErr(err error, notFound, duplicate, internal string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("%s", notFound)
	case errors.Is(err, store.ErrDuplicateKey):
		return apperr.Wrap(apperr.KindDuplicateKey, err, duplicate)
	default:
		return apperr.Internal(err, internal)
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func utcNow() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
