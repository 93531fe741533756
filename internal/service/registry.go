package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/cache"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/store"
)

type DeletePolicy int

const (
	SoftDelete DeletePolicy = iota
	HardDelete
)

// RegistrySpec describes one reference-data entity.
type RegistrySpec[T any] struct {
	// Name is used in client-facing messages, e.g. "Customer company".
	Name       string
	Collection string
	// KeyFields are the bson names of the natural key, in the order Key returns them.
	KeyFields []string
	Key       func(*T) []interface{}
	SortField string
	Validate  func(*T) error
	Delete    DeletePolicy
	// CanDelete may refuse a delete, e.g. with HasDependents.
	CanDelete func(context.Context, *T) error
	// Prepare runs before create and update, after Validate.
	Prepare func(context.Context, Actor, *T) error
	// AfterCreate runs once the record is stored. Failures there are the hook's to log.
	AfterCreate func(context.Context, *T)
	// AfterUpdate and AfterDelete run once the change is stored, like AfterCreate.
	AfterUpdate func(ctx context.Context, prev, cur *T)
	AfterDelete func(context.Context, *T)
	// Derived names bson fields Update never writes back, e.g. counters kept with $inc.
	Derived []string
}

// Registry implements list/get/create/update/delete for a reference entity.
type Registry[T any, PT interface {
	*T
	models.Record
}] struct {
	spec  RegistrySpec[T]
	coll  store.Collection
	cache cache.Cache
	log   *logger.Logger
	now   func() time.Time
}

func NewRegistry[T any, PT interface {
	*T
	models.Record
}](db store.Database, c cache.Cache, log *logger.Logger, spec RegistrySpec[T]) *Registry[T, PT] {
	return &Registry[T, PT]{
		spec:  spec,
		coll:  db.Collection(spec.Collection),
		cache: c,
		log:   log.With("registry", spec.Collection),
		now:   utcNow,
	}
}

func (r *Registry[T, PT]) Name() string { return r.spec.Name }

func (r *Registry[T, PT]) cacheKey(includeInactive bool) string {
	if includeInactive {
		return "registry:" + r.spec.Collection + ":all"
	}
	return "registry:" + r.spec.Collection + ":active"
}

func (r *Registry[T, PT]) invalidate(ctx context.Context) {
	if err := r.cache.Delete(ctx, r.cacheKey(false), r.cacheKey(true)); err != nil {
		r.log.Warn("cache invalidation failed", "error", err)
	}
}

// List returns records sorted by the natural key. Inactive rows are included only on request.
func (r *Registry[T, PT]) List(ctx context.Context, includeInactive bool) ([]T, error) {
	key := r.cacheKey(includeInactive)
	if raw, ok, err := r.cache.Get(ctx, key); err != nil {
		r.log.Warn("cache read failed", "error", err)
	} else if ok {
		var cached []T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	filter := bson.M{"isActive": true}
	if includeInactive {
		filter = bson.M{}
	}
	var out []T
	opts := store.FindOptions{Sort: bson.D{{Key: r.spec.SortField, Value: 1}}}
	if err := r.coll.Find(ctx, filter, opts, &out); err != nil {
		return nil, apperr.Internal(err, fmt.Sprintf("Failed to fetch %ss", strings.ToLower(r.spec.Name)))
	}
	if out == nil {
		out = []T{}
	}
	if raw, err := json.Marshal(out); err == nil {
		if err := r.cache.Set(ctx, key, raw); err != nil {
			r.log.Warn("cache write failed", "error", err)
		}
	}
	return out, nil
}

// Get returns the record whether or not it is active.
func (r *Registry[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	rec := new(T)
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}, rec); err != nil {
		return nil, storeErr(err, r.spec.Name+" not found", "", "Failed to fetch "+strings.ToLower(r.spec.Name))
	}
	return rec, nil
}

func (r *Registry[T, PT]) Create(ctx context.Context, actor Actor, rec *T) (*T, error) {
	if err := r.spec.Validate(rec); err != nil {
		return nil, err
	}
	if r.spec.Prepare != nil {
		if err := r.spec.Prepare(ctx, actor, rec); err != nil {
			return nil, err
		}
	}
	p := PT(rec)
	p.SetID(primitive.NilObjectID)
	p.SetActive(true)
	p.Stamp(r.now())

	if err := r.checkDuplicate(ctx, rec, false); err != nil {
		return nil, err
	}
	id, err := r.coll.InsertOne(ctx, rec)
	if err != nil {
		return nil, storeErr(err, "", r.duplicateMessage(), "Failed to create "+strings.ToLower(r.spec.Name))
	}
	p.SetID(id)
	r.invalidate(ctx)
	if r.spec.AfterCreate != nil {
		r.spec.AfterCreate(ctx, rec)
	}
	return rec, nil
}

// Update loads the record, applies the change and writes back every field except the
// derived ones. A collision with the record itself is not a duplicate.
func (r *Registry[T, PT]) Update(ctx context.Context, actor Actor, id string, apply func(*T) error) (*T, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := *rec
	if err := apply(rec); err != nil {
		return nil, err
	}
	if err := r.spec.Validate(rec); err != nil {
		return nil, err
	}
	if r.spec.Prepare != nil {
		if err := r.spec.Prepare(ctx, actor, rec); err != nil {
			return nil, err
		}
	}
	p := PT(rec)
	p.Stamp(r.now())
	oid := p.GetID()
	if err := r.checkDuplicate(ctx, rec, true); err != nil {
		return nil, err
	}

	update, err := updateDoc(rec, r.spec.Derived...)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to encode "+strings.ToLower(r.spec.Name))
	}
	matched, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return nil, storeErr(err, r.spec.Name+" not found", r.duplicateMessage(), "Failed to update "+strings.ToLower(r.spec.Name))
	}
	if matched == 0 {
		return nil, apperr.NotFound("%s not found", r.spec.Name)
	}
	r.invalidate(ctx)
	if r.spec.AfterUpdate != nil {
		r.spec.AfterUpdate(ctx, &prev, rec)
	}
	return rec, nil
}

func (r *Registry[T, PT]) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.spec.CanDelete != nil {
		if err := r.spec.CanDelete(ctx, rec); err != nil {
			return err
		}
	}
	oid := PT(rec).GetID()

	switch r.spec.Delete {
	case SoftDelete:
		_, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"isActive": false, "updatedAt": r.now()}})
	default:
		_, err = r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	}
	if err != nil {
		return apperr.Internal(err, "Failed to delete "+strings.ToLower(r.spec.Name))
	}
	r.invalidate(ctx)
	if r.spec.AfterDelete != nil {
		r.spec.AfterDelete(ctx, rec)
	}
	return nil
}

// checkDuplicate is the friendly fast path; the unique index is what actually guards the key.
func (r *Registry[T, PT]) checkDuplicate(ctx context.Context, rec *T, excludeSelf bool) error {
	filter := bson.M{"isActive": true}
	for i, v := range r.spec.Key(rec) {
		if s, ok := v.(string); ok {
			filter[r.spec.KeyFields[i]] = store.ExactFold(s)
		} else {
			filter[r.spec.KeyFields[i]] = v
		}
	}
	if excludeSelf {
		filter["_id"] = bson.M{"$ne": PT(rec).GetID()}
	}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return apperr.Internal(err, "Failed to check for duplicates")
	}
	if count > 0 {
		return apperr.Duplicate("%s", r.duplicateMessage())
	}
	return nil
}

func (r *Registry[T, PT]) duplicateMessage() string {
	return r.spec.Name + " already exists"
}
