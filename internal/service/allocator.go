package service

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/store"
)

// NumberKind selects which MPI identifier to allocate.
type NumberKind int

const (
	JobNumber NumberKind = iota
	MpiNumber
)

const maxClaimAttempts = 5

func (k NumberKind) format(n int) string {
	if k == MpiNumber {
		return fmt.Sprintf("MPI-%06d", n)
	}
	return fmt.Sprintf("U%06d", n)
}

// Numbers carries a claimed pair of identifiers.
type Numbers struct {
	JobNumber string
	MpiNumber string
}

func (n *Numbers) set(kind NumberKind, v string) {
	if kind == MpiNumber {
		n.MpiNumber = v
	} else {
		n.JobNumber = v
	}
}

// Allocator hands out the lowest free job and MPI numbers.
type Allocator struct {
	mpis store.Collection
}

func NewAllocator(db store.Database) *Allocator {
	return &Allocator{mpis: db.Collection(store.MPIs)}
}

// Next returns the first unused value counting up from 1. Nothing is reserved, so two calls
// without an insert in between return the same value.
func (a *Allocator) Next(ctx context.Context, kind NumberKind) (string, error) {
	var rows []struct {
		JobNumber string `bson:"jobNumber"`
		MpiNumber string `bson:"mpiNumber"`
	}
	if err := a.mpis.Find(ctx, bson.M{}, store.FindOptions{}, &rows); err != nil {
		return "", apperr.Internal(err, "Failed to generate number")
	}
	used := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if kind == MpiNumber {
			used[r.MpiNumber] = struct{}{}
		} else {
			used[r.JobNumber] = struct{}{}
		}
	}
	for n := 1; ; n++ {
		v := kind.format(n)
		if _, taken := used[v]; !taken {
			return v, nil
		}
	}
}

func (a *Allocator) NextJobNumber(ctx context.Context) (string, error) {
	return a.Next(ctx, JobNumber)
}

func (a *Allocator) NextMpiNumber(ctx context.Context) (string, error) {
	return a.Next(ctx, MpiNumber)
}

// Claim allocates a value for each kind and hands them to insert. When insert loses a race
// on the unique index it probes again, up to five attempts.
func (a *Allocator) Claim(ctx context.Context, insert func(Numbers) error, kinds ...NumberKind) (Numbers, error) {
	var lastErr error
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var nums Numbers
		for _, kind := range kinds {
			v, err := a.Next(ctx, kind)
			if err != nil {
				return Numbers{}, err
			}
			nums.set(kind, v)
		}
		err := insert(nums)
		if err == nil {
			return nums, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return Numbers{}, err
		}
		lastErr = err
	}
	return Numbers{}, apperr.Wrap(apperr.KindDuplicateKey, lastErr, "Could not allocate a free number, please retry")
}
