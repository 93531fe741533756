package service

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pcba-mpi-api-server/internal/cache"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/store/memstore"
)

type fixture struct {
	db         *memstore.DB
	logs       *observer.ObservedLogs
	log        *logger.Logger
	registries *Registries
	alloc      *Allocator
	mpis       *MPIService
	notifier   *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := logger.FromCore(core)
	db := memstore.New()
	alloc := NewAllocator(db)
	notifier := &recordingNotifier{}
	return &fixture{
		db:         db,
		logs:       logs,
		log:        log,
		registries: NewRegistries(db, cache.NewMemory(), log),
		alloc:      alloc,
		mpis:       NewMPIService(db, alloc, nil, notifier, log),
		notifier:   notifier,
	}
}

func engineer(name string) Actor {
	return Actor{ID: primitive.NewObjectID(), Role: models.RoleEngineer, FullName: name}
}

func admin() Actor {
	return Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin, FullName: "Admin"}
}

type sentEvent struct {
	userID  string
	payload interface{}
}

type recordingNotifier struct {
	sent []sentEvent
}

func (r *recordingNotifier) SendToUser(userID string, payload interface{}) bool {
	r.sent = append(r.sent, sentEvent{userID: userID, payload: payload})
	return true
}

func strPtr(s string) *string { return &s }
