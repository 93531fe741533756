// internal/api/handlers/registry_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/service"
)

// Creator turns a create payload into a new record.
type Creator[T any] interface {
	Model() (*T, error)
}

// Updater applies the fields present in an update payload.
type Updater[T any] interface {
	Apply(*T) error
}

// RegistryHandler serves list/get/create/update/delete for one reference entity.
// C and U are the create and update payload types.
type RegistryHandler[C Creator[T], U Updater[T], T any, PT interface {
	*T
	models.Record
}] struct {
	Registry *service.Registry[T, PT]
	Log      *logger.Logger
	// IncludeInactive makes List return soft-deleted rows too (admin views).
	IncludeInactive bool
}

func NewRegistryHandler[C Creator[T], U Updater[T], T any, PT interface {
	*T
	models.Record
}](registry *service.Registry[T, PT], log *logger.Logger, includeInactive bool) *RegistryHandler[C, U, T, PT] {
	return &RegistryHandler[C, U, T, PT]{Registry: registry, Log: log, IncludeInactive: includeInactive}
}

// Register mounts the five routes on g.
func (h *RegistryHandler[C, U, T, PT]) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *RegistryHandler[C, U, T, PT]) List(c *gin.Context) {
	items, err := h.Registry.List(c.Request.Context(), h.IncludeInactive)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *RegistryHandler[C, U, T, PT]) Get(c *gin.Context) {
	item, err := h.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *RegistryHandler[C, U, T, PT]) Create(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req C
	if !bindJSON(c, h.Log, &req) {
		return
	}
	rec, err := req.Model()
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	created, err := h.Registry.Create(c.Request.Context(), actor, rec)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *RegistryHandler[C, U, T, PT]) Update(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req U
	if !bindJSON(c, h.Log, &req) {
		return
	}
	updated, err := h.Registry.Update(c.Request.Context(), actor, c.Param("id"), func(rec *T) error {
		return req.Apply(rec)
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *RegistryHandler[C, U, T, PT]) Delete(c *gin.Context) {
	if err := h.Registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.Registry.Name() + " deleted successfully"})
}
