package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
)

// CategoryStepHandler manages the steps embedded in a process-item category.
type CategoryStepHandler struct {
	Categories *service.CategoryService
	Log        *logger.Logger
}

func (h *CategoryStepHandler) Register(g *gin.RouterGroup) {
	g.POST("/:id/steps", h.AddStep)
	g.PUT("/:id/steps/:stepId", h.UpdateStep)
	g.DELETE("/:id/steps/:stepId", h.DeleteStep)
}

func (h *CategoryStepHandler) AddStep(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req service.StepRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	category, err := h.Categories.AddStep(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *CategoryStepHandler) UpdateStep(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req service.StepUpdateRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	category, err := h.Categories.UpdateStep(c.Request.Context(), actor, c.Param("id"), c.Param("stepId"), req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *CategoryStepHandler) DeleteStep(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	category, err := h.Categories.DeleteStep(c.Request.Context(), actor, c.Param("id"), c.Param("stepId"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, category)
}
