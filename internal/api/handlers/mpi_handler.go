package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
)

// maxImageSize caps a single section image upload.
const maxImageSize = 10 << 20

// MPIHandler serves the engineer-facing MPI routes. Every operation is scoped to the caller.
type MPIHandler struct {
	MPIs      *service.MPIService
	Allocator *service.Allocator
	Log       *logger.Logger
}

func (h *MPIHandler) List(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	mpis, err := h.MPIs.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpis)
}

func (h *MPIHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req service.CreateMPIRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	mpi, err := h.MPIs.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, mpi)
}

func (h *MPIHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	mpi, err := h.MPIs.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpi)
}

func (h *MPIHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req service.UpdateMPIRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	mpi, err := h.MPIs.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpi)
}

func (h *MPIHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	if err := h.MPIs.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "MPI deleted successfully"})
}

// UploadSectionImage accepts a multipart "file" field and appends the stored URL to the section.
func (h *MPIHandler) UploadSectionImage(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.Log, apperr.Validation("file is required"))
		return
	}
	if fileHeader.Size > maxImageSize {
		respondError(c, h.Log, apperr.Validation("Image must be at most 10 MB"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.Log, apperr.Internal(err, "Failed to read upload"))
		return
	}
	defer file.Close()

	mpi, err := h.MPIs.AddSectionImage(c.Request.Context(), actor, c.Param("id"), c.Param("sectionId"),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpi)
}

func (h *MPIHandler) NextJobNumber(c *gin.Context) {
	n, err := h.Allocator.NextJobNumber(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobNumber": n})
}

func (h *MPIHandler) NextMpiNumber(c *gin.Context) {
	n, err := h.Allocator.NextMpiNumber(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mpiNumber": n})
}

func (h *MPIHandler) ListDocs(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	docs, err := h.MPIs.ListDocs(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *MPIHandler) ListCustomers(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	customers, err := h.MPIs.ListCustomers(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}
