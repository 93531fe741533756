package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/export"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves the admin-only engineer management and MPI review routes.
type AdminHandler struct {
	Credentials *service.CredentialService
	MPIs        *service.MPIService
	Log         *logger.Logger
}

type engineerStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func (h *AdminHandler) ListEngineers(c *gin.Context) {
	engineers, err := h.Credentials.ListEngineers(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, engineers)
}

func (h *AdminHandler) SetEngineerStatus(c *gin.Context) {
	var req engineerStatusRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	engineer, err := h.Credentials.SetEngineerActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, engineer)
}

func (h *AdminHandler) DeleteEngineer(c *gin.Context) {
	if err := h.Credentials.DeleteEngineer(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Engineer deleted successfully"})
}

// ListMPIs returns every MPI, optionally filtered by ?status=.
func (h *AdminHandler) ListMPIs(c *gin.Context) {
	mpis, err := h.MPIs.AdminList(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpis)
}

func (h *AdminHandler) GetMPI(c *gin.Context) {
	mpi, err := h.MPIs.AdminGet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpi)
}

func (h *AdminHandler) SetMPIStatus(c *gin.Context) {
	var req service.StatusRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	mpi, err := h.MPIs.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, mpi)
}

// ExportMPIs streams the MPI register as an .xlsx attachment.
func (h *AdminHandler) ExportMPIs(c *gin.Context) {
	entries, err := h.MPIs.RegisterEntries(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteMPIRegister(&buf, entries); err != nil {
		respondError(c, h.Log, apperr.Internal(err, "Failed to export MPIs"))
		return
	}
	filename := fmt.Sprintf("mpi-register-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *AdminHandler) ReconcileMPIs(c *gin.Context) {
	report, err := h.MPIs.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
