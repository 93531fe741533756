// internal/api/handlers/respond.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/api/middleware"
	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
	"pcba-mpi-api-server/internal/validation"
)

// respondError writes {"error", "code"} with the status of err's kind. Internal errors are
// logged with their cause and reported without it.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		log.Error("request failed",
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", message,
			"cause", errors.Unwrap(err),
		)
		var e *apperr.Error
		if !errors.As(err, &e) || e.Message == "" {
			message = "Internal server error"
		}
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{"error": message, "code": kind})
}

// bindJSON binds the body into req and writes a validation error on failure.
func bindJSON(c *gin.Context, log *logger.Logger, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, log, apperr.Validation("%s", validation.Message(err)))
		return false
	}
	return true
}

func currentActor(c *gin.Context, log *logger.Logger) (service.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, log, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
	}
	return actor, ok
}
