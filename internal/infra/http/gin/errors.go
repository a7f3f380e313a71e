package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/domain/shared/daterange"
	"stationbeds/internal/domain/shared/failure"
	domainvisit "stationbeds/internal/domain/visit"
	"stationbeds/internal/infra/obs"
)

// respondError maps engine errors to HTTP statuses. Unknown errors are logged
// and reported without detail.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	if ve, ok := failure.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}
	if ce, ok := failure.AsCapacity(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":     ce.Error(),
			"site":      ce.Site,
			"day":       daterange.FormatDay(ce.Day),
			"requested": ce.Requested,
			"available": ce.Available,
		})
		return
	}
	switch {
	case errors.Is(err, caller.ErrAnonymous):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	case errors.Is(err, caller.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	case failure.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainvisit.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, failure.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification, retry the request"})
	default:
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed",
				slog.String("route", c.FullPath()),
				slog.String("request_id", obs.RequestIDFromContext(c.Request.Context())),
				slog.Any("error", err),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
