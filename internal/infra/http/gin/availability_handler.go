package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stationbeds/internal/app/dto"
	availabilityapp "stationbeds/internal/app/handlers/availability"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/domain/site"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Feed(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	s, err := site.Parse(c.Param("site"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	r, err := parseRange("from", c.Query("from"), "to", c.Query("to"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	result, err := queries.Ask[availabilityapp.GetFeedQuery, *dto.Feed](c.Request.Context(), h.Queries, availabilityapp.GetFeedQuery{Site: s, Range: r})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Reconcile(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	s, err := site.Parse(c.Param("site"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	r, err := parseRange("from", c.Query("from"), "to", c.Query("to"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	result, err := queries.Ask[availabilityapp.ReconcileQuery, *dto.Reconciliation](c.Request.Context(), h.Queries, availabilityapp.ReconcileQuery{Site: s, Range: r})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
