package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	staysapp "stationbeds/internal/app/handlers/stays"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/domain/site"
	domainvisit "stationbeds/internal/domain/visit"
)

type StayHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type bookStayRequest struct {
	VisitID    string            `json:"visit_id"`
	Site       string            `json:"site"`
	Occupant   string            `json:"occupant"`
	Arrival    string            `json:"arrival"`
	Departure  string            `json:"departure"`
	Attributes attributesRequest `json:"attributes"`
}

func (h StayHandler) Book(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var req bookStayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := site.Parse(req.Site)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	occupant, err := parseOccupant("occupant", req.Occupant)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	r, err := parseRange("arrival", req.Arrival, "departure", req.Departure)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := staysapp.BookStayCommand{
		VisitID:         domainvisit.ID(req.VisitID),
		Site:            s,
		Occupant:        occupant,
		Range:           r,
		Attributes:      req.Attributes.toDomain(),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[staysapp.BookStayCommand, *dto.BookResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type releaseStayRequest struct {
	VisitID  string `json:"visit_id"`
	Site     string `json:"site"`
	Occupant string `json:"occupant"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

func (h StayHandler) Release(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var req releaseStayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := site.Parse(req.Site)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	occupant, err := parseOccupant("occupant", req.Occupant)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	window, err := parseRange("start", req.Start, "end", req.End)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := staysapp.ReleaseStayCommand{VisitID: domainvisit.ID(req.VisitID), Site: s, Occupant: occupant, Window: window}
	result, err := commands.Dispatch[staysapp.ReleaseStayCommand, *dto.ReleaseResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h StayHandler) List(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	q := staysapp.ListStaysQuery{VisitID: domainvisit.ID(c.Query("visit_id"))}
	result, err := queries.Ask[staysapp.ListStaysQuery, *dto.StayCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ StayHTTP = StayHandler{}
