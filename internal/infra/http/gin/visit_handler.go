package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	visitsapp "stationbeds/internal/app/handlers/visits"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

type VisitHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type requestVisitRequest struct {
	Site       string            `json:"site"`
	Requester  string            `json:"requester"`
	Beds       int               `json:"beds"`
	Arrival    string            `json:"arrival"`
	Departure  string            `json:"departure"`
	Attributes attributesRequest `json:"attributes"`
	Notes      string            `json:"notes"`
	Approve    bool              `json:"approve"`
}

func (h VisitHandler) Request(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var req requestVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := site.Parse(req.Site)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	window, err := parseRange("arrival", req.Arrival, "departure", req.Departure)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := visitsapp.RequestVisitCommand{
		Site:            s,
		Requester:       req.Requester,
		Beds:            req.Beds,
		Window:          window,
		Attributes:      req.Attributes.toDomain(),
		Notes:           req.Notes,
		Approve:         req.Approve,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[visitsapp.RequestVisitCommand, *dto.Visit](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h VisitHandler) List(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var filter domainvisit.ListFilter
	if raw := c.Query("site"); raw != "" {
		s, err := site.Parse(raw)
		if err != nil {
			respondError(c, h.Logger, err)
			return
		}
		filter.Site = s
	}
	if raw := c.Query("state"); raw != "" {
		st, err := domainvisit.ParseState(raw)
		if err != nil {
			respondError(c, h.Logger, err)
			return
		}
		filter.State = st
	}
	result, err := queries.Ask[visitsapp.ListVisitsQuery, *dto.VisitCollection](c.Request.Context(), h.Queries, visitsapp.ListVisitsQuery{Filter: filter})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h VisitHandler) Get(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	q := visitsapp.GetVisitQuery{ID: domainvisit.ID(c.Param("id"))}
	result, err := queries.Ask[visitsapp.GetVisitQuery, *dto.Visit](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type decideVisitRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (h VisitHandler) Decide(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var req decideVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := visitsapp.DecideVisitCommand{
		VisitID:  domainvisit.ID(c.Param("id")),
		Decision: domainvisit.State(strings.ToUpper(strings.TrimSpace(req.Decision))),
		Notes:    req.Notes,
	}
	result, err := commands.Dispatch[visitsapp.DecideVisitCommand, *dto.Visit](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelVisitRequest struct {
	Reason string `json:"reason"`
}

func (h VisitHandler) Cancel(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var req cancelVisitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	cmd := visitsapp.CancelVisitCommand{VisitID: domainvisit.ID(c.Param("id")), Reason: req.Reason}
	result, err := commands.Dispatch[visitsapp.CancelVisitCommand, *dto.Visit](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type assignOccupantRequest struct {
	Placeholder string `json:"placeholder"`
	Person      string `json:"person"`
}

func (h VisitHandler) AssignOccupant(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	var req assignOccupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	placeholder := strings.TrimSpace(req.Placeholder)
	if !strings.Contains(placeholder, ":") {
		placeholder = string(domainstay.KindUnknown) + ":" + placeholder
	}
	ph, err := parseOccupant("placeholder", placeholder)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := visitsapp.AssignOccupantCommand{VisitID: domainvisit.ID(c.Param("id")), Placeholder: ph, Person: req.Person}
	result, err := commands.Dispatch[visitsapp.AssignOccupantCommand, *dto.StayCollection](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ VisitHTTP = VisitHandler{}
