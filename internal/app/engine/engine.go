// Package engine assembles the command and query buses of the reservation
// engine from storage-agnostic ports.
package engine

import (
	"log/slog"

	"stationbeds/internal/app/caller"
	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/dto"
	availabilityapp "stationbeds/internal/app/handlers/availability"
	staysapp "stationbeds/internal/app/handlers/stays"
	"stationbeds/internal/app/handlers/support"
	visitsapp "stationbeds/internal/app/handlers/visits"
	"stationbeds/internal/app/middleware"
	"stationbeds/internal/app/outbox"
	"stationbeds/internal/app/policies"
	"stationbeds/internal/app/queries"
	"stationbeds/internal/app/uow"
	domainavailability "stationbeds/internal/domain/availability"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

type Deps struct {
	UoW         uow.UoWFactory
	Outbox      outbox.Outbox
	Idempotency middleware.IdempotencyStore
	Notifier    policies.Notifier
	Settings    domainavailability.Settings
	Clock       support.Clock
	NewVisitID  func() domainvisit.ID
	NewStayID   domainstay.IDGenerator
	Logger      *slog.Logger
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
	// Keys lists the registered command keys.
	Keys []string
}

// Build registers every handler and wraps the buses. Commands pass, outermost
// first, through authorization, validation, idempotency, the outbox flush and
// the transaction, so staged records are published only after commit.
func Build(d Deps) Buses {
	if d.UoW == nil || d.Outbox == nil {
		panic("engine: unit of work factory and outbox required")
	}
	encoder := outbox.JSONEventEncoder{}
	logger := d.Logger

	commandBus := commands.NewInMemoryBus()
	commands.Register[visitsapp.RequestVisitCommand, *dto.Visit](commandBus, &visitsapp.RequestVisitHandler{
		Settings: d.Settings,
		Outbox:   d.Outbox,
		Encoder:  encoder,
		Clock:    d.Clock,
		NewID:    d.NewVisitID,
		NewStay:  d.NewStayID,
		Logger:   logger,
	})
	commands.Register[visitsapp.DecideVisitCommand, *dto.Visit](commandBus, &visitsapp.DecideVisitHandler{
		Notifier: d.Notifier,
		Outbox:   d.Outbox,
		Encoder:  encoder,
		Clock:    d.Clock,
		Logger:   logger,
	})
	commands.Register[visitsapp.CancelVisitCommand, *dto.Visit](commandBus, &visitsapp.CancelVisitHandler{
		Outbox:  d.Outbox,
		Encoder: encoder,
		Clock:   d.Clock,
		Logger:  logger,
	})
	commands.Register[visitsapp.AssignOccupantCommand, *dto.StayCollection](commandBus, &visitsapp.AssignOccupantHandler{
		Settings: d.Settings,
		Outbox:   d.Outbox,
		Encoder:  encoder,
		Clock:    d.Clock,
		NewID:    d.NewStayID,
		Logger:   logger,
	})
	commands.Register[staysapp.BookStayCommand, *dto.BookResult](commandBus, &staysapp.BookStayHandler{
		Settings: d.Settings,
		Outbox:   d.Outbox,
		Encoder:  encoder,
		Clock:    d.Clock,
		NewID:    d.NewStayID,
		Logger:   logger,
	})
	commands.Register[staysapp.ReleaseStayCommand, *dto.ReleaseResult](commandBus, &staysapp.ReleaseStayHandler{
		Settings: d.Settings,
		Outbox:   d.Outbox,
		Encoder:  encoder,
		Clock:    d.Clock,
		NewID:    d.NewStayID,
		Logger:   logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.Register[visitsapp.GetVisitQuery, *dto.Visit](queryBus, &visitsapp.GetVisitHandler{UoWFactory: d.UoW})
	queries.Register[visitsapp.ListVisitsQuery, *dto.VisitCollection](queryBus, &visitsapp.ListVisitsHandler{UoWFactory: d.UoW})
	queries.Register[staysapp.ListStaysQuery, *dto.StayCollection](queryBus, &staysapp.ListStaysHandler{UoWFactory: d.UoW})
	queries.Register[availabilityapp.GetFeedQuery, *dto.Feed](queryBus, &availabilityapp.GetFeedHandler{
		UoWFactory: d.UoW,
		Settings:   d.Settings,
	})
	queries.Register[availabilityapp.ReconcileQuery, *dto.Reconciliation](queryBus, &availabilityapp.ReconcileHandler{
		UoWFactory: d.UoW,
		Settings:   d.Settings,
		Logger:     logger,
	})

	authorizer := caller.RoleAuthorizer{}
	validator := middleware.MessageValidator{}
	cmdChain := []middleware.CommandMiddleware{
		middleware.Authorization(authorizer),
		middleware.Validation(validator),
	}
	if d.Idempotency != nil {
		cmdChain = append(cmdChain, middleware.Idempotency(d.Idempotency, nil))
	}
	cmdChain = append(cmdChain,
		middleware.OutboxFlush(d.Outbox),
		middleware.Transaction(d.UoW, nil),
	)

	return Buses{
		Commands: middleware.ChainCommands(commandBus, cmdChain...),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryAuthorization(authorizer),
			middleware.QueryValidation(validator),
		),
		Keys: commandBus.Keys(),
	}
}
