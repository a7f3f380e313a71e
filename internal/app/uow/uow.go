package uow

import (
	"context"

	domainavailability "stationbeds/internal/domain/availability"
	"stationbeds/internal/domain/site"
	domainstay "stationbeds/internal/domain/stay"
	domainvisit "stationbeds/internal/domain/visit"
)

// UnitOfWork coordinates repositories inside one transaction boundary. The
// admission check and the mutation it guards must run in the same unit.
type UnitOfWork interface {
	Visits() domainvisit.Repository
	Stays() domainstay.Repository
	Counters() domainavailability.CounterRepository

	// Guard claims the write side of the listed sites so that two units
	// mutating the same site cannot both commit.
	Guard(ctx context.Context, sites ...site.Site) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
