package middleware

import (
	"context"

	"stationbeds/internal/app/commands"
	"stationbeds/internal/app/queries"
)

// Authorizer decides whether the caller in ctx may send message.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

func mustAuthorizer(a Authorizer) Authorizer {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return a
}

// Authorization runs outermost, before any validation or storage work.
func Authorization(a Authorizer) CommandMiddleware {
	a = mustAuthorizer(a)
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	a = mustAuthorizer(a)
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
