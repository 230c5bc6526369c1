package middleware

import (
	"context"

	"resort/internal/app/queries"
	"resort/internal/app/uow"
)

// ReadOnlyQueries runs every query inside one read-only unit of work so a handler that
// reads several times sees a single snapshot. Handlers join it through uow.Run.
func ReadOnlyQueries(factory uow.UoWFactory) QueryMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			var res any
			err := uow.Run(ctx, factory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = next.Ask(ctx, q)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
