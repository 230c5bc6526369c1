package uow

import "context"

type ctxKey struct{}

// ContextWithUnitOfWork stores the unit of work in ctx so nested calls join it.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext returns the unit of work joined by the caller, if any.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}

// Run executes fn inside the unit of work found in ctx, or inside a new one begun from factory.
// A unit begun here is committed when fn succeeds and rolled back otherwise; read-only units are
// always rolled back. A joined unit is left to its owner.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := ctx
	if injector, ok := unit.(ContextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(context.WithoutCancel(execCtx))
		}
	}()

	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}
