package uow

import (
	"context"
	"errors"

	"resort/internal/app/outbox"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
)

var ErrReadOnly = errors.New("uow: write attempted in a read-only unit of work")

// UnitOfWork scopes the reservation store and the outbox to one transaction.
type UnitOfWork interface {
	Reservations() booking.Store
	Outbox() outbox.Outbox

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
	// LockUnit asks factories that serialize per unit to hold that unit until Commit or Rollback.
	// Factories relying on store constraints ignore it.
	LockUnit chalet.ID
}

// ContextInjector is implemented by units whose driver carries the transaction in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
