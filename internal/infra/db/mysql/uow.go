package mysql

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	appoutbox "resort/internal/app/outbox"
	"resort/internal/app/uow"
	"resort/internal/domain/booking"
)

var ErrUnitOfWorkNotConfigured = errors.New("mysql: unit of work factory missing database")

// Factory opens serializable transactions. A unit begun with TxOptions.LockUnit holds the
// chalet row lock until it finishes, so two writers never check the same calendar at once.
type Factory struct {
	DB *gorm.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: opts.ReadOnly}
	if opts.ReadOnly {
		txOpts.Isolation = sql.LevelRepeatableRead
	}
	tx := f.DB.WithContext(ctx).Begin(txOpts)
	if tx.Error != nil {
		return nil, mapError(tx.Error)
	}
	store := &Store{db: tx, readOnly: opts.ReadOnly}
	if opts.LockUnit != "" && !opts.ReadOnly {
		if err := store.lockUnit(ctx, opts.LockUnit); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	return &Unit{tx: tx, store: store, outbox: &OutboxStore{db: tx, readOnly: opts.ReadOnly}}, nil
}

type Unit struct {
	tx     *gorm.DB
	store  *Store
	outbox *OutboxStore
}

func (u *Unit) Reservations() booking.Store { return u.store }

func (u *Unit) Outbox() appoutbox.Outbox { return u.outbox }

func (u *Unit) Commit(context.Context) error {
	return mapError(u.tx.Commit().Error)
}

func (u *Unit) Rollback(context.Context) error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
