package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "resort/internal/app/outbox"
	"resort/internal/app/uow"
	"resort/internal/domain/booking"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface. Overlapping
// bookings are caught by the booking_nights key, so TxOptions.LockUnit is not needed here.
type Factory struct {
	DB *mongo.Database
}

// Begin starts a snapshot transaction on a fresh session.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	store := NewStore(f.DB)
	store.readOnly = opts.ReadOnly
	box := NewOutboxStore(f.DB)
	box.readOnly = opts.ReadOnly
	return &Unit{session: session, store: store, outbox: box}, nil
}

type Unit struct {
	session mongo.Session
	store   *Store
	outbox  *OutboxStore
}

func (u *Unit) Reservations() booking.Store { return u.store }

func (u *Unit) Outbox() appoutbox.Outbox { return u.outbox }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return mapWriteError(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
