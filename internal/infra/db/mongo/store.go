package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"resort/internal/app/uow"
	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
)

// Server signals for two transactions touching the same document.
const (
	writeConflictCode = 112
	transientTxnLabel = "TransientTransactionError"
)

// Store reads and writes reservation data. Calls made with a session context from
// Unit.InjectContext run inside that unit's transaction.
type Store struct {
	db       *mongo.Database
	readOnly bool
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) PutChalet(ctx context.Context, c *chalet.Chalet) error {
	doc := newChaletDocument(c)
	_, err := s.col(colChalets).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) PutRateRule(ctx context.Context, r rates.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	doc := newRateRuleDocument(r)
	_, err := s.col(colRateRules).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) PutAddOn(ctx context.Context, a addons.AddOn) error {
	doc := newAddOnDocument(a)
	_, err := s.col(colAddOns).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) PutSettings(ctx context.Context, cfg settings.Settings) error {
	doc := newSettingsDocument(cfg)
	_, err := s.col(colSettings).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) UnitByID(ctx context.Context, id chalet.ID) (*chalet.Chalet, error) {
	var doc chaletDocument
	if err := s.col(colChalets).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", booking.ErrUnitNotFound, id)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) ActiveRateRules(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]rates.Rule, error) {
	lastNight := dr.CheckOut.AddDate(0, 0, -1)
	filter := bson.M{
		"active":     true,
		"unit_id":    bson.M{"$in": []string{"", string(unitID)}},
		"start_date": bson.M{"$lte": lastNight},
		"end_date":   bson.M{"$gte": dr.CheckIn},
	}
	cur, err := s.col(colRateRules).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []rateRuleDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]rates.Rule, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	slices.SortFunc(out, rates.Compare)
	return out, nil
}

func (s *Store) AddOnsByIDs(ctx context.Context, ids []addons.ID) ([]addons.AddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	cur, err := s.col(colAddOns).Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, err
	}
	var docs []addOnDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	byID := make(map[addons.ID]addons.AddOn, len(docs))
	for _, d := range docs {
		byID[addons.ID(d.ID)] = d.toDomain()
	}
	out := make([]addons.AddOn, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", addons.ErrNotFound, id)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) Settings(ctx context.Context) (settings.Settings, error) {
	var doc settingsDocument
	if err := s.col(colSettings).FindOne(ctx, bson.M{"_id": settingsID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return settings.Default(), nil
		}
		return settings.Settings{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) ActiveBookingsForUnit(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]*booking.Booking, error) {
	filter := bson.M{
		"unit_id":    string(unitID),
		"deleted_at": nil,
		"status":     bson.M{"$ne": string(booking.StatusCancelled)},
		"check_in":   bson.M{"$lt": dr.CheckOut},
		"check_out":  bson.M{"$gt": dr.CheckIn},
	}
	cur, err := s.col(colBookings).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*booking.Booking, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain(nil)
	}
	return out, nil
}

func (s *Store) BookingByID(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	var doc bookingDocument
	err := s.col(colBookings).FindOne(ctx, bson.M{"_id": string(id), "deleted_at": nil}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", booking.ErrBookingNotFound, id)
		}
		return nil, err
	}
	lines, err := s.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(lines), nil
}

func (s *Store) lines(ctx context.Context, id booking.ID) ([]addons.Line, error) {
	cur, err := s.col(colBookingAddOns).Find(ctx, bson.M{"booking_id": string(id)}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []bookingAddOnDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]addons.Line, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// InsertBooking claims every night of the stay before writing the booking. A night already
// claimed by another booking fails the insert with booking.ErrBookingConflict.
func (s *Store) InsertBooking(ctx context.Context, b *booking.Booking, rows []addons.Line) error {
	if s.readOnly {
		return uow.ErrReadOnly
	}
	if b.Active() {
		if err := s.claimNights(ctx, b); err != nil {
			return err
		}
	}
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := s.col(colBookings).InsertOne(ctx, doc); err != nil {
		return mapWriteError(err)
	}
	if len(rows) > 0 {
		docs := make([]any, len(rows))
		for i, l := range rows {
			docs[i] = newBookingAddOnDocument(b.ID, i, l)
		}
		if _, err := s.col(colBookingAddOns).InsertMany(ctx, docs); err != nil {
			return mapWriteError(err)
		}
	}
	b.Version = 1
	return nil
}

// UpdateBooking writes b if nobody changed it since it was read, then re-claims its nights:
// a cancelled or deleted booking releases them, a rescheduled one swaps them.
func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	if s.readOnly {
		return uow.ErrReadOnly
	}
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	res, err := s.col(colBookings).ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, doc)
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: booking %s changed concurrently", booking.ErrBookingConflict, b.ID)
	}
	if _, err := s.col(colBookingNights).DeleteMany(ctx, bson.M{"booking_id": doc.ID}); err != nil {
		return mapWriteError(err)
	}
	if b.Active() {
		if err := s.claimNights(ctx, b); err != nil {
			return err
		}
	}
	if _, err := s.col(colBookingAddOns).DeleteMany(ctx, bson.M{"booking_id": doc.ID}); err != nil {
		return mapWriteError(err)
	}
	if len(b.AddOns) > 0 {
		docs := make([]any, len(b.AddOns))
		for i, l := range b.AddOns {
			docs[i] = newBookingAddOnDocument(b.ID, i, l)
		}
		if _, err := s.col(colBookingAddOns).InsertMany(ctx, docs); err != nil {
			return mapWriteError(err)
		}
	}
	b.Version = doc.Version
	return nil
}

func (s *Store) claimNights(ctx context.Context, b *booking.Booking) error {
	_, err := s.col(colBookingNights).InsertMany(ctx, nightDocuments(b))
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: unit %s %s", booking.ErrBookingConflict, b.UnitID, b.Range)
	}
	return mapWriteError(err)
}

// mapWriteError turns transaction write conflicts into booking.ErrBookingConflict so callers retry.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) || hasErrorCode(err, writeConflictCode) {
		return fmt.Errorf("%w: %v", booking.ErrBookingConflict, err)
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTxnLabel) {
		return fmt.Errorf("%w: %v", booking.ErrBookingConflict, err)
	}
	return err
}

func hasErrorCode(err error, code int) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(code)
}

var _ booking.Store = (*Store)(nil)
