package mysql

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resort/internal/app/uow"
	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/rates"
	"resort/internal/domain/settings"
	"resort/internal/domain/shared/daterange"
)

// Store maps the reservation model onto MySQL tables. Inside a unit of work db is the
// unit's transaction.
type Store struct {
	db       *gorm.DB
	readOnly bool
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) upsert(ctx context.Context, row any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (s *Store) PutChalet(ctx context.Context, c *chalet.Chalet) error {
	row := chaletRow{
		ID:           string(c.ID),
		Name:         c.Name,
		Capacity:     c.Capacity,
		BasePrice:    toCols(c.BasePrice),
		WeekendPrice: toCols(c.WeekendPrice),
		Active:       c.Active,
	}
	if c.DeletedAt != nil {
		row.DeletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	}
	return s.upsert(ctx, &row)
}

func (s *Store) PutRateRule(ctx context.Context, r rates.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = r.Normalize()
	return s.upsert(ctx, &rateRuleRow{
		ID:        string(r.ID),
		Name:      r.Name,
		UnitID:    string(r.UnitID),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Price:     toCols(r.Price),
		Priority:  r.Priority,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.UTC(),
	})
}

func (s *Store) PutAddOn(ctx context.Context, a addons.AddOn) error {
	return s.upsert(ctx, &addOnRow{ID: string(a.ID), Name: a.Name, Price: toCols(a.Price), Mode: string(a.Mode), Active: a.Active})
}

func (s *Store) PutSettings(ctx context.Context, cfg settings.Settings) error {
	row := newSettingsRow(cfg)
	return s.upsert(ctx, &row)
}

func (s *Store) UnitByID(ctx context.Context, id chalet.ID) (*chalet.Chalet, error) {
	var row chaletRow
	err := s.db.WithContext(ctx).Unscoped().Where("id = ?", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", booking.ErrUnitNotFound, id)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return row.toDomain(), nil
}

// lockUnit takes the chalet row FOR UPDATE so writers to the same unit queue behind each other.
func (s *Store) lockUnit(ctx context.Context, id chalet.ID) error {
	var row chaletRow
	err := s.db.WithContext(ctx).Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", string(id)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return mapError(err)
}

func (s *Store) ActiveRateRules(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]rates.Rule, error) {
	lastNight := dr.CheckOut.AddDate(0, 0, -1)
	var rows []rateRuleRow
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("unit_id IN ?", []string{"", string(unitID)}).
		Where("start_date <= ? AND end_date >= ?", lastNight, dr.CheckIn).
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]rates.Rule, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
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
	var rows []addOnRow
	if err := s.db.WithContext(ctx).Where("id IN ?", raw).Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	byID := make(map[addons.ID]addons.AddOn, len(rows))
	for _, r := range rows {
		byID[addons.ID(r.ID)] = r.toDomain()
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
	var row settingsRow
	err := s.db.WithContext(ctx).Where("id = ?", settingsKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.Settings{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ActiveBookingsForUnit(ctx context.Context, unitID chalet.ID, dr daterange.DateRange) ([]*booking.Booking, error) {
	var rows []bookingRow
	err := s.db.WithContext(ctx).
		Where("unit_id = ? AND deleted_at IS NULL AND status <> ?", string(unitID), string(booking.StatusCancelled)).
		Where("check_in < ? AND check_out > ?", dr.CheckOut, dr.CheckIn).
		Order("check_in").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]*booking.Booking, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) BookingByID(ctx context.Context, id booking.ID) (*booking.Booking, error) {
	var row bookingRow
	err := s.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", booking.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, mapError(err)
	}
	var lineRows []bookingAddOnRow
	if err := s.db.WithContext(ctx).Where("booking_id = ?", string(id)).Order("position").Find(&lineRows).Error; err != nil {
		return nil, mapError(err)
	}
	var lines []addons.Line
	for _, l := range lineRows {
		lines = append(lines, l.toDomain())
	}
	return row.toDomain(lines)
}

func (s *Store) InsertBooking(ctx context.Context, b *booking.Booking, rows []addons.Line) error {
	if s.readOnly {
		return uow.ErrReadOnly
	}
	row := newBookingRow(b)
	row.Version = 1
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return mapError(err)
	}
	if len(rows) > 0 {
		lineRows := newBookingAddOnRows(b.ID, rows)
		if err := s.db.WithContext(ctx).Create(&lineRows).Error; err != nil {
			return mapError(err)
		}
	}
	b.Version = 1
	return nil
}

// UpdateBooking is an optimistic write: it only applies when the stored version still
// matches b.Version.
func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	if s.readOnly {
		return uow.ErrReadOnly
	}
	row := newBookingRow(b)
	row.Version = b.Version + 1
	res := s.db.WithContext(ctx).
		Model(&bookingRow{}).
		Where("id = ? AND version = ?", row.ID, b.Version).
		Select("*").
		Omit("id").
		Updates(&row)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %s changed concurrently", booking.ErrBookingConflict, b.ID)
	}
	if err := s.db.WithContext(ctx).Where("booking_id = ?", row.ID).Delete(&bookingAddOnRow{}).Error; err != nil {
		return mapError(err)
	}
	if len(b.AddOns) > 0 {
		lineRows := newBookingAddOnRows(b.ID, b.AddOns)
		if err := s.db.WithContext(ctx).Create(&lineRows).Error; err != nil {
			return mapError(err)
		}
	}
	b.Version = row.Version
	return nil
}

var _ booking.Store = (*Store)(nil)
