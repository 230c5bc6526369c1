package mysql

import (
	"errors"
	"fmt"

	drv "github.com/go-sql-driver/mysql"

	"resort/internal/domain/booking"
)

const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// mapError reports lock contention and duplicate keys as booking.ErrBookingConflict so the
// reservation manager retries them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var merr *drv.MySQLError
	if errors.As(err, &merr) {
		switch merr.Number {
		case errDuplicateEntry, errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %v", booking.ErrBookingConflict, err)
		}
	}
	return err
}
