package ginserver

import (
	"context"
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"resort/internal/app/middleware"
	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/chalet"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
	"resort/internal/domain/shared/daterange"
	"resort/internal/domain/shared/money"
	"resort/internal/infra/validation"
)

type errorResponse struct {
	Error     string                  `json:"error"`
	Code      string                  `json:"code"`
	Fields    []validation.FieldError `json:"fields,omitempty"`
	Conflicts []string                `json:"conflicts,omitempty"`
}

// writeError maps application errors onto HTTP statuses. Unknown errors become 500 and
// their text is not echoed to the client; catalog data errors keep a distinct code.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, code := classify(err)
	resp := errorResponse{Error: err.Error(), Code: code}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	var unavailable *booking.UnavailableError
	if errors.As(err, &unavailable) {
		for _, id := range unavailable.Conflicts {
			resp.Conflicts = append(resp.Conflicts, string(id))
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, daterange.ErrInvalidRange), errors.Is(err, daterange.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, booking.ErrInvalidGuestCount):
		return http.StatusBadRequest, "invalid_guest_count"
	case errors.Is(err, booking.ErrGuestRequired):
		return http.StatusBadRequest, "guest_required"
	case errors.Is(err, pricing.ErrInvalidDiscount), errors.Is(err, money.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, addons.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, booking.ErrUnitNotFound):
		return http.StatusNotFound, "unit_not_found"
	case errors.Is(err, booking.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, addons.ErrNotFound):
		return http.StatusNotFound, "add_on_not_found"
	case errors.Is(err, booking.ErrUnavailable):
		return http.StatusConflict, "unavailable"
	case errors.Is(err, booking.ErrBookingConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, middleware.ErrIdempotencyKeyReused):
		return http.StatusUnprocessableEntity, "idempotency_key_reused"
	case errors.Is(err, addons.ErrInactive), errors.Is(err, money.ErrCurrencyMismatch):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, pricing.ErrInvalidPolicy),
		errors.Is(err, rates.ErrInvalidWindow),
		errors.Is(err, rates.ErrInvalidPrice),
		errors.Is(err, addons.ErrInvalidMode),
		errors.Is(err, chalet.ErrInvalidCapacity),
		errors.Is(err, chalet.ErrInvalidPrice):
		return http.StatusInternalServerError, "invalid_configuration"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
