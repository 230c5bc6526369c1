package ginserver

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"resort/internal/domain/addons"
	"resort/internal/domain/booking"
	"resort/internal/domain/pricing"
	"resort/internal/domain/rates"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: unknown type %q", pricing.ErrInvalidPolicy, "tiered"), http.StatusInternalServerError, "invalid_configuration"},
		{rates.ErrInvalidWindow, http.StatusInternalServerError, "invalid_configuration"},
		{fmt.Errorf("line 2: %w", addons.ErrInvalidMode), http.StatusInternalServerError, "invalid_configuration"},
		{&booking.UnavailableError{UnitID: "pine"}, http.StatusConflict, "unavailable"},
		{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
