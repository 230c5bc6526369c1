package ginserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"resort/internal/app/dto"
	availabilityapp "resort/internal/app/handlers/availability"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/queries"
)

type UnitHandler struct {
	Queries queries.Bus
}

// Quote prices a stay. Add-ons are passed as add_ons=breakfast:2,cleaning.
func (h UnitHandler) Quote(c *gin.Context) {
	guests, err := optionalInt(c.Query("guests"))
	if err != nil {
		badRequest(c, fmt.Errorf("guests: %w", err))
		return
	}
	addOns, err := parseAddOns(c.Query("add_ons"))
	if err != nil {
		badRequest(c, err)
		return
	}
	q := bookingapp.QuoteStayQuery{
		UnitID:   c.Param("id"),
		CheckIn:  c.Query("check_in"),
		CheckOut: c.Query("check_out"),
		Guests:   guests,
		AddOns:   addOns,
		Discount: c.Query("discount"),
	}
	result, err := queries.Ask[bookingapp.QuoteStayQuery, *dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h UnitHandler) Availability(c *gin.Context) {
	q := availabilityapp.CheckAvailabilityQuery{
		UnitID:           c.Param("id"),
		CheckIn:          c.Query("check_in"),
		CheckOut:         c.Query("check_out"),
		ExcludeBookingID: c.Query("exclude"),
	}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, *dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func optionalInt(raw string) (int, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseAddOns(raw string) ([]bookingapp.AddOnRequest, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []bookingapp.AddOnRequest
	for _, part := range strings.Split(raw, ",") {
		id, qty, hasQty := strings.Cut(strings.TrimSpace(part), ":")
		req := bookingapp.AddOnRequest{AddOnID: id, Quantity: 1}
		if hasQty {
			n, err := strconv.Atoi(qty)
			if err != nil {
				return nil, fmt.Errorf("add_ons: quantity for %q: %w", id, err)
			}
			req.Quantity = n
		}
		out = append(out, req)
	}
	return out, nil
}

var _ UnitHTTP = UnitHandler{}
