package ginserver

import (
	"errors"
	"io"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	UnitID   string                    `json:"unit_id"`
	GuestID  string                    `json:"guest_id"`
	CheckIn  string                    `json:"check_in"`
	CheckOut string                    `json:"check_out"`
	Guests   int                       `json:"guests"`
	AddOns   []bookingapp.AddOnRequest `json:"add_ons"`
	Discount string                    `json:"discount"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		UnitID:          req.UnitID,
		GuestID:         req.GuestID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		AddOns:          req.AddOns,
		Discount:        req.Discount,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Confirm(c *gin.Context)  { h.transition(c, bookingapp.ActionConfirm) }
func (h BookingHandler) CheckIn(c *gin.Context)  { h.transition(c, bookingapp.ActionCheckIn) }
func (h BookingHandler) CheckOut(c *gin.Context) { h.transition(c, bookingapp.ActionCheckOut) }
func (h BookingHandler) Cancel(c *gin.Context)   { h.transition(c, bookingapp.ActionCancel) }
func (h BookingHandler) NoShow(c *gin.Context)   { h.transition(c, bookingapp.ActionNoShow) }

type transitionRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) transition(c *gin.Context, action string) {
	var req transitionRequest
	// The body is optional; only cancel reads a reason from it.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.TransitionBookingCommand{BookingID: c.Param("id"), Action: action, Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.TransitionBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type rescheduleRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

func (h BookingHandler) Reschedule(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.RescheduleBookingCommand{BookingID: c.Param("id"), CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	result, err := commands.Dispatch[bookingapp.RescheduleBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
