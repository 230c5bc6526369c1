// Package handlers registers every reservation command and query on the in-memory buses.
package handlers

import (
	"resort/internal/app/commands"
	availabilityapp "resort/internal/app/handlers/availability"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/queries"
	"resort/internal/app/reservations"
)

// Register wires handlers backed by the reservation manager. Currency is used to read decimal
// discount amounts.
func Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus, manager *reservations.Manager, currency string) {
	commands.RegisterHandler(cmds, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{Bookings: manager, Currency: currency})
	commands.RegisterHandler(cmds, bookingapp.TransitionBookingCommand{}.Key(), &bookingapp.TransitionBookingHandler{Bookings: manager})
	commands.RegisterHandler(cmds, bookingapp.RescheduleBookingCommand{}.Key(), &bookingapp.RescheduleBookingHandler{Bookings: manager})

	queries.RegisterHandler(qs, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{Bookings: manager})
	queries.RegisterHandler(qs, bookingapp.QuoteStayQuery{}.Key(), &bookingapp.QuoteStayHandler{Bookings: manager, Currency: currency})
	queries.RegisterHandler(qs, availabilityapp.CheckAvailabilityQuery{}.Key(), &availabilityapp.CheckAvailabilityHandler{Checker: manager})
}
