package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/internal/service"
)

// BookingHandler handles booking HTTP requests.
type BookingHandler struct {
	bookingSvc *service.BookingService
	logger     *logrus.Logger
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(bookingSvc *service.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc, logger: logger}
}

// createBookingRequest is the POST /bookings payload.
type createBookingRequest struct {
	UserID     string    `json:"user_id"`
	JourneyID  uuid.UUID `json:"journey_id"`
	Passengers int       `json:"passengers"`
	PaymentRef string    `json:"payment_ref"`
}

// CreateBooking handles POST /api/v1/bookings
//
// Books every leg of the journey for the party, all-or-nothing.
//
// Response codes:
//
//	201  — Booking confirmed (returns booking and per-leg seats)
//	400  — Validation failure
//	404  — Journey not found or not bookable
//	409  — A concurrent booking won the seats; safe to retry
//	422  — Not enough seats on some leg for the party
//	503  — Store unavailable
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_body", "Request body must be valid JSON."))
		return
	}

	detail, err := h.bookingSvc.CreateBooking(r.Context(), service.CreateBookingInput{
		UserID:     strings.TrimSpace(req.UserID),
		JourneyID:  req.JourneyID,
		Passengers: req.Passengers,
		PaymentRef: strings.TrimSpace(req.PaymentRef),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid_input", err.Error()))
		case errors.Is(err, service.ErrJourneyNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("journey_not_found",
				"Journey not found or no longer bookable."))
		case errors.Is(err, service.ErrInsufficientSeats):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody("insufficient_seats",
				"Not enough seats available on every leg for this party."))
		case errors.Is(err, service.ErrSeatConflict):
			writeJSON(w, http.StatusConflict, errorBody("seat_conflict",
				"A concurrent booking took these seats. Please retry."))
		case errors.Is(err, service.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("store_unavailable",
				"The booking store is unavailable. Please retry."))
		default:
			h.logger.WithError(err).Error("create booking failed")
			writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "Unexpected error."))
		}
		return
	}

	writeJSON(w, http.StatusCreated, detail)
}

// GetBooking handles GET /api/v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_id", "Booking id must be a UUID."))
		return
	}

	detail, err := h.bookingSvc.GetBooking(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not_found", "Booking not found."))
		case errors.Is(err, service.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("store_unavailable",
				"The booking store is unavailable. Please retry."))
		default:
			h.logger.WithError(err).Error("get booking failed")
			writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "Unexpected error."))
		}
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
