package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/internal/service"
)

// FlightHandler handles flight administration HTTP requests.
type FlightHandler struct {
	flightSvc *service.FlightService
	logger    *logrus.Logger
}

// NewFlightHandler creates a new flight handler.
func NewFlightHandler(flightSvc *service.FlightService, logger *logrus.Logger) *FlightHandler {
	return &FlightHandler{flightSvc: flightSvc, logger: logger}
}

// createFlightRequest is the POST /flights payload.
type createFlightRequest struct {
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	AircraftID    string    `json:"aircraft_id"`
	Price         float64   `json:"price"`
	TotalSeats    int       `json:"total_seats"`
}

// CreateFlight handles POST /api/v1/flights
//
// Registers a flight with its seat inventory and announces it on the
// event bus.
//
// Response codes:
//
//	201  — Flight created and announced
//	201  — Flight created, announcement pending (event_pending: true)
//	400  — Validation failure
//	409  — Same aircraft and departure already registered
//	503  — Store unavailable
func (h *FlightHandler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req createFlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_body", "Request body must be valid JSON."))
		return
	}

	flight, err := h.flightSvc.CreateFlight(r.Context(), service.CreateFlightInput{
		Source:        strings.ToUpper(strings.TrimSpace(req.Source)),
		Destination:   strings.ToUpper(strings.TrimSpace(req.Destination)),
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		AircraftID:    strings.TrimSpace(req.AircraftID),
		Price:         req.Price,
		TotalSeats:    req.TotalSeats,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventPublish) && flight != nil:
			// The flight committed; only the announcement is pending.
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"flight":        flight,
				"event_pending": true,
			})
		case errors.Is(err, service.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid_input", err.Error()))
		case errors.Is(err, service.ErrDuplicateFlight):
			writeJSON(w, http.StatusConflict, errorBody("duplicate_flight",
				"A flight with this aircraft and departure already exists."))
		case errors.Is(err, service.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("store_unavailable",
				"The flight store is unavailable. Please retry."))
		default:
			h.logger.WithError(err).Error("create flight failed")
			writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "Unexpected error."))
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"flight": flight})
}

// GetFlight handles GET /api/v1/flights/{id}
func (h *FlightHandler) GetFlight(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_id", "Flight id must be a UUID."))
		return
	}

	flight, err := h.flightSvc.GetFlight(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFlightNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not_found", "Flight not found."))
		case errors.Is(err, service.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("store_unavailable",
				"The flight store is unavailable. Please retry."))
		default:
			h.logger.WithError(err).Error("get flight failed")
			writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "Unexpected error."))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"flight": flight})
}
