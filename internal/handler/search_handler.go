package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/internal/service"
)

// SearchHandler handles journey search HTTP requests.
type SearchHandler struct {
	searchSvc *service.SearchService
	logger    *logrus.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchSvc *service.SearchService, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{searchSvc: searchSvc, logger: logger}
}

// SearchJourneys handles GET /api/v1/journeys/search
//
// Query parameters:
//
//	source       — 3-letter airport code (required)
//	destination  — 3-letter airport code (required)
//	date         — departure date, YYYY-MM-DD, interpreted as UTC (required)
//	passengers   — party size, default 1
//	sort         — "price" or "duration"; omitted keeps store order
//	limit        — max results; omitted returns every match
//
// Response codes:
//
//	200  — Results (possibly empty)
//	400  — Validation failure
//	503  — Store unavailable
func (h *SearchHandler) SearchJourneys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date, err := time.ParseInLocation("2006-01-02", q.Get("date"), time.UTC)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_date", "date must be YYYY-MM-DD."))
		return
	}

	params := service.SearchParams{
		Source:      strings.ToUpper(strings.TrimSpace(q.Get("source"))),
		Destination: strings.ToUpper(strings.TrimSpace(q.Get("destination"))),
		Date:        date,
		SortBy:      q.Get("sort"),
	}
	if raw := q.Get("passengers"); raw != "" {
		params.Passengers, err = strconv.Atoi(raw)
		if err != nil || params.Passengers < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid_passengers", "passengers must be a positive integer."))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		params.Limit, err = strconv.Atoi(raw)
		if err != nil || params.Limit < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid_limit", "limit must be a positive integer."))
			return
		}
	}

	result, err := h.searchSvc.Search(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid_input", err.Error()))
		case errors.Is(err, service.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("store_unavailable",
				"The journey store is unavailable. Please retry."))
		default:
			h.logger.WithError(err).Error("journey search failed")
			writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "Unexpected error."))
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
