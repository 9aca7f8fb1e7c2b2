package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/facility-reservations/internal/application"
	"github.com/example/facility-reservations/internal/scheduler"
)

// DefaultUpcomingLimit applies when GET /reservations/upcoming omits limit.
const DefaultUpcomingLimit = 5

type reservationService interface {
	Create(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	Update(ctx context.Context, params application.UpdateReservationParams) (application.Reservation, error)
	Delete(ctx context.Context, reservationID, token string) error
	CheckAvailability(ctx context.Context, input application.ReservationInput, excludeID string) ([]application.Reservation, error)
}

type calendarQueries interface {
	ReservationsOn(date scheduler.Date, facilityFilter string) []application.Reservation
	Upcoming(now time.Time, limit int, facilityFilter string) application.UpcomingPage
}

type ReservationHandler struct {
	service   reservationService
	calendar  calendarQueries
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler wires the reservation endpoints. now supplies the current time in
// the deployment's location and drives the upcoming filter.
func NewReservationHandler(service reservationService, calendar calendarQueries, now func() time.Time, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &ReservationHandler{service: service, calendar: calendar, now: now, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "facility_id", req.FacilityID)

	reservation, err := h.service.Create(r.Context(), application.CreateReservationParams{
		OwnerToken: callerToken(r),
		Input:      req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID := strings.TrimSpace(r.PathValue("id"))
	if reservationID == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "reservation_id", reservationID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "reservation_id", reservationID)

	reservation, err := h.service.Update(r.Context(), application.UpdateReservationParams{
		ReservationID: reservationID,
		Token:         callerToken(r),
		Input:         req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID := strings.TrimSpace(r.PathValue("id"))
	if reservationID == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	logger := h.log(r.Context(), "Delete", "reservation_id", reservationID)
	if err := h.service.Delete(r.Context(), reservationID, callerToken(r)); err != nil {
		logger.ErrorContext(r.Context(), "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List returns the reservations on the day named by the date query parameter.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.calendar == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	date, err := scheduler.ParseDate(query.Get("date"))
	if err != nil {
		h.log(r.Context(), "List", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid date query", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDateQuery)
		return
	}

	facility := strings.TrimSpace(query.Get("facility"))
	reservations := h.calendar.ReservationsOn(date, facility)
	h.log(r.Context(), "List", "date", date.String(), "facility_id", facility).
		With("result_count", len(reservations)).InfoContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

func (h *ReservationHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.calendar == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	limit := DefaultUpcomingLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.log(r.Context(), "Upcoming", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid limit query", "limit", raw)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLimit)
			return
		}
		limit = parsed
	}

	facility := strings.TrimSpace(query.Get("facility"))
	page := h.calendar.Upcoming(h.now(), limit, facility)
	h.log(r.Context(), "Upcoming", "facility_id", facility).
		With("result_count", len(page.Reservations), "remaining", page.Remaining).InfoContext(r.Context(), "upcoming reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, upcomingResponse{
		Reservations: toReservationDTOs(page.Reservations),
		Remaining:    page.Remaining,
	})
}

// Availability checks a candidate without creating it.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Availability", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode availability request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Availability", "facility_id", req.FacilityID)
	conflicts, err := h.service.CheckAvailability(r.Context(), req.toInput(), strings.TrimSpace(req.ExcludeID))
	if err != nil {
		logger.ErrorContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(conflicts)).InfoContext(r.Context(), "availability checked")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available: len(conflicts) == 0,
		Conflicts: toReservationDTOs(conflicts),
	})
}

type reservationRequest struct {
	Date       string `json:"date"`
	TimeStart  string `json:"time_start"`
	TimeEnd    string `json:"time_end"`
	FacilityID string `json:"facility"`
	Attendees  int    `json:"attendees"`
	Organizer  string `json:"organizer"`
}

func (r reservationRequest) toInput() application.ReservationInput {
	return application.ReservationInput{
		Date:          strings.TrimSpace(r.Date),
		TimeStart:     strings.TrimSpace(r.TimeStart),
		TimeEnd:       strings.TrimSpace(r.TimeEnd),
		FacilityID:    strings.TrimSpace(r.FacilityID),
		AttendeeCount: r.Attendees,
		OrganizerName: strings.TrimSpace(r.Organizer),
	}
}

type availabilityRequest struct {
	reservationRequest
	ExcludeID string `json:"exclude_id"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type upcomingResponse struct {
	Reservations []reservationDTO `json:"reservations"`
	Remaining    int              `json:"remaining"`
}

type availabilityResponse struct {
	Available bool             `json:"available"`
	Conflicts []reservationDTO `json:"conflicts"`
}

// reservationDTO never carries the owner token.
type reservationDTO struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	TimeStart  string `json:"time_start"`
	TimeEnd    string `json:"time_end"`
	FacilityID string `json:"facility"`
	Attendees  int    `json:"attendees"`
	Organizer  string `json:"organizer"`
}

func toReservationDTO(r application.Reservation) reservationDTO {
	return reservationDTO{
		ID:         r.ID,
		Date:       r.Date.String(),
		TimeStart:  r.TimeRange.Start.String(),
		TimeEnd:    r.TimeRange.End.String(),
		FacilityID: r.FacilityID,
		Attendees:  r.AttendeeCount,
		Organizer:  r.OrganizerName,
	}
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, toReservationDTO(r))
	}
	return out
}
