package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/facility-reservations/internal/application"
	"github.com/example/facility-reservations/internal/ics"
)

type reservationSnapshot interface {
	Snapshot() []application.Reservation
}

type facilityLister interface {
	List() []application.Facility
}

// CalendarHandler serves the month grid and the iCalendar feed.
type CalendarHandler struct {
	calendar     calendarQueries
	reservations reservationSnapshot
	facilities   facilityLister
	loc          *time.Location
	now          func() time.Time
	responder    responder
	logger       *slog.Logger
}

func NewCalendarHandler(calendar calendarQueries, reservations reservationSnapshot, facilities facilityLister, loc *time.Location, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{
		calendar:     calendar,
		reservations: reservations,
		facilities:   facilities,
		loc:          loc,
		now:          now,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Month renders GET /calendar/{month}.
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.calendar == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ym, err := application.ParseYearMonth(strings.TrimSpace(r.PathValue("month")))
	if err != nil {
		h.log(r.Context(), "Month", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid month", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMonth)
		return
	}

	facility := strings.TrimSpace(r.URL.Query().Get("facility"))
	cells := application.MonthGrid(ym)
	resp := monthResponse{
		Month: ym.String(),
		Prev:  application.PrevMonth(ym).String(),
		Next:  application.NextMonth(ym).String(),
		Days:  make([]dayDTO, 0, len(cells)),
	}
	for _, cell := range cells {
		resp.Days = append(resp.Days, dayDTO{
			Date:         cell.Date.String(),
			InMonth:      cell.InMonth,
			Reservations: toReservationDTOs(h.calendar.ReservationsOn(cell.Date, facility)),
		})
	}

	h.log(r.Context(), "Month", "month", resp.Month, "facility_id", facility).InfoContext(r.Context(), "month rendered")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Feed renders GET /calendar.ics.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reservations == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facility := strings.TrimSpace(r.URL.Query().Get("facility"))
	var reservations []application.Reservation
	for _, res := range h.reservations.Snapshot() {
		if facility == "" || facility == application.FacilityAll || res.FacilityID == facility {
			reservations = append(reservations, res)
		}
	}
	var facilities []application.Facility
	if h.facilities != nil {
		facilities = h.facilities.List()
	}

	logger := h.log(r.Context(), "Feed", "facility_id", facility)

	var buf bytes.Buffer
	if err := ics.Encode(&buf, reservations, facilities, h.loc, h.now()); err != nil {
		logger.ErrorContext(r.Context(), "calendar export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	logger.With("result_count", len(reservations)).InfoContext(r.Context(), "calendar exported")
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type monthResponse struct {
	Month string   `json:"month"`
	Prev  string   `json:"prev"`
	Next  string   `json:"next"`
	Days  []dayDTO `json:"days"`
}

type dayDTO struct {
	Date         string           `json:"date"`
	InMonth      bool             `json:"in_month"`
	Reservations []reservationDTO `json:"reservations"`
}
