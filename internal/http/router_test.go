package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/facility-reservations/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) (http.Handler, *testfixtures.Harness) {
	t.Helper()
	logger := discardLogger()
	h := testfixtures.NewMemoryHarness(t, testfixtures.WithLogger(logger))
	router := NewRouter(RouterConfig{
		Reservations: NewReservationHandler(h.Reservations, h.Calendar, h.Clock.NowFunc(), logger),
		Calendar:     NewCalendarHandler(h.Calendar, h.Reservations, h.Facilities, time.UTC, h.Clock.NowFunc(), logger),
		Facilities:   NewFacilityHandler(h.Facilities, logger),
		Middleware:   []func(http.Handler) http.Handler{RequestLogger(logger), Recoverer(logger)},
	})
	return router, h
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set(CallerTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func booking(date, start, end, facility string) reservationRequest {
	return reservationRequest{
		Date:       date,
		TimeStart:  start,
		TimeEnd:    end,
		FacilityID: facility,
		Attendees:  2,
		Organizer:  "Alice",
	}
}

func TestReservationLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	created := doRequest(t, router, http.MethodPost, "/reservations", "T1", booking("2025-06-10", "09:00", "10:00", "RoomA"))
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", created.Code, created.Body.String())
	}
	first := decodeBody[reservationResponse](t, created).Reservation
	if first.ID != "res-1" || first.TimeStart != "09:00" || first.FacilityID != "RoomA" {
		t.Fatalf("unexpected reservation %+v", first)
	}

	t.Run("overlap is rejected with the conflicting reservation", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/reservations", "T2", booking("2025-06-10", "09:30", "10:30", "RoomA"))
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		resp := decodeBody[errorResponse](t, rec)
		if resp.ErrorCode != "RESERVATION_CONFLICT" || len(resp.Conflicts) != 1 || resp.Conflicts[0].ID != first.ID {
			t.Fatalf("unexpected conflict response %+v", resp)
		}
	})

	t.Run("update with another token is forbidden", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPut, "/reservations/"+first.ID, "T2", booking("2025-06-10", "10:00", "11:00", "RoomA"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("owner can move the reservation", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPut, "/reservations/"+first.ID, "T1", booking("2025-06-10", "10:00", "11:00", "RoomA"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		updated := decodeBody[reservationResponse](t, rec).Reservation
		if updated.TimeStart != "10:00" || updated.TimeEnd != "11:00" {
			t.Fatalf("unexpected updated reservation %+v", updated)
		}
	})

	t.Run("day listing filters by facility", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/reservations?date=2025-06-10&facility=RoomA", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := decodeBody[listReservationsResponse](t, rec).Reservations; len(got) != 1 {
			t.Fatalf("expected 1 reservation, got %d", len(got))
		}

		rec = doRequest(t, router, http.MethodGet, "/reservations?date=2025-06-10&facility=RoomB", "", nil)
		if got := decodeBody[listReservationsResponse](t, rec).Reservations; len(got) != 0 {
			t.Fatalf("expected no RoomB reservations, got %d", len(got))
		}
	})

	t.Run("delete requires the owner token", func(t *testing.T) {
		if rec := doRequest(t, router, http.MethodDelete, "/reservations/"+first.ID, "T2", nil); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if rec := doRequest(t, router, http.MethodDelete, "/reservations/"+first.ID, "T1", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if rec := doRequest(t, router, http.MethodDelete, "/reservations/"+first.ID, "T1", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", rec.Code)
		}
	})
}

func TestReservationValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	req := booking("2025-06-10", "10:00", "09:00", "RoomA")
	req.Attendees = 0
	rec := doRequest(t, router, http.MethodPost, "/reservations", "T1", req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Errors["time"] == "" || resp.Errors["attendees"] == "" {
		t.Fatalf("expected time and attendees errors, got %+v", resp.Errors)
	}

	anonymous := doRequest(t, router, http.MethodPost, "/reservations", "", booking("2025-06-10", "09:00", "10:00", "RoomA"))
	if anonymous.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without %s, got %d", CallerTokenHeader, anonymous.Code)
	}
	if resp := decodeBody[errorResponse](t, anonymous); resp.Errors["employee_id"] == "" {
		t.Fatalf("expected employee_id error, got %+v", resp.Errors)
	}

	bad := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader("{"))
	badRec := httptest.NewRecorder()
	router.ServeHTTP(badRec, bad)
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", badRec.Code)
	}

	if rec := doRequest(t, router, http.MethodGet, "/reservations?date=June", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestUpcomingAndAvailability(t *testing.T) {
	router, h := newTestRouter(t)
	h.Book(t, testfixtures.NewReservationFixture(testfixtures.WithReservationDate("2025-06-03")))
	h.Book(t, testfixtures.NewReservationFixture(testfixtures.WithReservationDate("2025-06-02")))
	h.Book(t, testfixtures.NewReservationFixture(testfixtures.WithReservationDate("2025-06-04"), testfixtures.WithReservationFacility("RoomB")))

	rec := doRequest(t, router, http.MethodGet, "/reservations/upcoming?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := decodeBody[upcomingResponse](t, rec)
	if len(page.Reservations) != 2 || page.Remaining != 1 {
		t.Fatalf("expected 2 reservations with 1 remaining, got %d/%d", len(page.Reservations), page.Remaining)
	}
	if page.Reservations[0].Date != "2025-06-02" {
		t.Fatalf("expected earliest first, got %s", page.Reservations[0].Date)
	}

	if rec := doRequest(t, router, http.MethodGet, "/reservations/upcoming?limit=-1", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rec.Code)
	}

	check := availabilityRequest{reservationRequest: booking("2025-06-02", "09:30", "09:45", "RoomA")}
	rec = doRequest(t, router, http.MethodPost, "/availability", "", check)
	avail := decodeBody[availabilityResponse](t, rec)
	if avail.Available || len(avail.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", avail)
	}

	check.ExcludeID = avail.Conflicts[0].ID
	rec = doRequest(t, router, http.MethodPost, "/availability", "", check)
	if avail := decodeBody[availabilityResponse](t, rec); !avail.Available {
		t.Fatalf("expected slot to be free when excluding %s, got %+v", check.ExcludeID, avail)
	}
}

func TestFacilityEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	if rec := doRequest(t, router, http.MethodPost, "/facilities", "T1", facilityRequest{Name: "Hall"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec := doRequest(t, router, http.MethodPost, "/facilities", testfixtures.AdminToken, facilityRequest{Name: "Main Hall"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[facilityResponse](t, rec).Facility
	if created.ID != "MainHall" || created.ColorKey == "" {
		t.Fatalf("unexpected facility %+v", created)
	}

	if rec := doRequest(t, router, http.MethodPost, "/facilities", testfixtures.AdminToken, facilityRequest{Name: "MainHall"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for duplicate id, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPut, "/facilities/MainHall", testfixtures.AdminToken, facilityRequest{Name: "Grand Hall"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if renamed := decodeBody[facilityResponse](t, rec).Facility; renamed.ID != "MainHall" || renamed.Name != "Grand Hall" {
		t.Fatalf("unexpected renamed facility %+v", renamed)
	}

	rec = doRequest(t, router, http.MethodGet, "/facilities", "", nil)
	listed := decodeBody[listFacilitiesResponse](t, rec).Facilities
	if len(listed) != 3 || listed[0].Name != "Grand Hall" {
		t.Fatalf("unexpected facility list %+v", listed)
	}

	if rec := doRequest(t, router, http.MethodDelete, "/facilities/MainHall", testfixtures.AdminToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodDelete, "/facilities/MainHall", testfixtures.AdminToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCalendarEndpoints(t *testing.T) {
	router, h := newTestRouter(t)
	booked := h.Book(t, testfixtures.NewReservationFixture(testfixtures.WithReservationDate("2025-06-10")))

	rec := doRequest(t, router, http.MethodGet, "/calendar/2025-06", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	month := decodeBody[monthResponse](t, rec)
	if len(month.Days) != 42 || month.Prev != "2025-05" || month.Next != "2025-07" {
		t.Fatalf("unexpected month response: %d days, prev %s, next %s", len(month.Days), month.Prev, month.Next)
	}
	if month.Days[0].Date != "2025-06-01" || !month.Days[0].InMonth {
		t.Fatalf("expected grid to start on Sunday 2025-06-01, got %+v", month.Days[0])
	}
	var found bool
	for _, day := range month.Days {
		if day.Date == "2025-06-10" {
			found = len(day.Reservations) == 1 && day.Reservations[0].ID == booked.ID
		}
	}
	if !found {
		t.Fatalf("expected reservation on 2025-06-10 in month grid")
	}

	if rec := doRequest(t, router, http.MethodGet, "/calendar/June", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed month, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/calendar.ics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "UID:"+booked.ID) || !strings.Contains(body, "SUMMARY:Room A: Alice") {
		t.Fatalf("unexpected feed body:\n%s", body)
	}
}

func TestRouterRejectsUnknownMethod(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodPatch, "/reservations/res-1", "T1", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
