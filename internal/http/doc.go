// Package http exposes the reservation core as a JSON API.
//
// The router exposes the following endpoints:
//   - POST /reservations, PUT /reservations/{id}, DELETE /reservations/{id}: reservation
//     mutations exchanging the `reservationRequest`/`reservationDTO` payloads defined in
//     reservation_handler.go. The caller token travels in the `X-Employee-ID` header and
//     becomes the owner token on create.
//   - GET /reservations?date=YYYY-MM-DD&facility=ID: reservations on one day.
//   - GET /reservations/upcoming?limit=N&facility=ID: reservations that have not ended,
//     ordered by start, with a `remaining` count for the entries cut off by the limit.
//   - POST /availability: dry-run conflict check for a candidate reservation.
//   - GET /calendar/{month}: the 42-cell month grid for YYYY-MM with each day's reservations.
//   - GET /calendar.ics: every reservation as an iCalendar feed.
//   - GET /facilities, POST /facilities, PUT /facilities/{id}, DELETE /facilities/{id}:
//     facility catalog endpoints. Listing is open; mutations require an administrator
//     token in `X-Employee-ID`.
//
// Errors use the `errorResponse` envelope: validation 422, conflict 409 (with the
// conflicting reservations), unauthorized 403, not found 404, store failure 503.
package http
