package http

import (
	"net/http"
)

type RouterConfig struct {
	Reservations *ReservationHandler
	Calendar     *CalendarHandler
	Facilities   *FacilityHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Reservations != nil {
		mux.HandleFunc("GET /reservations", cfg.Reservations.List)
		mux.HandleFunc("POST /reservations", cfg.Reservations.Create)
		mux.HandleFunc("GET /reservations/upcoming", cfg.Reservations.Upcoming)
		mux.HandleFunc("PUT /reservations/{id}", cfg.Reservations.Update)
		mux.HandleFunc("DELETE /reservations/{id}", cfg.Reservations.Delete)
		mux.HandleFunc("POST /availability", cfg.Reservations.Availability)
	}

	if cfg.Calendar != nil {
		mux.HandleFunc("GET /calendar/{month}", cfg.Calendar.Month)
		mux.HandleFunc("GET /calendar.ics", cfg.Calendar.Feed)
	}

	if cfg.Facilities != nil {
		mux.HandleFunc("GET /facilities", cfg.Facilities.List)
		mux.HandleFunc("POST /facilities", cfg.Facilities.Create)
		mux.HandleFunc("PUT /facilities/{id}", cfg.Facilities.Rename)
		mux.HandleFunc("DELETE /facilities/{id}", cfg.Facilities.Delete)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
