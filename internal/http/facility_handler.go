package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/facility-reservations/internal/application"
)

type facilityService interface {
	Add(ctx context.Context, name, callerToken string) (application.Facility, error)
	Rename(ctx context.Context, id, newName, callerToken string) (application.Facility, error)
	Remove(ctx context.Context, id, callerToken string) error
	List() []application.Facility
}

type FacilityHandler struct {
	service   facilityService
	responder responder
	logger    *slog.Logger
}

func NewFacilityHandler(service facilityService, logger *slog.Logger) *FacilityHandler {
	base := defaultLogger(logger)
	return &FacilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *FacilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FacilityHandler", operation, attrs...)
}

func (h *FacilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req facilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode facility request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")

	facility, err := h.service.Add(r.Context(), req.Name, callerToken(r))
	if err != nil {
		logger.ErrorContext(r.Context(), "facility creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("facility_id", facility.ID).InfoContext(r.Context(), "facility created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, facilityResponse{Facility: toFacilityDTO(facility)})
}

func (h *FacilityHandler) Rename(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facilityID := strings.TrimSpace(r.PathValue("id"))
	if facilityID == "" {
		h.log(r.Context(), "Rename", "error_kind", "bad_request").ErrorContext(r.Context(), "missing facility id for rename")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidFacility)
		return
	}

	var req facilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Rename", "facility_id", facilityID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode facility rename", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Rename", "facility_id", facilityID)

	facility, err := h.service.Rename(r.Context(), facilityID, req.Name, callerToken(r))
	if err != nil {
		logger.ErrorContext(r.Context(), "facility rename failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "facility renamed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, facilityResponse{Facility: toFacilityDTO(facility)})
}

func (h *FacilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facilityID := strings.TrimSpace(r.PathValue("id"))
	if facilityID == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing facility id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidFacility)
		return
	}

	logger := h.log(r.Context(), "Delete", "facility_id", facilityID)
	if err := h.service.Remove(r.Context(), facilityID, callerToken(r)); err != nil {
		logger.ErrorContext(r.Context(), "facility delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "facility deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *FacilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facilities := h.service.List()
	h.log(r.Context(), "List").With("result_count", len(facilities)).InfoContext(r.Context(), "facilities listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listFacilitiesResponse{Facilities: toFacilityDTOs(facilities)})
}

type facilityRequest struct {
	Name string `json:"name"`
}

type facilityResponse struct {
	Facility facilityDTO `json:"facility"`
}

type listFacilitiesResponse struct {
	Facilities []facilityDTO `json:"facilities"`
}

type facilityDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ColorKey string `json:"color_key"`
}

func toFacilityDTO(f application.Facility) facilityDTO {
	return facilityDTO{ID: f.ID, Name: f.DisplayName, ColorKey: f.ColorKey}
}

func toFacilityDTOs(facilities []application.Facility) []facilityDTO {
	out := make([]facilityDTO, 0, len(facilities))
	for _, f := range facilities {
		out = append(out, toFacilityDTO(f))
	}
	return out
}
