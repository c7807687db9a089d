package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/serviapp/marketplace/internal/app"
	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/httpjson"
	"github.com/serviapp/marketplace/internal/ports"
)

type ProfessionalsHandler struct {
	earnings  *app.EarningsService
	jobs      *app.JobService
	locations ports.LocationTracker
}

func NewProfessionalsHandler(earnings *app.EarningsService, jobs *app.JobService, locations ports.LocationTracker) *ProfessionalsHandler {
	return &ProfessionalsHandler{earnings: earnings, jobs: jobs, locations: locations}
}

func (h *ProfessionalsHandler) Routes(r chi.Router) {
	r.Route("/professionals/{id}", func(r chi.Router) {
		r.Get("/earnings", h.getEarnings)
		r.Get("/jobs", h.listJobs)
		r.Put("/location", h.putLocation)
	})
}

func (h *ProfessionalsHandler) getEarnings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	period, err := app.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.earnings.GetEarningsData(r.Context(), id, period)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, stats)
}

func (h *ProfessionalsHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	jobs, err := h.jobs.ListByProfessional(r.Context(), id)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, jobs)
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (h *ProfessionalsHandler) putLocation(w http.ResponseWriter, r *http.Request) {
	if h.locations == nil {
		httpjson.WriteError(w, http.StatusNotFound, "location tracking disabled")
		return
	}
	id := chi.URLParam(r, "id")
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.locations.Record(r.Context(), id, domain.LatLng{Lat: req.Lat, Lng: req.Lng}); err != nil {
		writeCodedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
