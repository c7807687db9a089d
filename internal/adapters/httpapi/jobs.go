package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/serviapp/marketplace/internal/app"
	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/httpjson"
)

var validate = validator.New()

type JobsHandler struct {
	jobs      *app.JobService
	claims    *app.ClaimService
	lifecycle *app.LifecycleService
}

func NewJobsHandler(jobs *app.JobService, claims *app.ClaimService, lifecycle *app.LifecycleService) *JobsHandler {
	return &JobsHandler{jobs: jobs, claims: claims, lifecycle: lifecycle}
}

func (h *JobsHandler) Routes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/pending", h.listPending)
		r.Get("/{id}", h.get)
		r.Post("/{id}/claim", h.claim)
		r.Post("/{id}/transition", h.transition)
		r.Post("/{id}/cancel", h.cancel)
	})
}

type createJobRequest struct {
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Price    float64        `json:"price" validate:"gte=0"`
	Location *domain.LatLng `json:"location,omitempty"`
}

func (h *JobsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.Create(r.Context(), app.CreateJobRequest{
		Title:    req.Title,
		Category: req.Category,
		Price:    req.Price,
		Location: req.Location,
	})
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, job)
}

func (h *JobsHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, job)
}

func (h *JobsHandler) listPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var near *domain.LatLng
	var radius float64
	if latStr, lngStr := q.Get("lat"), q.Get("lng"); latStr != "" && lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			httpjson.WriteError(w, http.StatusBadRequest, "invalid coordinates")
			return
		}
		near = &domain.LatLng{Lat: lat, Lng: lng}
		radius, _ = strconv.ParseFloat(q.Get("radiusKm"), 64)
		if radius <= 0 {
			radius = 50
		}
	}

	jobs, err := h.jobs.ListPending(r.Context(), limit, near, radius)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, jobs)
}

type claimRequest struct {
	ProfessionalID    string `json:"professionalId" validate:"required"`
	CheckAvailability bool   `json:"checkAvailability"`
	CheckDistance     bool   `json:"checkDistance"`
	// Notify defaults to true when omitted.
	Notify *bool `json:"notify,omitempty"`
}

func (h *JobsHandler) claim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := app.ClaimOptions{
		CheckAvailability: req.CheckAvailability,
		CheckDistance:     req.CheckDistance,
		NotifyOnSuccess:   req.Notify == nil || *req.Notify,
	}
	outcome, err := h.claims.Claim(r.Context(), id, req.ProfessionalID, opts)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, outcome)
}

type transitionRequest struct {
	ProfessionalID string `json:"professionalId" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=en_route on_site in_progress completed cancelled"`
}

func (h *JobsHandler) transition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := h.lifecycle.Transition(r.Context(), id, req.ProfessionalID, target)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, job)
}

type cancelRequest struct {
	ProfessionalID string `json:"professionalId"`
}

func (h *JobsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.lifecycle.Cancel(r.Context(), id, req.ProfessionalID)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, job)
}
