package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/serviapp/marketplace/internal/app"
	"github.com/serviapp/marketplace/internal/buildinfo"
	"github.com/serviapp/marketplace/internal/httpjson"
)

const defaultRequestTimeout = 30 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	logger.Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

type errorBody struct {
	Error      string  `json:"error"`
	Code       string  `json:"code"`
	DistanceKm float64 `json:"distanceKm,omitempty"`
	ActiveJobs int     `json:"activeJobs,omitempty"`
}

// writeCodedError maps the outcome taxonomy onto HTTP statuses so the client
// can distinguish "someone else got it" from "try again".
func writeCodedError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Code: app.CodeOf(err)}

	var ce *app.CodedError
	if errors.As(err, &ce) {
		body.DistanceKm = ce.DistanceKm
		body.ActiveJobs = ce.ActiveJobs
	}

	status := http.StatusInternalServerError
	switch body.Code {
	case app.CodeJobNotFound:
		status = http.StatusNotFound
	case app.CodeJobAlreadyClaimed, app.CodeJobStateChanged:
		status = http.StatusConflict
	case app.CodeProfessionalUnavailable, app.CodeJobTooFar, app.CodeInvalidTransition:
		status = http.StatusUnprocessableEntity
	}
	httpjson.Write(w, status, body)
}
