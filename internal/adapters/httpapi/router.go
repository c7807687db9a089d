package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/serviapp/marketplace/internal/app"
	"github.com/serviapp/marketplace/internal/ports"
)

type Server struct {
	logger    zerolog.Logger
	jobs      *app.JobService
	claims    *app.ClaimService
	lifecycle *app.LifecycleService
	earnings  *app.EarningsService
	locations ports.LocationTracker
	bus       ports.EventBus
}

func NewServer(logger zerolog.Logger, jobs *app.JobService, claims *app.ClaimService, lifecycle *app.LifecycleService, earnings *app.EarningsService, locations ports.LocationTracker, bus ports.EventBus) *Server {
	return &Server{
		logger:    logger,
		jobs:      jobs,
		claims:    claims,
		lifecycle: lifecycle,
		earnings:  earnings,
		locations: locations,
		bus:       bus,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/events", s.handleEvents)

		if s.jobs != nil {
			NewJobsHandler(s.jobs, s.claims, s.lifecycle).Routes(r)
		}
		if s.earnings != nil {
			NewProfessionalsHandler(s.earnings, s.jobs, s.locations).Routes(r)
		}
	})

	return r
}
