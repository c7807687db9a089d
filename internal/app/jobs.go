package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/xid"

	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/ports"
)

// JobService is the intake/read side: jobs enter the pool as pending and are
// read back by the feed. Claiming and lifecycle moves live in their own
// services.
type JobService struct {
	store ports.JobStore
	bus   ports.EventBus
}

func NewJobService(store ports.JobStore, bus ports.EventBus) *JobService {
	return &JobService{store: store, bus: bus}
}

type CreateJobRequest struct {
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Price    float64        `json:"price"`
	Location *domain.LatLng `json:"location,omitempty"`
}

type JobDTO struct {
	ID             string         `json:"id"`
	Title          string         `json:"title,omitempty"`
	Category       string         `json:"category,omitempty"`
	Status         domain.Status  `json:"status"`
	ProfessionalID string         `json:"professionalId,omitempty"`
	Price          float64        `json:"price"`
	Location       *domain.LatLng `json:"location,omitempty"`
	AcceptedAt     *time.Time     `json:"acceptedAt,omitempty"`
	EnRouteAt      *time.Time     `json:"enRouteAt,omitempty"`
	OnSiteAt       *time.Time     `json:"onSiteAt,omitempty"`
	InProgressAt   *time.Time     `json:"inProgressAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CancelledAt    *time.Time     `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func ToJobDTO(j domain.Job) JobDTO {
	return JobDTO{
		ID:             j.ID,
		Title:          j.Title,
		Category:       j.Category,
		Status:         j.Status,
		ProfessionalID: j.ProfessionalID,
		Price:          j.Price,
		Location:       j.Location,
		AcceptedAt:     j.AcceptedAt,
		EnRouteAt:      j.EnRouteAt,
		OnSiteAt:       j.OnSiteAt,
		InProgressAt:   j.InProgressAt,
		CompletedAt:    j.CompletedAt,
		CancelledAt:    j.CancelledAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func PublishJobEvent(bus ports.EventBus, topic string, job domain.Job) {
	if bus == nil {
		return
	}
	b, err := json.Marshal(ToJobDTO(job))
	if err != nil {
		return
	}
	bus.Publish(topic, b)
}

func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (JobDTO, error) {
	if req.Price < 0 {
		return JobDTO{}, coded(CodeException, "price must be non-negative")
	}
	now := time.Now().UTC()
	job := domain.Job{
		ID:        xid.New().String(),
		Title:     req.Title,
		Category:  req.Category,
		Status:    domain.StatusPending,
		Price:     req.Price,
		Location:  req.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.store.Create(ctx, job)
	if err != nil {
		return JobDTO{}, wrapUnexpected("create job", err)
	}
	PublishJobEvent(s.bus, ports.TopicJobCreated, created)
	return ToJobDTO(created), nil
}

func (s *JobService) Get(ctx context.Context, id string) (JobDTO, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return JobDTO{}, err
	}
	return ToJobDTO(job), nil
}

func (s *JobService) ListByProfessional(ctx context.Context, professionalID string) ([]JobDTO, error) {
	jobs, err := s.store.ListByProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	out := make([]JobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToJobDTO(j))
	}
	return out, nil
}

// ListPending is the lead feed. With a reference point it drops jobs outside
// radiusKm; jobs without coordinates stay in the feed.
func (s *JobService) ListPending(ctx context.Context, limit int, near *domain.LatLng, radiusKm float64) ([]JobDTO, error) {
	jobs, err := s.store.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]JobDTO, 0, len(jobs))
	for _, j := range jobs {
		if near != nil && radiusKm > 0 && j.Location != nil {
			if domain.HaversineKm(*near, *j.Location) > radiusKm {
				continue
			}
		}
		out = append(out, ToJobDTO(j))
	}
	return out, nil
}
