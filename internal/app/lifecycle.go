package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/ports"
)

// LifecycleService advances an assigned job through its stages. Every write
// is gated on "status is still what we saw AND the requester owns the job",
// so a stale client or a non-owner affects zero rows.
type LifecycleService struct {
	logger zerolog.Logger
	store  ports.JobStore
	bus    ports.EventBus
	now    func() time.Time
}

func NewLifecycleService(logger zerolog.Logger, store ports.JobStore, bus ports.EventBus) *LifecycleService {
	return &LifecycleService{
		logger: logger,
		store:  store,
		bus:    bus,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *LifecycleService) Transition(ctx context.Context, jobID, professionalID string, target domain.Status) (JobDTO, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return JobDTO{}, &CodedError{Code: CodeJobNotFound, Message: "job " + jobID + " not found", Err: err}
		}
		return JobDTO{}, wrapUnexpected("read job", err)
	}

	if !domain.CanTransition(job.Status, target) {
		return JobDTO{}, &CodedError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("cannot transition job from %s to %s", job.Status, target),
			Err:     domain.ErrInvalidTransition,
		}
	}

	ownerGated := job.ProfessionalID != ""
	if ownerGated && !job.OwnedBy(professionalID) {
		return JobDTO{}, &CodedError{
			Code:    CodeInvalidTransition,
			Message: "job is not owned by this professional",
		}
	}

	now := s.now()
	current := job.Status
	pred := ports.JobPredicate{Status: &current}
	if ownerGated {
		pred.ProfessionalID = &professionalID
	} else {
		// Cancelling a still-pending job: no owner to gate on.
		pred.ProfessionalUnset = true
	}

	n, err := s.store.UpdateIf(ctx, jobID, pred,
		ports.JobPatch{Status: &target, StageAt: &now, Now: now})
	if err != nil {
		return JobDTO{}, wrapUnexpected("transition job", err)
	}
	if n == 0 {
		// The row moved between our read and the gated write.
		return JobDTO{}, &CodedError{
			Code:    CodeJobStateChanged,
			Message: fmt.Sprintf("job %s changed state during transition to %s", jobID, target),
		}
	}

	updated, err := s.store.Get(ctx, jobID)
	if err != nil {
		return JobDTO{}, wrapUnexpected("reload job", err)
	}

	PublishJobEvent(s.bus, ports.StatusTopic(target), updated)
	s.logger.Info().
		Str("job_id", jobID).
		Str("from", string(current)).
		Str("to", string(target)).
		Msg("job transitioned")
	return ToJobDTO(updated), nil
}

func (s *LifecycleService) Cancel(ctx context.Context, jobID, professionalID string) (JobDTO, error) {
	return s.Transition(ctx, jobID, professionalID, domain.StatusCancelled)
}
