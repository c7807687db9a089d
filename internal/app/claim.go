package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/metrics"
	"github.com/serviapp/marketplace/internal/ports"
)

type ClaimConfig struct {
	// MaxActiveJobs caps how many assigned, unfinished jobs a professional
	// may hold before new claims are rejected.
	MaxActiveJobs int
	// MaxDistanceKm caps the haversine distance between the professional's
	// last known position and the job site.
	MaxDistanceKm float64
}

func DefaultClaimConfig() ClaimConfig {
	return ClaimConfig{MaxActiveJobs: 5, MaxDistanceKm: 50}
}

type ClaimOptions struct {
	CheckAvailability bool
	CheckDistance     bool
	NotifyOnSuccess   bool
}

type ClaimOutcome struct {
	Job             JobDTO `json:"job"`
	AlreadyAccepted bool   `json:"alreadyAccepted"`
	RaceResolved    bool   `json:"raceResolved,omitempty"`
}

// ClaimService coordinates "claim a pending job": guards first, then one of
// the two strategies, then best-effort notification. Correctness rests on
// the store write's own predicate, never on anything client-side.
type ClaimService struct {
	logger    zerolog.Logger
	store     ports.JobStore
	locations ports.LocationTracker
	notifier  ports.Notifier
	bus       ports.EventBus
	cfg       ClaimConfig
	now       func() time.Time

	// atomicUnavailable caches the capability probe: once the store reports
	// the atomic primitive missing, every later claim goes straight to the
	// fallback instead of rediscovering the gap per call.
	atomicUnavailable atomic.Bool
}

func NewClaimService(logger zerolog.Logger, store ports.JobStore, locations ports.LocationTracker, notifier ports.Notifier, bus ports.EventBus, cfg ClaimConfig) *ClaimService {
	if cfg.MaxActiveJobs <= 0 {
		cfg.MaxActiveJobs = DefaultClaimConfig().MaxActiveJobs
	}
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = DefaultClaimConfig().MaxDistanceKm
	}
	return &ClaimService{
		logger:    logger,
		store:     store,
		locations: locations,
		notifier:  notifier,
		bus:       bus,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ClaimService) Claim(ctx context.Context, jobID, professionalID string, opts ClaimOptions) (ClaimOutcome, error) {
	start := time.Now()
	outcome, err := s.claim(ctx, jobID, professionalID, opts)
	metrics.ObserveClaim(claimOutcomeLabel(err), time.Since(start))
	return outcome, err
}

func claimOutcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return CodeOf(err)
}

func (s *ClaimService) claim(ctx context.Context, jobID, professionalID string, opts ClaimOptions) (ClaimOutcome, error) {
	if jobID == "" || professionalID == "" {
		return ClaimOutcome{}, coded(CodeException, "jobId and professionalId are required")
	}

	if opts.CheckAvailability {
		if err := s.checkAvailability(ctx, professionalID); err != nil {
			return ClaimOutcome{}, err
		}
	}
	if opts.CheckDistance {
		if err := s.checkDistance(ctx, jobID, professionalID); err != nil {
			return ClaimOutcome{}, err
		}
	}

	now := s.now()
	res, err := s.attempt(ctx, jobID, professionalID, now)
	if err != nil {
		return ClaimOutcome{}, s.classifyClaimError(ctx, jobID, professionalID, err)
	}

	outcome := ClaimOutcome{
		Job:             ToJobDTO(res.Job),
		AlreadyAccepted: res.AlreadyAccepted,
		RaceResolved:    res.RaceResolved,
	}

	if !res.AlreadyAccepted {
		PublishJobEvent(s.bus, ports.TopicJobAccepted, res.Job)
		if opts.NotifyOnSuccess && s.notifier != nil {
			// Best-effort: a notification failure never rolls back the claim.
			if err := s.notifier.NotifyJobAccepted(ctx, res.Job, professionalID); err != nil {
				s.logger.Warn().Err(err).
					Str("job_id", jobID).
					Str("professional_id", professionalID).
					Msg("job accepted notification failed")
			}
		}
	}
	return outcome, nil
}

func (s *ClaimService) attempt(ctx context.Context, jobID, professionalID string, now time.Time) (ports.AcceptResult, error) {
	if s.atomicUnavailable.Load() {
		return s.fallbackClaim(ctx, jobID, professionalID, now)
	}

	res, err := s.store.AcceptAtomic(ctx, jobID, professionalID, now)
	if errors.Is(err, ports.ErrCapabilityMissing) {
		// Schema gap, not a business failure: remember it and fall back.
		s.atomicUnavailable.Store(true)
		metrics.ClaimFallbackTotal.Inc()
		s.logger.Warn().Str("job_id", jobID).Msg("atomic accept unavailable, switching to fallback claim path")
		return s.fallbackClaim(ctx, jobID, professionalID, now)
	}
	return res, err
}

// fallbackClaim is the guarded read-then-write path. The initial read is
// diagnostic only; the conditional write re-states the full guard predicate
// and its affected-row count is the sole authority. The window between read
// and write means a loser's "why" can be stale — accepted, documented
// behavior.
func (s *ClaimService) fallbackClaim(ctx context.Context, jobID, professionalID string, now time.Time) (ports.AcceptResult, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return ports.AcceptResult{}, err
	}
	if job.OwnedBy(professionalID) {
		return ports.AcceptResult{Job: job, AlreadyAccepted: true}, nil
	}
	if job.ProfessionalID != "" {
		return ports.AcceptResult{}, fmt.Errorf("job %s already assigned: %w", jobID, ports.ErrConflict)
	}

	pending := domain.StatusPending
	accepted := domain.StatusAccepted
	n, err := s.store.UpdateIf(ctx, jobID,
		ports.JobPredicate{Status: &pending, ProfessionalUnset: true},
		ports.JobPatch{Status: &accepted, ProfessionalID: &professionalID, StageAt: &now, Now: now})
	if err != nil {
		return ports.AcceptResult{}, err
	}
	if n == 0 {
		// Lost a race after the diagnostic read; re-read to classify.
		current, err := s.store.Get(ctx, jobID)
		if err != nil {
			return ports.AcceptResult{}, err
		}
		if current.OwnedBy(professionalID) {
			return ports.AcceptResult{Job: current, AlreadyAccepted: true, RaceResolved: true}, nil
		}
		return ports.AcceptResult{}, fmt.Errorf("job %s changed under claim: %w", jobID, ports.ErrConflict)
	}

	current, err := s.store.Get(ctx, jobID)
	if err != nil {
		return ports.AcceptResult{}, err
	}
	return ports.AcceptResult{Job: current}, nil
}

// classifyClaimError turns store sentinels into taxonomy codes, re-reading
// the row where the distinction between "someone else got it" and "state
// changed, refetch and retry" needs the current truth.
func (s *ClaimService) classifyClaimError(ctx context.Context, jobID, professionalID string, err error) error {
	var ce *CodedError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, ports.ErrNotFound) {
		return &CodedError{Code: CodeJobNotFound, Message: "job " + jobID + " not found", Err: err}
	}
	if errors.Is(err, ports.ErrConflict) {
		current, readErr := s.store.Get(ctx, jobID)
		if readErr == nil && current.ProfessionalID != "" && !current.OwnedBy(professionalID) {
			return &CodedError{Code: CodeJobAlreadyClaimed, Message: "job " + jobID + " already claimed by another professional", Err: err}
		}
		return &CodedError{Code: CodeJobStateChanged, Message: "job " + jobID + " is no longer claimable", Err: err}
	}
	return wrapUnexpected("claim job "+jobID, err)
}

func (s *ClaimService) checkAvailability(ctx context.Context, professionalID string) error {
	count, err := s.store.CountActive(ctx, professionalID)
	if err != nil {
		return wrapUnexpected("count active jobs", err)
	}
	if count >= s.cfg.MaxActiveJobs {
		return &CodedError{
			Code:       CodeProfessionalUnavailable,
			Message:    fmt.Sprintf("professional has %d active jobs (cap %d)", count, s.cfg.MaxActiveJobs),
			ActiveJobs: count,
		}
	}
	return nil
}

// checkDistance skips silently when either side has no coordinates: an
// unknown position is treated as within range, not as a rejection.
func (s *ClaimService) checkDistance(ctx context.Context, jobID, professionalID string) error {
	if s.locations == nil {
		return nil
	}
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return &CodedError{Code: CodeJobNotFound, Message: "job " + jobID + " not found", Err: err}
		}
		return wrapUnexpected("read job for distance check", err)
	}
	if job.Location == nil {
		return nil
	}
	loc, ok, err := s.locations.LastKnown(ctx, professionalID)
	if err != nil {
		return wrapUnexpected("read professional location", err)
	}
	if !ok {
		return nil
	}
	distance := domain.HaversineKm(loc, *job.Location)
	if distance > s.cfg.MaxDistanceKm {
		return &CodedError{
			Code:       CodeJobTooFar,
			Message:    fmt.Sprintf("job is %.1f km away (cap %.0f km)", distance, s.cfg.MaxDistanceKm),
			DistanceKm: distance,
		}
	}
	return nil
}
